package mail

import (
	"context"
	"fmt"

	"github.com/septivank/water-metering-sync/internal/config"
)

// Message is a single HTML email
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers one message to one recipient
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewFromConfig returns the sender selected by MAIL_PROVIDER
func NewFromConfig(cfg config.MailConfig) (Sender, error) {
	switch cfg.Provider {
	case config.MailProviderResend:
		sender, err := NewResend(cfg.ResendAPIKey, cfg.From)
		if err != nil {
			return nil, err
		}
		return sender, nil
	case config.MailProviderSMTP:
		return NewSMTP(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.From,
		}), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}
