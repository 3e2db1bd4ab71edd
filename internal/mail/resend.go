package mail

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// ResendSender sends messages through the Resend API
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResend creates a Resend sender
func NewResend(apiKey, from string) (*ResendSender, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("RESEND_API_KEY is required for the resend mail provider")
	}
	return &ResendSender{client: resend.NewClient(apiKey), from: from}, nil
}

// Send delivers the message
func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	_, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("failed to send email via resend: %w", err)
	}
	return nil
}
