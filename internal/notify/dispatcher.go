package notify

import (
	"context"
	"sync/atomic"

	"github.com/septivank/water-metering-sync/internal/mail"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DispatchReport counts the outcome of one notification round
type DispatchReport struct {
	Recipients int `json:"recipients"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
}

// Dispatcher sends one HTML body to many recipients concurrently
type Dispatcher struct {
	sender      mail.Sender
	subject     string
	concurrency int
	logger      *zap.Logger
}

// NewDispatcher creates a dispatcher sending at most concurrency mails at once
func NewDispatcher(sender mail.Sender, subject string, concurrency int, logger *zap.Logger) *Dispatcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Dispatcher{
		sender:      sender,
		subject:     subject,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Dispatch sends html to every recipient and waits for all sends. A failed
// send is logged and counted; it never stops the other sends.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients []string, html string) DispatchReport {
	report := DispatchReport{Recipients: len(recipients)}
	if len(recipients) == 0 {
		d.logger.Info("no recipients subscribed, skipping notification")
		return report
	}

	var sent, failed atomic.Int64
	g := &errgroup.Group{}
	g.SetLimit(d.concurrency)

	for _, recipient := range recipients {
		recipient := recipient
		g.Go(func() error {
			err := d.sender.Send(ctx, mail.Message{To: recipient, Subject: d.subject, HTML: html})
			if err != nil {
				failed.Add(1)
				d.logger.Error("failed to send notification",
					zap.Error(err),
					zap.String("recipient", recipient),
				)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report.Sent = int(sent.Load())
	report.Failed = int(failed.Load())
	d.logger.Info("notifications dispatched",
		zap.Int("recipients", report.Recipients),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed),
	)
	return report
}
