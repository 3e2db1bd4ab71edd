package service

import (
	"context"

	"github.com/septivank/water-metering-sync/internal/db"
	"github.com/septivank/water-metering-sync/internal/notify"
)

// ConnectionStore lists the connections already persisted
type ConnectionStore interface {
	KnownConnectionIDs(ctx context.Context) ([]string, error)
}

// AlertStore reads what the daily differential alert needs from the store
type AlertStore interface {
	ConsumptionSnapshots(ctx context.Context) ([]db.ConsumptionSnapshot, error)
	AlertRecipients(ctx context.Context) ([]string, error)
}

// RunLocker serializes runs of the same job
type RunLocker interface {
	Acquire(ctx context.Context, job string) (func(context.Context) error, error)
}

// EventPublisher announces finished runs
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Notifier delivers the rendered report to recipients
type Notifier interface {
	Dispatch(ctx context.Context, recipients []string, html string) notify.DispatchReport
}
