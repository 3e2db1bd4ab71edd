package mail

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by Unconfigured for every message
var ErrNotConfigured = errors.New("mail sender not configured")

// Unconfigured fails every send. Dispatch counts the failures and logs them.
type Unconfigured struct{}

func (Unconfigured) Send(ctx context.Context, msg Message) error {
	return ErrNotConfigured
}
