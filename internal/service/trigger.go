package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/septivank/water-metering-sync/internal/logging"
	"github.com/septivank/water-metering-sync/internal/metrics"
	"go.uber.org/zap"
)

// TriggerMessage is the body of a job request on the trigger queue
type TriggerMessage struct {
	RequestID    string `json:"request_id"`
	Job          string `json:"job"`
	LookbackDays *int   `json:"lookback_days,omitempty"`
}

// SyncRunner runs the reconciliation pipeline
type SyncRunner interface {
	Run(ctx context.Context, opts SyncOptions) (*SyncReport, error)
}

// AlertRunner runs the daily differential alert
type AlertRunner interface {
	Run(ctx context.Context, requestID string) (*AlertReport, error)
}

// TriggerService routes queue messages to the job they request
type TriggerService struct {
	sync   SyncRunner
	alerts AlertRunner
	logger *zap.Logger
}

// NewTriggerService creates a new trigger service
func NewTriggerService(sync SyncRunner, alerts AlertRunner, logger *zap.Logger) *TriggerService {
	return &TriggerService{sync: sync, alerts: alerts, logger: logger}
}

// ProcessMessage runs the requested job. A job skipped because another run
// holds the lock is acknowledged; every other failure is returned so the
// message is dead-lettered.
func (s *TriggerService) ProcessMessage(ctx context.Context, body []byte) error {
	var msg TriggerMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal trigger message: %w", err)
	}

	reqLogger := logging.WithRequestID(s.logger, msg.RequestID)
	reqLogger.Info("processing trigger", zap.String("job", msg.Job))

	var err error
	switch msg.Job {
	case metrics.JobSync:
		_, err = s.sync.Run(ctx, SyncOptions{RequestID: msg.RequestID, LookbackDays: msg.LookbackDays})
	case metrics.JobDailyDifferential:
		_, err = s.alerts.Run(ctx, msg.RequestID)
	default:
		return fmt.Errorf("unknown job %q", msg.Job)
	}

	if errors.Is(err, ErrRunInProgress) {
		reqLogger.Warn("job already running, trigger dropped", zap.String("job", msg.Job))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run %s: %w", msg.Job, err)
	}
	return nil
}
