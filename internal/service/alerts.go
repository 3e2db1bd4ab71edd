package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/water-metering-sync/internal/anomaly"
	"github.com/septivank/water-metering-sync/internal/clock"
	"github.com/septivank/water-metering-sync/internal/config"
	"github.com/septivank/water-metering-sync/internal/db"
	"github.com/septivank/water-metering-sync/internal/directory"
	"github.com/septivank/water-metering-sync/internal/logging"
	"github.com/septivank/water-metering-sync/internal/metrics"
	"github.com/septivank/water-metering-sync/internal/notify"
	"github.com/septivank/water-metering-sync/internal/report"
	"github.com/septivank/water-metering-sync/internal/runlock"
	"github.com/septivank/water-metering-sync/tools/timeparser"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source names of the alert run
const (
	SourceSnapshots  = "consumption snapshots"
	SourceBuildings  = "building directory"
	SourceRecipients = "alert recipients"
)

// AlertReport describes a finished daily differential run
type AlertReport struct {
	RunID         string                `json:"run_id"`
	RequestID     string                `json:"request_id,omitempty"`
	StartedAt     time.Time             `json:"started_at"`
	FinishedAt    time.Time             `json:"finished_at"`
	Connections   int                   `json:"connections"`
	QminWarnings  int                   `json:"qmin_warnings"`
	IndexWarnings int                   `json:"index_warnings"`
	Dispatch      notify.DispatchReport `json:"dispatch"`
}

// AlertService computes the daily differential warnings and emails them
type AlertService struct {
	store     AlertStore
	directory directory.Directory
	detector  *anomaly.Detector
	renderer  *report.Renderer
	notifier  Notifier
	locker    RunLocker
	publisher EventPublisher
	metrics   *metrics.Metrics
	clock     clock.Clock
	alerts    config.AlertsConfig
	routing   string
	location  *time.Location
	logger    *zap.Logger
}

// AlertDeps holds the collaborators of the alert service
type AlertDeps struct {
	Store     AlertStore
	Directory directory.Directory
	Detector  *anomaly.Detector
	Renderer  *report.Renderer
	Notifier  Notifier
	Locker    RunLocker
	Publisher EventPublisher
	Metrics   *metrics.Metrics
	Clock     clock.Clock
	Logger    *zap.Logger
}

// NewAlertService creates the alert service
func NewAlertService(deps AlertDeps, cfg *config.Config) (*AlertService, error) {
	loc, err := timeparser.ParseOffset(cfg.Sheets.UTCOffset)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve SHEET_UTC_OFFSET: %w", err)
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Locker == nil {
		deps.Locker = (*runlock.Locker)(nil)
	}
	if deps.Renderer == nil {
		deps.Renderer = report.NewRenderer(deps.Detector.Rules().ColorThreshold)
	}

	return &AlertService{
		store:     deps.Store,
		directory: deps.Directory,
		detector:  deps.Detector,
		renderer:  deps.Renderer,
		notifier:  deps.Notifier,
		locker:    deps.Locker,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		clock:     deps.Clock,
		alerts:    cfg.Alerts,
		routing:   cfg.RabbitMQ.AlertsRoutingKey,
		location:  loc,
		logger:    deps.Logger,
	}, nil
}

// Run joins the latest consumption with the building directory, ranks the
// warnings and sends the same report to every subscribed recipient.
func (s *AlertService) Run(ctx context.Context, requestID string) (*AlertReport, error) {
	started := s.clock.Now()
	out := &AlertReport{
		RunID:     uuid.NewString(),
		RequestID: requestID,
		StartedAt: started,
	}
	logger := logging.WithRequestID(logging.WithRun(s.logger, metrics.JobDailyDifferential, out.RunID), requestID)

	err := s.run(ctx, out, logger)
	out.FinishedAt = s.clock.Now()
	s.metrics.ObserveRun(metrics.JobDailyDifferential, Outcome(err), out.FinishedAt.Sub(started))

	if err != nil {
		logger.Error("daily differential run failed", zap.Error(err))
		return out, err
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, s.routing, out); err != nil {
			logger.Error("failed to publish alerts event", zap.Error(err))
		}
	}
	return out, nil
}

func (s *AlertService) run(ctx context.Context, out *AlertReport, logger *zap.Logger) error {
	release, err := s.locker.Acquire(ctx, metrics.JobDailyDifferential)
	if err != nil {
		if errors.Is(err, runlock.ErrNotAcquired) {
			return ErrRunInProgress
		}
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			logger.Warn("failed to release run lock", zap.Error(err))
		}
	}()

	if s.alerts.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.alerts.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	var (
		snapshots  []db.ConsumptionSnapshot
		buildings  []directory.Building
		recipients []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if snapshots, err = s.store.ConsumptionSnapshots(gctx); err != nil {
			return &SourceFetchError{Source: SourceSnapshots, Err: err}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if buildings, err = s.directory.Buildings(gctx); err != nil {
			return &SourceFetchError{Source: SourceBuildings, Err: err}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if recipients, err = s.store.AlertRecipients(gctx); err != nil {
			return &SourceFetchError{Source: SourceRecipients, Err: err}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	entries := anomaly.Join(snapshots, buildings)
	qmin := s.detector.QminWarnings(entries)
	index := s.detector.IndexWarnings(entries)

	out.Connections = len(entries)
	out.QminWarnings = len(qmin)
	out.IndexWarnings = len(index)
	s.metrics.SetWarnings(metrics.WarningKindQmin, len(qmin))
	s.metrics.SetWarnings(metrics.WarningKindIndex, len(index))

	logger.Info("differential warnings computed",
		zap.Int("connections", len(entries)),
		zap.Int("buildings", len(buildings)),
		zap.Int("qmin_warnings", len(qmin)),
		zap.Int("index_warnings", len(index)),
		zap.Int("recipients", len(recipients)),
	)

	html, err := s.renderer.Render(report.Input{
		Date:       s.clock.Now().In(s.location),
		Qmin:       qmin,
		Index:      index,
		AppURL:     s.alerts.AppURL,
		ProfileURL: s.alerts.ProfileURL,
	})
	if err != nil {
		return err
	}

	out.Dispatch = s.notifier.Dispatch(ctx, recipients, html)
	s.metrics.AddEmails(out.Dispatch.Sent, out.Dispatch.Failed)
	return nil
}
