package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/water-metering-sync/internal/batch"
	"github.com/septivank/water-metering-sync/internal/clock"
	"github.com/septivank/water-metering-sync/internal/config"
	"github.com/septivank/water-metering-sync/internal/db"
	"github.com/septivank/water-metering-sync/internal/logging"
	"github.com/septivank/water-metering-sync/internal/metrics"
	"github.com/septivank/water-metering-sync/internal/reconcile"
	"github.com/septivank/water-metering-sync/internal/runlock"
	"github.com/septivank/water-metering-sync/internal/sheets"
	"github.com/septivank/water-metering-sync/tools/timeparser"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source names used in fetch errors and logs
const (
	SourceClientsSheet = "clients sheet"
	SourceIndexSheet   = "index sheet"
	SourceQminSheet    = "qmin sheet"
	SourceKnownIDs     = "known connections"
)

// Writers groups the chunk writers of the three tables, in write order
type Writers struct {
	Clients batch.ChunkWriter[db.Client]
	Index   batch.ChunkWriter[db.IndexReading]
	Qmin    batch.ChunkWriter[db.QminReading]
}

// SyncOptions tunes a single sync run
type SyncOptions struct {
	RequestID string
	// LookbackDays overrides INDEX_LOOKBACK_DAYS when set
	LookbackDays *int
}

// SyncReport describes a finished (or stopped) sync run
type SyncReport struct {
	RunID        string          `json:"run_id"`
	RequestID    string          `json:"request_id,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	LookbackDays int             `json:"lookback_days"`
	Stats        reconcile.Stats `json:"stats"`
	Tables       []batch.Result  `json:"tables"`
}

// SyncService runs the sheet to store reconciliation pipeline
type SyncService struct {
	source    sheets.RowSource
	store     ConnectionStore
	writers   Writers
	locker    RunLocker
	publisher EventPublisher
	metrics   *metrics.Metrics
	clock     clock.Clock
	sheetsCfg config.SheetsConfig
	syncCfg   config.SyncConfig
	routing   string
	location  *time.Location
	logger    *zap.Logger
}

// SyncDeps holds the collaborators of the sync service
type SyncDeps struct {
	Source    sheets.RowSource
	Store     ConnectionStore
	Writers   Writers
	Locker    RunLocker
	Publisher EventPublisher
	Metrics   *metrics.Metrics
	Clock     clock.Clock
	Logger    *zap.Logger
}

// NewSyncService creates the sync service. The sheet offset is resolved once.
func NewSyncService(deps SyncDeps, cfg *config.Config) (*SyncService, error) {
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

	return &SyncService{
		source:    deps.Source,
		store:     deps.Store,
		writers:   deps.Writers,
		locker:    deps.Locker,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		clock:     deps.Clock,
		sheetsCfg: cfg.Sheets,
		syncCfg:   cfg.Sync,
		routing:   cfg.RabbitMQ.SyncRoutingKey,
		location:  loc,
		logger:    deps.Logger,
	}, nil
}

// Run fetches the three tabs and the stored connections concurrently, then
// writes new clients, index readings and qmin readings in that order. A fetch
// failure aborts before any write; a write failure stops the remaining tables.
func (s *SyncService) Run(ctx context.Context, opts SyncOptions) (*SyncReport, error) {
	started := s.clock.Now()
	report := &SyncReport{
		RunID:        uuid.NewString(),
		RequestID:    opts.RequestID,
		StartedAt:    started,
		LookbackDays: s.syncCfg.IndexLookbackDays,
	}
	if opts.LookbackDays != nil {
		report.LookbackDays = *opts.LookbackDays
	}

	logger := logging.WithRequestID(logging.WithRun(s.logger, metrics.JobSync, report.RunID), opts.RequestID)

	err := s.run(ctx, report, logger)
	report.FinishedAt = s.clock.Now()
	s.metrics.ObserveRun(metrics.JobSync, Outcome(err), report.FinishedAt.Sub(started))

	if err != nil {
		logger.Error("sync run failed", zap.Error(err))
		return report, err
	}

	logger.Info("sync run completed",
		zap.Int("new_connections", report.Stats.NewConnections),
		zap.Int("rejected", report.Stats.Rejected),
		zap.Int("orphans", report.Stats.Orphans),
		zap.Int("outside_window", report.Stats.OutsideWindow),
	)
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, s.routing, report); err != nil {
			logger.Error("failed to publish sync event", zap.Error(err))
		}
	}
	return report, nil
}

func (s *SyncService) run(ctx context.Context, report *SyncReport, logger *zap.Logger) error {
	if report.LookbackDays < 0 {
		return fmt.Errorf("lookback days must not be negative, got %d", report.LookbackDays)
	}

	release, err := s.locker.Acquire(ctx, metrics.JobSync)
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

	if s.syncCfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.syncCfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	src, err := s.fetch(ctx)
	if err != nil {
		return err
	}
	logger.Info("sources fetched",
		zap.Int("client_rows", len(src.Clients)),
		zap.Int("index_rows", len(src.Index)),
		zap.Int("qmin_rows", len(src.Qmin)),
		zap.Int("known_connections", len(src.KnownIDs)),
	)

	now := s.clock.Now()
	plan := reconcile.Build(src, reconcile.Options{
		Location:    s.location,
		IndexWindow: reconcile.IndexWindow(now, report.LookbackDays),
		QminWindow:  reconcile.QminWindow(now, s.syncCfg.QminWindowOlderDays, s.syncCfg.QminWindowNewerDays),
	})
	report.Stats = plan.Stats

	for _, rowErr := range plan.Rejected {
		logger.Warn("sheet row rejected",
			zap.String("sheet", rowErr.Sheet),
			zap.Int("row", rowErr.Number),
			zap.String("reason", rowErr.Reason),
		)
	}
	s.metrics.AddRowsDropped("rejected", plan.Stats.Rejected)
	s.metrics.AddRowsDropped("orphan", plan.Stats.Orphans)
	s.metrics.AddRowsDropped("outside_window", plan.Stats.OutsideWindow)

	clients := batch.Dedupe(plan.Clients, func(c db.Client) string { return c.PDS })
	if err := writeTable(ctx, s, report, logger, s.writers.Clients, clients); err != nil {
		return err
	}

	index := batch.Dedupe(plan.Index, func(r db.IndexReading) readingKey {
		return readingKey{pds: r.PDS, at: r.DateIndex.UnixNano()}
	})
	if err := writeTable(ctx, s, report, logger, s.writers.Index, index); err != nil {
		return err
	}

	qmin := batch.Dedupe(plan.Qmin, func(r db.QminReading) readingKey {
		return readingKey{pds: r.PDS, at: r.ReferenceDate.UnixNano()}
	})
	return writeTable(ctx, s, report, logger, s.writers.Qmin, qmin)
}

type readingKey struct {
	pds string
	at  int64
}

// fetch reads every source concurrently; the first failure cancels the rest
func (s *SyncService) fetch(ctx context.Context) (reconcile.Sources, error) {
	var src reconcile.Sources
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := s.source.Rows(gctx, s.sheetsCfg.SpreadsheetID, s.sheetsCfg.ClientsRange)
		if err != nil {
			return &SourceFetchError{Source: SourceClientsSheet, Err: err}
		}
		src.Clients = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.source.Rows(gctx, s.sheetsCfg.SpreadsheetID, s.sheetsCfg.IndexRange)
		if err != nil {
			return &SourceFetchError{Source: SourceIndexSheet, Err: err}
		}
		src.Index = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.source.Rows(gctx, s.sheetsCfg.SpreadsheetID, s.sheetsCfg.QminRange)
		if err != nil {
			return &SourceFetchError{Source: SourceQminSheet, Err: err}
		}
		src.Qmin = rows
		return nil
	})
	g.Go(func() error {
		ids, err := s.store.KnownConnectionIDs(gctx)
		if err != nil {
			return &SourceFetchError{Source: SourceKnownIDs, Err: err}
		}
		src.KnownIDs = ids
		return nil
	})

	if err := g.Wait(); err != nil {
		return reconcile.Sources{}, err
	}
	return src, nil
}

func writeTable[T any](ctx context.Context, s *SyncService, report *SyncReport, logger *zap.Logger, w batch.ChunkWriter[T], rows []T) error {
	result, err := batch.InsertChunked(ctx, w, rows, s.syncCfg.ChunkSize)
	s.metrics.AddRowsWritten(result.Table, result.Inserted, result.Duplicates)
	report.Tables = append(report.Tables, result)
	if err != nil {
		return err
	}

	logger.Info("table written",
		zap.String("table", result.Table),
		zap.Int("rows", result.Rows),
		zap.Int("chunks", result.Chunks),
		zap.Int("inserted", result.Inserted),
		zap.Int("duplicates", result.Duplicates),
	)
	return nil
}
