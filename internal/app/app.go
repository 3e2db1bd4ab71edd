package app

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	redis "github.com/redis/go-redis/v9"
	"github.com/septivank/water-metering-sync/internal/anomaly"
	"github.com/septivank/water-metering-sync/internal/config"
	"github.com/septivank/water-metering-sync/internal/db"
	"github.com/septivank/water-metering-sync/internal/directory"
	"github.com/septivank/water-metering-sync/internal/logging"
	"github.com/septivank/water-metering-sync/internal/mail"
	"github.com/septivank/water-metering-sync/internal/metrics"
	"github.com/septivank/water-metering-sync/internal/mq"
	"github.com/septivank/water-metering-sync/internal/notify"
	"github.com/septivank/water-metering-sync/internal/report"
	"github.com/septivank/water-metering-sync/internal/repository"
	"github.com/septivank/water-metering-sync/internal/runlock"
	"github.com/septivank/water-metering-sync/internal/service"
	"github.com/septivank/water-metering-sync/internal/sheets"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Core provides configuration, infrastructure clients and the two job
// services. Transports (HTTP, AMQP consumer, CLI) are added by each binary.
var Core = fx.Module("water-metering.core",
	fx.Provide(
		config.Load,
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,
		ProvideDBPool,
		repository.NewRepository,
		ProvideWriters,
		ProvideRowSource,
		ProvideDirectory,
		ProvideDetector,
		ProvideMailSender,
		ProvideNotifier,
		ProvideRedisClient,
		ProvideLocker,
		ProvideMQConnection,
		ProvidePublisher,
		ProvideSyncService,
		ProvideAlertService,
	),
)

// Logger routes fx lifecycle events through the service logger
var Logger = fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: logger.Named("fx")}
})

// ProvideLogger creates the service logger and flushes it on stop
func ProvideLogger(lc fx.Lifecycle, cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = logger.Sync()
			return nil
		},
	})
	return logger, nil
}

// ProvideRegistry creates the Prometheus registry served on /metrics
func ProvideRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// ProvideMetrics registers the pipeline metrics
func ProvideMetrics(registry *prometheus.Registry, cfg *config.Config) *metrics.Metrics {
	return metrics.New(registry, cfg.ServiceName)
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(lc, logger, cfg.Database)
}

// ProvideWriters creates the chunk writers of the three tables
func ProvideWriters(repo *repository.Repository, cfg *config.Config) service.Writers {
	ignore := !cfg.Sync.Upsert
	return service.Writers{
		Clients: repo.ClientsWriter(ignore),
		Index:   repo.IndexWriter(ignore),
		Qmin:    repo.QminWriter(ignore),
	}
}

// ProvideRowSource creates the Google Sheets source, or a failing stand-in
// when no credentials are configured
func ProvideRowSource(cfg *config.Config, logger *zap.Logger) (sheets.RowSource, error) {
	if cfg.Sheets.Credentials == "" {
		logger.Warn("GOOGLE_CREDENTIALS not set, sync runs will fail to fetch the sheet")
		return sheets.Unconfigured{}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	source, err := sheets.NewGoogleSource(ctx, cfg.Sheets.Credentials)
	if err != nil {
		return nil, err
	}
	return source, nil
}

// ProvideDirectory creates the Airtable building directory, or a failing
// stand-in when no credentials are configured
func ProvideDirectory(cfg *config.Config, logger *zap.Logger) (directory.Directory, error) {
	if cfg.Airtable.AccessToken == "" || cfg.Airtable.BaseID == "" {
		logger.Warn("Airtable credentials not set, alert runs and /api/buildings will fail")
		return directory.Unconfigured{}, nil
	}
	dir, err := directory.NewAirtableDirectory(cfg.Airtable)
	if err != nil {
		return nil, err
	}
	return dir, nil
}

// ProvideDetector loads the alert rules and creates the detector
func ProvideDetector(cfg *config.Config, logger *zap.Logger) (*anomaly.Detector, error) {
	rules, err := config.LoadAlertRules(cfg.Alerts.RulesFile)
	if err != nil {
		return nil, err
	}
	logger.Info("alert rules loaded",
		zap.String("file", cfg.Alerts.RulesFile),
		zap.Float64("qmin_threshold", rules.QminThreshold),
		zap.Float64("index_threshold", rules.IndexThreshold),
		zap.Int("status_priorities", len(rules.StatusPriorities)),
	)
	return anomaly.NewDetector(rules), nil
}

// ProvideMailSender creates the configured mail sender
func ProvideMailSender(cfg *config.Config, logger *zap.Logger) (mail.Sender, error) {
	if cfg.Mail.Provider == config.MailProviderResend && cfg.Mail.ResendAPIKey == "" {
		logger.Warn("RESEND_API_KEY not set, alert emails will fail")
		return mail.Unconfigured{}, nil
	}
	return mail.NewFromConfig(cfg.Mail)
}

// ProvideNotifier creates the alert email dispatcher
func ProvideNotifier(sender mail.Sender, cfg *config.Config, logger *zap.Logger) *notify.Dispatcher {
	return notify.NewDispatcher(sender, cfg.Mail.Subject, cfg.Mail.Concurrency, logger)
}

// ProvideRedisClient creates the Redis client, nil when REDIS_ADDR is empty
func ProvideRedisClient(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) *redis.Client {
	return runlock.NewClient(lc, logger, cfg.Redis)
}

// ProvideLocker creates the run lock, nil (disabled) without Redis
func ProvideLocker(client *redis.Client, cfg *config.Config) *runlock.Locker {
	return runlock.NewLocker(client, cfg.Redis.LockPrefix, time.Duration(cfg.Redis.LockTTLSeconds)*time.Second)
}

// ProvideMQConnection creates a new RabbitMQ connection instance
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}

// ProvidePublisher creates the completion event publisher
func ProvidePublisher(lc fx.Lifecycle, conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (*mq.Publisher, error) {
	publisher, err := mq.NewPublisher(conn, cfg.RabbitMQ.EventsExchange, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return publisher.Close()
		},
	})
	return publisher, nil
}

// ProvideSyncService creates the reconciliation service
func ProvideSyncService(
	source sheets.RowSource,
	repo *repository.Repository,
	writers service.Writers,
	locker *runlock.Locker,
	publisher *mq.Publisher,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) (*service.SyncService, error) {
	return service.NewSyncService(service.SyncDeps{
		Source:    source,
		Store:     repo,
		Writers:   writers,
		Locker:    locker,
		Publisher: publisher,
		Metrics:   m,
		Logger:    logger,
	}, cfg)
}

// ProvideAlertService creates the daily differential service
func ProvideAlertService(
	repo *repository.Repository,
	dir directory.Directory,
	detector *anomaly.Detector,
	notifier *notify.Dispatcher,
	locker *runlock.Locker,
	publisher *mq.Publisher,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) (*service.AlertService, error) {
	return service.NewAlertService(service.AlertDeps{
		Store:     repo,
		Directory: dir,
		Detector:  detector,
		Renderer:  report.NewRenderer(detector.Rules().ColorThreshold),
		Notifier:  notifier,
		Locker:    locker,
		Publisher: publisher,
		Metrics:   m,
		Logger:    logger,
	}, cfg)
}
