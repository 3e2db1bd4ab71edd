package main

import (
	"context"

	"github.com/septivank/water-metering-sync/internal/config"
	"github.com/septivank/water-metering-sync/internal/mq"
	"github.com/septivank/water-metering-sync/internal/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// startTriggerConsumer consumes job requests from the trigger queue. Without
// a broker connection only the HTTP API triggers runs.
func startTriggerConsumer(
	lc fx.Lifecycle,
	conn *mq.Connection,
	cfg *config.Config,
	logger *zap.Logger,
	trigger *service.TriggerService,
) error {
	if conn == nil {
		return nil
	}

	// cancelled on shutdown so an in-flight delivery loop exits
	ctx, cancel := context.WithCancel(context.Background())

	consumer, err := mq.NewConsumer(mq.ConsumerConfig{
		Connection: conn,
		Topology: mq.Topology{
			Exchange:   cfg.RabbitMQ.TriggerExchange,
			Queue:      cfg.RabbitMQ.TriggerQueue,
			DLQQueue:   cfg.RabbitMQ.DLQQueue,
			RoutingKey: cfg.RabbitMQ.TriggerRoutingKey,
		},
		PrefetchCount: cfg.RabbitMQ.PrefetchCount,
		Logger:        logger,
		Handler:       trigger.ProcessMessage,
	})
	if err != nil {
		cancel()
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			logger.Info("starting trigger consumer",
				zap.String("queue", cfg.RabbitMQ.TriggerQueue),
				zap.Int("prefetch", cfg.RabbitMQ.PrefetchCount))
			return consumer.Start(ctx)
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			if err := consumer.Close(); err != nil {
				logger.Error("failed to close consumer", zap.Error(err))
				return err
			}
			logger.Info("trigger consumer stopped")
			return nil
		},
	})

	return nil
}

// ProvideTriggerService routes queue messages to the job services
func ProvideTriggerService(
	syncSvc *service.SyncService,
	alertSvc *service.AlertService,
	logger *zap.Logger,
) *service.TriggerService {
	return service.NewTriggerService(syncSvc, alertSvc, logger)
}
