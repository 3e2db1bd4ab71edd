package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Connection wraps RabbitMQ connection
type Connection struct {
	conn *amqp.Connection
}

// NewConnection dials the broker. An empty url disables messaging and yields
// a nil connection.
func NewConnection(lc fx.Lifecycle, logger *zap.Logger, url string) (*Connection, error) {
	if url == "" {
		logger.Info("RABBITMQ_URL not set, trigger queue and completion events disabled")
		return nil, nil
	}

	logger.Info("attempting to connect to RabbitMQ...")

	conn, err := amqp.Dial(url)
	if err != nil {
		logger.Error("rabbitmq connection failed", zap.Error(err))
		return nil, fmt.Errorf("[RABBITMQ CONNECTION FAILED] cannot connect to RabbitMQ, check RABBITMQ_URL and that the broker is reachable: %w", err)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("rabbitmq connection established")
			go watchClose(closed, logger)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := conn.Close(); err != nil {
				logger.Error("failed to close rabbitmq connection", zap.Error(err))
				return err
			}
			logger.Info("rabbitmq connection closed")
			return nil
		},
	})

	return &Connection{conn: conn}, nil
}

// Channel creates a new RabbitMQ channel
func (c *Connection) Channel() (*amqp.Channel, error) {
	return c.conn.Channel()
}

// watchClose reports a broker-side close. A graceful Close delivers nothing.
func watchClose(closed <-chan *amqp.Error, logger *zap.Logger) {
	if err, ok := <-closed; ok && err != nil {
		logger.Error("rabbitmq connection lost, triggers stop until restart",
			zap.Int("code", err.Code),
			zap.String("reason", err.Reason),
			zap.Bool("server", err.Server),
		)
	}
}
