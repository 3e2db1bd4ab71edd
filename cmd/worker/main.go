package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/septivank/water-metering-sync/internal/app"
	"github.com/septivank/water-metering-sync/internal/server"
	"go.uber.org/fx"
)

func main() {
	if path := app.LoadDotEnv(); path != "" {
		fmt.Printf("Loaded environment from: %s\n", path)
	} else {
		fmt.Println("No .env file found, using system environment variables (OK for pods/containers)")
	}

	application := fx.New(
		app.Core,
		app.Logger,
		server.Module,
		fx.Provide(ProvideTriggerService),
		fx.Invoke(startTriggerConsumer),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()

	if err := application.Start(startCtx); err != nil {
		if errors.Is(startCtx.Err(), context.DeadlineExceeded) {
			fmt.Fprintln(os.Stderr, "APPLICATION START TIMEOUT: failed to start within 30 seconds. A dependency (PostgreSQL, Redis or RabbitMQ) is probably unreachable, see the errors above.")
		}
		fmt.Fprintln(os.Stderr, "failed to start:", err)
		os.Exit(1)
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := application.Stop(stopCtx); err != nil {
		fmt.Fprintln(os.Stderr, "error stopping app:", err)
	}
}
