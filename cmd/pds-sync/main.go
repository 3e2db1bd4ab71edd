// pds-sync runs one reconciliation or alert job and exits. It is meant for
// cron and for operators; the worker binary serves the same jobs over HTTP
// and the trigger queue.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/water-metering-sync/internal/app"
	"github.com/septivank/water-metering-sync/internal/config"
	"github.com/septivank/water-metering-sync/internal/metrics"
	"github.com/septivank/water-metering-sync/internal/mq"
	"github.com/septivank/water-metering-sync/internal/service"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	exitFailure    = 1
	exitUsage      = 2
	exitInProgress = 75
)

// usageError marks errors caused by the command line itself
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func main() {
	err := run(os.Args[1:], os.Stdout)
	if err == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	var usage *usageError
	switch {
	case errors.As(err, &usage):
		os.Exit(exitUsage)
	case errors.Is(err, service.ErrRunInProgress):
		os.Exit(exitInProgress)
	default:
		os.Exit(exitFailure)
	}
}

func run(args []string, stdout io.Writer) error {
	cmd, err := parseArgs(args, os.Stderr)
	if err != nil {
		return err
	}
	if cmd.name == "" {
		return nil
	}

	app.LoadDotEnv()

	var (
		cfg      *config.Config
		logger   *zap.Logger
		syncSvc  *service.SyncService
		alertSvc *service.AlertService
		conn     *mq.Connection
	)
	application := fx.New(
		app.Core,
		fx.NopLogger,
		fx.Populate(&cfg, &logger, &syncSvc, &alertSvc, &conn),
	)
	if err := application.Err(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startCtx, startCancel := context.WithTimeout(ctx, 30*time.Second)
	defer startCancel()
	if err := application.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		_ = application.Stop(stopCtx)
	}()

	requestID := uuid.NewString()
	var result any
	switch cmd.name {
	case "sync":
		result, err = syncSvc.Run(ctx, service.SyncOptions{RequestID: requestID, LookbackDays: cmd.lookbackDays})
	case "alerts":
		result, err = alertSvc.Run(ctx, requestID)
	case "enqueue":
		msg := service.TriggerMessage{RequestID: requestID, Job: cmd.job, LookbackDays: cmd.lookbackDays}
		if err = enqueue(ctx, conn, cfg, logger, msg); err == nil {
			result = msg
		}
	}
	if result != nil {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(result); encErr != nil && err == nil {
			err = encErr
		}
	}
	return err
}

// enqueue publishes a job request on the trigger exchange for the worker
func enqueue(ctx context.Context, conn *mq.Connection, cfg *config.Config, logger *zap.Logger, msg service.TriggerMessage) error {
	if conn == nil {
		return errors.New("RABBITMQ_URL is required to enqueue a job")
	}

	publisher, err := mq.NewPublisher(conn, cfg.RabbitMQ.TriggerExchange, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	return publisher.Publish(ctx, cfg.RabbitMQ.TriggerRoutingKey, msg)
}

type command struct {
	name         string
	job          string
	lookbackDays *int
}

// parseArgs reads "<command> [flags]". An empty command name means help was
// printed and there is nothing to run.
func parseArgs(args []string, stderr io.Writer) (command, error) {
	if len(args) == 0 {
		printUsage(stderr)
		return command{}, &usageError{msg: "missing command"}
	}

	cmd := command{name: args[0]}
	flagSet := pflag.NewFlagSet("pds-sync "+cmd.name, pflag.ContinueOnError)
	flagSet.SetOutput(stderr)

	var lookback int
	switch cmd.name {
	case "sync":
		flagSet.IntVar(&lookback, "lookback-days", 0, "override INDEX_LOOKBACK_DAYS for this run")
	case "alerts":
	case "enqueue":
		flagSet.StringVar(&cmd.job, "job", metrics.JobSync, "job to request: sync or daily_differential")
		flagSet.IntVar(&lookback, "lookback-days", 0, "override INDEX_LOOKBACK_DAYS for a sync job")
	case "help", "-h", "--help":
		printUsage(stderr)
		return command{}, nil
	default:
		printUsage(stderr)
		return command{}, &usageError{msg: fmt.Sprintf("unknown command %q", cmd.name)}
	}

	if err := flagSet.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return command{}, nil
		}
		return command{}, &usageError{msg: err.Error()}
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return command{}, &usageError{msg: fmt.Sprintf("unexpected argument: %s", rest[0])}
	}

	if flagSet.Changed("lookback-days") {
		if lookback < 0 {
			return command{}, &usageError{msg: "--lookback-days must not be negative"}
		}
		cmd.lookbackDays = &lookback
	}
	if cmd.name == "enqueue" && cmd.job != metrics.JobSync && cmd.job != metrics.JobDailyDifferential {
		return command{}, &usageError{msg: fmt.Sprintf("unknown job %q", cmd.job)}
	}
	return cmd, nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: pds-sync <command> [flags]

Commands:
  sync [--lookback-days N]     import the pds sheet into PostgreSQL
  alerts                       email the daily differential report
  enqueue --job JOB [--lookback-days N]
                               ask the worker to run JOB (sync or daily_differential)

The run report is printed as JSON on stdout.
`)
}
