package main

import (
	"context"
	"os"
	"time"

	"masroufi/internal/amqp"
	"masroufi/internal/cli"
	"masroufi/internal/ledger"
	"masroufi/internal/services"
)

// reconcile-worker materializes due recurring charges on a fixed interval.
// The snapshot is written wholesale on every mutation and has no merge step,
// so it tolerates exactly one writing process: run the worker standalone
// (cron-style, server stopped) and start the server with
// RECONCILE_INTERVAL=0 when it takes over, never both writers at once.
func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("reconcile-worker")

	logger.Info("Starting reconcile-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.ReconcileInterval == 0 {
		logger.Error("RECONCILE_INTERVAL must be non-zero for the reconcile worker")
		os.Exit(1)
	}
	persister := cli.InitPersister(logger, cfg)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	store, err := ledger.New(startupCtx, persister)
	if err != nil {
		logger.Error("Failed to load ledger snapshot", "error", err)
		os.Exit(1)
	}

	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			defer amqpClient.Close()
			events = services.NewAMQPPublisher(amqpClient)
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	processor := services.NewRecurringProcessor(store, events)

	ctx := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if closer, ok := persister.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logger.Error("Persister close error", "error", err)
			}
		}
	})

	logger.Info("Reconciliation configured", "interval", cfg.ReconcileInterval, "backend", cfg.DataBackend)

	// Catch up immediately on startup
	if count, err := processor.CheckRecurringTransactions(ctx, time.Now()); err != nil {
		logger.Error("Initial reconciliation failed", "error", err)
	} else {
		logger.Info("Initial reconciliation complete", "transactions_created", count)
	}

	ticker := time.NewTicker(cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Reconcile-worker shutdown complete")
			return
		case now := <-ticker.C:
			count, err := processor.CheckRecurringTransactions(ctx, now)
			if err != nil {
				logger.Error("Reconciliation failed", "error", err)
				continue
			}
			logger.Info("Reconciliation complete",
				"transactions_created", count,
				"next_check", now.Add(cfg.ReconcileInterval).Format("15:04:05"))
		}
	}
}
