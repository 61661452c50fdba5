package main

import (
	"context"
	"errors"
	"os"
	"time"

	"masroufi/internal/amqp"
	"masroufi/internal/cli"
	"masroufi/internal/export"
	"masroufi/internal/ledger"
	"masroufi/internal/worker"
)

// export-worker consumes transaction events and appends the corresponding
// report rows to a Google Sheets document.
func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("export-worker")

	logger.Info("Starting export-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}
	if cfg.GoogleSpreadsheetID == "" {
		logger.Error("GOOGLE_SPREADSHEET_ID is required for the export worker")
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

	sink, err := export.NewSheetsSink(startupCtx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets sink", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets sink initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	exportWorker := worker.NewExportWorker(store, sink)

	ctx := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if closer, ok := persister.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logger.Error("Persister close error", "error", err)
			}
		}
	})

	logger.Info("Consuming transaction events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)

	err = amqpClient.ConsumeTransactionEvents(ctx, func(msg *amqp.TransactionEventMessage) error {
		return exportWorker.HandleEvent(ctx, msg)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Export-worker shutdown complete")
}
