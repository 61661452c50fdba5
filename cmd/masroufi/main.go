package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"masroufi/internal/amqp"
	"masroufi/internal/cli"
	"masroufi/internal/export"
	apphttp "masroufi/internal/http"
	"masroufi/internal/ledger"
	"masroufi/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("masroufi")

	logger.Info("Starting masroufi server")

	cfg := cli.LoadAndValidateConfig(logger)
	persister := cli.InitPersister(logger, cfg)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	store, err := ledger.New(startupCtx, persister)
	if err != nil {
		logger.Error("Failed to load ledger snapshot", "error", err)
		os.Exit(1)
	}

	// AMQP is optional; without it mutations stay local and the export
	// worker sees nothing.
	var events services.EventPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			defer amqpClient.Close()
			events = services.NewAMQPPublisher(amqpClient)
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled, transaction events will not be published")
	}

	txService := services.NewTransactionService(store, events)
	processor := services.NewRecurringProcessor(store, events)

	// Direct export sink for the synchronous /export endpoint (optional)
	var sink export.Sink
	if cfg.GoogleSpreadsheetID != "" {
		sink, err = export.NewSheetsSink(startupCtx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets sink", "error", err)
			os.Exit(1)
		}
		logger.Info("Google Sheets sink initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled, no GOOGLE_SPREADSHEET_ID provided")
	}

	srv := apphttp.NewServer(":"+cfg.Port, store, txService, processor, sink)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if closer, ok := persister.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logger.Error("Persister close error", "error", err)
			}
		}
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server listening", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Background reconciliation keeps due charges from waiting on a
	// dashboard request. RECONCILE_INTERVAL=0 turns it off when a separate
	// reconcile-worker owns the schedule.
	if cfg.ReconcileInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.ReconcileInterval)
			defer ticker.Stop()

			for {
				select {
				case <-gctx.Done():
					return nil
				case now := <-ticker.C:
					// Through the server so cached summaries are invalidated
					if count, err := srv.Reconcile(gctx, now); err != nil {
						slog.ErrorContext(gctx, "Background reconciliation failed", "error", err)
					} else if count > 0 {
						slog.InfoContext(gctx, "Background reconciliation applied charges", "count", count)
					}
				}
			}
		})
	} else {
		logger.Info("Background reconciliation disabled", "reason", "RECONCILE_INTERVAL=0")
	}

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}

	logger.Info("Server stopped gracefully")
}
