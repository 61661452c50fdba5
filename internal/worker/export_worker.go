// Package worker consumes ledger transaction events and streams the matching
// report rows to the export sink.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"masroufi/internal/amqp"
	"masroufi/internal/core"
	"masroufi/internal/export"
	"masroufi/internal/ledger"
)

// ExportWorker handles transaction events by appending report rows to the
// configured sink. Deletions are logged only: the report is append-only.
type ExportWorker struct {
	store *ledger.Store
	sink  export.Sink
}

func NewExportWorker(store *ledger.Store, sink export.Sink) *ExportWorker {
	return &ExportWorker{
		store: store,
		sink:  sink,
	}
}

// HandleEvent processes a single transaction event from the queue.
func (w *ExportWorker) HandleEvent(ctx context.Context, msg *amqp.TransactionEventMessage) error {
	switch msg.Event {
	case amqp.EventTransactionCreated:
		return w.handleCreated(ctx, msg)
	case amqp.EventTransactionDeleted:
		slog.InfoContext(ctx, "Transaction deleted, report unchanged",
			"transaction_id", msg.TransactionID)
		return nil
	default:
		slog.WarnContext(ctx, "Unknown event kind, dropping",
			"event", msg.Event,
			"transaction_id", msg.TransactionID)
		return nil
	}
}

func (w *ExportWorker) handleCreated(ctx context.Context, msg *amqp.TransactionEventMessage) error {
	// The publishing process writes the snapshot before the event lands here;
	// pick up its latest state.
	if err := w.store.Reload(ctx); err != nil {
		return fmt.Errorf("reload ledger: %w", err)
	}

	tx, ok := w.store.Transaction(msg.TransactionID)
	if !ok {
		// Deleted between publish and consume; nothing to export.
		slog.WarnContext(ctx, "Transaction no longer in ledger, skipping export",
			"transaction_id", msg.TransactionID)
		return nil
	}

	rows := export.BuildReport([]core.Transaction{tx}, w.store.Categories())
	if err := w.sink.Append(ctx, rows); err != nil {
		return fmt.Errorf("append report row: %w", err)
	}

	slog.InfoContext(ctx, "Transaction exported",
		"transaction_id", msg.TransactionID,
		"source", msg.Source)
	return nil
}
