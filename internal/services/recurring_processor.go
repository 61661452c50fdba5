package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"masroufi/internal/core"
	"masroufi/internal/ledger"
)

// RecurringProcessor materializes due recurring obligations into ledger
// transactions, exactly once per calendar month per definition. It must run
// whenever the consuming view becomes active, not just at startup, so a charge
// fires as soon as its day of month is crossed.
type RecurringProcessor struct {
	// mu serializes whole scan-and-apply runs. The dueness check reads a
	// copy of the definitions outside the store lock; without this, two
	// overlapping invocations (a dashboard view racing the background
	// ticker) could both see a stale watermark and materialize the same
	// charge twice in one month.
	mu     sync.Mutex
	store  *ledger.Store
	events EventPublisher
}

// NewRecurringProcessor creates a processor. events may be nil; materialized
// transactions then go unannounced.
func NewRecurringProcessor(store *ledger.Store, events EventPublisher) *RecurringProcessor {
	return &RecurringProcessor{
		store:  store,
		events: events,
	}
}

// CheckRecurringTransactions scans every recurring definition against now and
// applies all due materializations as one batched store update, so a whole
// invocation costs at most one persistence write and none at all when nothing
// is due. De-duplication rests solely on the LastAppliedDate watermark, which
// makes repeated invocations within the same month idempotent.
func (p *RecurringProcessor) CheckRecurringTransactions(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	defs := p.store.RecurringExpenses()

	var (
		created []core.Transaction
		updated []core.RecurringExpense
	)
	for _, re := range defs {
		if !isDue(re, now) {
			continue
		}

		created = append(created, core.Transaction{
			Amount:     re.Amount,
			CategoryID: re.CategoryID,
			Date:       now,
			Note:       "[Auto] " + re.Name,
			Type:       core.Expense,
		})
		re.LastAppliedDate = now
		updated = append(updated, re)
	}

	if len(created) == 0 {
		slog.DebugContext(ctx, "No recurring expenses due",
			"total_checked", len(defs),
			"processing_date", now.Format("2006-01-02"))
		return 0, nil
	}

	applied, err := p.store.ApplyRecurringBatch(ctx, created, updated)
	if err != nil {
		return 0, fmt.Errorf("apply recurring batch: %w", err)
	}

	for _, tx := range applied {
		p.publishCreated(ctx, tx.ID)
	}

	slog.InfoContext(ctx, "Recurring expense processing complete",
		"materialized", len(applied),
		"total_checked", len(defs),
		"processing_date", now.Format("2006-01-02"))

	return len(applied), nil
}

// isDue applies the literal day-of-month rule: due once now's day reaches the
// definition's day and the watermark is not already in this month. A day-31
// definition never fires in a 30-day month since now.Day() cannot reach 31.
func isDue(re core.RecurringExpense, now time.Time) bool {
	if now.Day() < re.DayOfMonth {
		return false
	}
	return !core.SameMonth(re.LastAppliedDate, now)
}

func (p *RecurringProcessor) publishCreated(ctx context.Context, id string) {
	if p.events == nil {
		return
	}
	if err := p.events.PublishTransactionCreated(ctx, id, "recurring"); err != nil {
		// The transaction is already in the ledger; a lost event never fails
		// the reconciliation.
		slog.ErrorContext(ctx, "Failed to publish recurring transaction event",
			"transaction_id", id,
			"error", err)
	}
}
