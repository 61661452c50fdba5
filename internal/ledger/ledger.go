// Package ledger holds the authoritative, persisted budgeting state:
// transactions, categories, recurring-expense definitions and the monthly
// income baseline. Every mutation applies in memory and then triggers exactly
// one snapshot save through the injected persister, so a reader immediately
// after a mutation always sees post-mutation state.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"masroufi/internal/core"
	"masroufi/internal/storage"
)

// Store is the single source of truth for ledger state. All access goes
// through its methods; consumers never retain references into its collections.
type Store struct {
	mu        sync.Mutex
	persister storage.Persister

	transactions  []core.Transaction
	categories    []core.Category
	recurring     []core.RecurringExpense
	monthlyIncome core.Money
	darkMode      bool

	lastID int64
}

// New loads the persisted snapshot (or the pristine seed state when none
// exists) and returns a ready store.
func New(ctx context.Context, persister storage.Persister) (*Store, error) {
	blob, err := persister.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	snap, err := storage.DecodeSnapshot(blob)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	s := &Store{
		persister:     persister,
		transactions:  snap.Transactions,
		categories:    snap.Categories,
		recurring:     snap.Recurring,
		monthlyIncome: snap.MonthlyIncome,
		darkMode:      snap.DarkMode,
	}
	// Seed the id counter past anything already in the ledger so fresh ids
	// stay unique across restarts.
	for _, t := range snap.Transactions {
		if n, err := strconv.ParseInt(t.ID, 10, 64); err == nil && n > s.lastID {
			s.lastID = n
		}
	}
	for _, re := range snap.Recurring {
		if n, err := strconv.ParseInt(re.ID, 10, 64); err == nil && n > s.lastID {
			s.lastID = n
		}
	}

	slog.InfoContext(ctx, "Ledger loaded",
		"transactions", len(s.transactions),
		"categories", len(s.categories),
		"recurring", len(s.recurring))
	return s, nil
}

// Reload replaces the in-memory state with the latest persisted snapshot.
// Consumers that share the snapshot with another process call this before
// reading, since writes from the other process bypass this store's memory.
func (s *Store) Reload(ctx context.Context) error {
	blob, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	snap, err := storage.DecodeSnapshot(blob)
	if err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = snap.Transactions
	s.categories = snap.Categories
	s.recurring = snap.Recurring
	s.monthlyIncome = snap.MonthlyIncome
	s.darkMode = snap.DarkMode
	for _, t := range snap.Transactions {
		if n, err := strconv.ParseInt(t.ID, 10, 64); err == nil && n > s.lastID {
			s.lastID = n
		}
	}
	return nil
}

// nextID returns a fresh unique id, monotonic within the process and across
// restarts of the same ledger. Caller must hold s.mu.
func (s *Store) nextID() string {
	id := time.Now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return strconv.FormatInt(id, 10)
}

// save persists the full state. Caller must hold s.mu. On failure the
// in-memory state stays applied; the session keeps running on last-known-good
// durability.
func (s *Store) save(ctx context.Context) error {
	blob, err := storage.EncodeSnapshot(storage.Snapshot{
		Transactions:  s.transactions,
		Categories:    s.categories,
		Recurring:     s.recurring,
		MonthlyIncome: s.monthlyIncome,
		DarkMode:      s.darkMode,
	})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.persister.Save(ctx, blob); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}

// AddTransaction assigns a fresh id and prepends the transaction. The amount
// is trusted as already validated by the caller.
func (s *Store) AddTransaction(ctx context.Context, data core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data.ID = s.nextID()
	s.transactions = append([]core.Transaction{data}, s.transactions...)
	return data, s.save(ctx)
}

// UpdateTransaction replaces the record matching tx.ID wholesale. A miss is a
// no-op; found reports whether anything changed.
func (s *Store) UpdateTransaction(ctx context.Context, tx core.Transaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.transactions {
		if s.transactions[i].ID == tx.ID {
			s.transactions[i] = tx
			return true, s.save(ctx)
		}
	}
	return false, nil
}

// DeleteTransaction removes the matching record. A miss is a no-op.
func (s *Store) DeleteTransaction(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.transactions {
		if s.transactions[i].ID == id {
			s.transactions = append(s.transactions[:i], s.transactions[i+1:]...)
			return true, s.save(ctx)
		}
	}
	return false, nil
}

// Transactions returns a copy of the transaction collection, most recent
// first.
func (s *Store) Transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}

// Transaction returns a single transaction by id.
func (s *Store) Transaction(id string) (core.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transactions {
		if t.ID == id {
			return t, true
		}
	}
	return core.Transaction{}, false
}

// Categories returns a copy of the category collection.
func (s *Store) Categories() []core.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, len(s.categories))
	copy(out, s.categories)
	return out
}

// UpdateCategory replaces the category matching c.ID in place. Identity never
// changes; there is no add or delete outside Reset.
func (s *Store) UpdateCategory(ctx context.Context, c core.Category) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.categories {
		if s.categories[i].ID == c.ID {
			s.categories[i] = c
			return true, s.save(ctx)
		}
	}
	return false, nil
}

// SetMonthlyIncome sets the fixed income baseline. Caller ensures amount >= 0.
func (s *Store) SetMonthlyIncome(ctx context.Context, amount core.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monthlyIncome = amount
	return s.save(ctx)
}

func (s *Store) MonthlyIncome() core.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.monthlyIncome
}

// AddRecurringExpense assigns a fresh id and stores the definition.
func (s *Store) AddRecurringExpense(ctx context.Context, data core.RecurringExpense) (core.RecurringExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data.ID = s.nextID()
	s.recurring = append(s.recurring, data)
	return data, s.save(ctx)
}

// UpdateRecurringExpense replaces the definition matching re.ID wholesale.
func (s *Store) UpdateRecurringExpense(ctx context.Context, re core.RecurringExpense) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.recurring {
		if s.recurring[i].ID == re.ID {
			s.recurring[i] = re
			return true, s.save(ctx)
		}
	}
	return false, nil
}

// DeleteRecurringExpense removes the matching definition. A miss is a no-op.
func (s *Store) DeleteRecurringExpense(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.recurring {
		if s.recurring[i].ID == id {
			s.recurring = append(s.recurring[:i], s.recurring[i+1:]...)
			return true, s.save(ctx)
		}
	}
	return false, nil
}

// RecurringExpenses returns a copy of the recurring definitions.
func (s *Store) RecurringExpenses() []core.RecurringExpense {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.RecurringExpense, len(s.recurring))
	copy(out, s.recurring)
	return out
}

// ApplyRecurringBatch materializes a reconciliation batch atomically: ids are
// assigned to the new transactions, watermark updates replace their matching
// definitions, and the whole batch lands in a single persistence write.
func (s *Store) ApplyRecurringBatch(ctx context.Context, created []core.Transaction, updated []core.RecurringExpense) ([]core.Transaction, error) {
	if len(created) == 0 && len(updated) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Transaction, 0, len(created))
	for _, tx := range created {
		tx.ID = s.nextID()
		s.transactions = append([]core.Transaction{tx}, s.transactions...)
		out = append(out, tx)
	}
	for _, re := range updated {
		for i := range s.recurring {
			if s.recurring[i].ID == re.ID {
				s.recurring[i] = re
				break
			}
		}
	}
	return out, s.save(ctx)
}

// SetDarkMode flips the persisted display-mode flag. The flag itself is a
// presentation concern; it only lives here because it rides in the snapshot.
func (s *Store) SetDarkMode(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.darkMode = enabled
	return s.save(ctx)
}

func (s *Store) DarkMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.darkMode
}

// Reset clears transactions and recurring definitions, restores the default
// category seed and zeroes the income baseline. Irreversible; any confirmation
// belongs to the caller.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions = []core.Transaction{}
	s.recurring = []core.RecurringExpense{}
	s.categories = core.DefaultCategories()
	s.monthlyIncome = core.Money{}

	slog.InfoContext(ctx, "Ledger reset to seed state")
	return s.save(ctx)
}
