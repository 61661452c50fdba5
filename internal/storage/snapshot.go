package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"masroufi/internal/core"
)

// Snapshot is the in-memory ledger state as it crosses the persistence
// boundary.
type Snapshot struct {
	Transactions  []core.Transaction
	Categories    []core.Category
	Recurring     []core.RecurringExpense
	MonthlyIncome core.Money
	DarkMode      bool
}

// Wire types. Older blobs may omit whole fields; DecodeSnapshot fills the
// documented defaults, so every field stays optional here.
type (
	snapshotJSON struct {
		Transactions  []transactionJSON `json:"transactions"`
		Categories    []categoryJSON    `json:"categories"`
		Recurring     []recurringJSON   `json:"recurringExpenses,omitempty"`
		MonthlyIncome int64             `json:"monthlyIncome"`
		DarkMode      bool              `json:"isDarkMode"`
	}

	transactionJSON struct {
		ID         string    `json:"id"`
		Amount     int64     `json:"amountCents"`
		CategoryID string    `json:"categoryId"`
		Date       time.Time `json:"date"`
		Note       string    `json:"note,omitempty"`
		Type       string    `json:"type"`
	}

	categoryJSON struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Icon        string `json:"icon"`
		Color       string `json:"color"`
		BudgetLimit int64  `json:"budgetLimitCents,omitempty"`
	}

	recurringJSON struct {
		ID          string     `json:"id"`
		Name        string     `json:"name"`
		Amount      int64      `json:"amountCents"`
		CategoryID  string     `json:"categoryId"`
		DayOfMonth  int        `json:"dayOfMonth"`
		LastApplied *time.Time `json:"lastAppliedDate,omitempty"`
	}
)

// EncodeSnapshot serializes the full ledger state into the persisted blob
// format.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	out := snapshotJSON{
		Transactions:  make([]transactionJSON, 0, len(s.Transactions)),
		Categories:    make([]categoryJSON, 0, len(s.Categories)),
		Recurring:     make([]recurringJSON, 0, len(s.Recurring)),
		MonthlyIncome: s.MonthlyIncome.Cents,
		DarkMode:      s.DarkMode,
	}
	for _, t := range s.Transactions {
		out.Transactions = append(out.Transactions, transactionJSON{
			ID:         t.ID,
			Amount:     t.Amount.Cents,
			CategoryID: t.CategoryID,
			Date:       t.Date,
			Note:       t.Note,
			Type:       string(t.Type),
		})
	}
	for _, c := range s.Categories {
		out.Categories = append(out.Categories, categoryJSON{
			ID:          c.ID,
			Name:        c.Name,
			Icon:        c.Icon,
			Color:       c.Color,
			BudgetLimit: c.BudgetLimit.Cents,
		})
	}
	for _, re := range s.Recurring {
		rj := recurringJSON{
			ID:         re.ID,
			Name:       re.Name,
			Amount:     re.Amount.Cents,
			CategoryID: re.CategoryID,
			DayOfMonth: re.DayOfMonth,
		}
		if !re.LastAppliedDate.IsZero() {
			d := re.LastAppliedDate
			rj.LastApplied = &d
		}
		out.Recurring = append(out.Recurring, rj)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a persisted blob, applying backward-compatible
// defaults: a nil blob yields the pristine seed state, missing categories fall
// back to the default seed set, and a missing recurring collection decodes to
// empty.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	if len(data) == 0 {
		return DefaultSnapshot(), nil
	}
	var in snapshotJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	s := Snapshot{
		Transactions:  make([]core.Transaction, 0, len(in.Transactions)),
		Recurring:     make([]core.RecurringExpense, 0, len(in.Recurring)),
		MonthlyIncome: core.Money{Cents: in.MonthlyIncome},
		DarkMode:      in.DarkMode,
	}
	for _, t := range in.Transactions {
		s.Transactions = append(s.Transactions, core.Transaction{
			ID:         t.ID,
			Amount:     core.Money{Cents: t.Amount},
			CategoryID: t.CategoryID,
			Date:       t.Date,
			Note:       t.Note,
			Type:       core.TransactionType(t.Type),
		})
	}
	if len(in.Categories) == 0 {
		s.Categories = core.DefaultCategories()
	} else {
		s.Categories = make([]core.Category, 0, len(in.Categories))
		for _, c := range in.Categories {
			s.Categories = append(s.Categories, core.Category{
				ID:          c.ID,
				Name:        c.Name,
				Icon:        c.Icon,
				Color:       c.Color,
				BudgetLimit: core.Money{Cents: c.BudgetLimit},
			})
		}
	}
	for _, re := range in.Recurring {
		r := core.RecurringExpense{
			ID:         re.ID,
			Name:       re.Name,
			Amount:     core.Money{Cents: re.Amount},
			CategoryID: re.CategoryID,
			DayOfMonth: re.DayOfMonth,
		}
		if re.LastApplied != nil {
			r.LastAppliedDate = *re.LastApplied
		}
		s.Recurring = append(s.Recurring, r)
	}
	return s, nil
}

// DefaultSnapshot is the pristine state: seeded categories, nothing else.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Transactions: []core.Transaction{},
		Categories:   core.DefaultCategories(),
		Recurring:    []core.RecurringExpense{},
	}
}
