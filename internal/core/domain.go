package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Expense TransactionType = "EXPENSE"
	Income  TransactionType = "INCOME"
)

// IncomeCategoryThreshold splits the seeded id space: numeric ids below it are
// expense categories, ids at or above it are income categories. The partition
// is fixed at seed time and never changes.
const IncomeCategoryThreshold = 100

type (
	TransactionType string

	Money struct {
		Cents int64
	}

	Category struct {
		ID          string
		Name        string
		Icon        string
		Color       string
		BudgetLimit Money // zero means no limit
	}

	Transaction struct {
		ID         string
		Amount     Money
		CategoryID string
		Date       time.Time
		Note       string
		Type       TransactionType
	}

	RecurringExpense struct {
		ID         string
		Name       string
		Amount     Money
		CategoryID string
		DayOfMonth int // 1-31, literal day-of-month match
		// LastAppliedDate is the reconciliation watermark: the most recent
		// date on which this definition materialized a transaction. Zero when
		// it never fired. Mutated only by the reconciliation engine.
		LastAppliedDate time.Time
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDay    = errors.New("invalid day of month")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidType   = errors.New("invalid transaction type")
	ErrEmptyName     = errors.New("empty name")
	ErrEmptyCategory = errors.New("empty category id")
)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	switch t.Type {
	case Expense, Income:
	default:
		return ErrInvalidType
	}
	return nil
}

func (re RecurringExpense) Validate() error {
	if len(strings.TrimSpace(re.Name)) == 0 {
		return ErrEmptyName
	}
	if len(re.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if err := re.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(re.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if re.DayOfMonth < 1 || re.DayOfMonth > 31 {
		return ErrInvalidDay
	}
	return nil
}

// SameMonth reports whether a and b fall in the same calendar month and year.
// A zero time is never in the same month as anything.
func SameMonth(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	return a.Year() == b.Year() && a.Month() == b.Month()
}
