package core

import (
	"sort"
	"time"
)

type (
	// MonthTotals are the raw totals for one calendar month.
	MonthTotals struct {
		Expenses    Money
		TotalIncome Money
		Balance     Money
	}

	// CategoryStat is one row of the per-category expense breakdown.
	CategoryStat struct {
		ID           string
		Name         string
		Color        string
		Amount       Money
		Limit        Money
		IsOverBudget bool
		Percent      float64
	}

	// Variations are month-over-month percentage changes.
	Variations struct {
		Income   float64
		Expenses float64
	}

	// Summary is the full financial view model for a reference month.
	Summary struct {
		MonthTotals
		Savings       Money // alias of Balance, kept for consumers
		Previous      MonthTotals
		Variations    Variations
		SavingsRate   float64
		Overspent     bool
		CategoryStats []CategoryStat
	}
)

// ComputeSummary derives the financial summary for the calendar month of
// referenceDate, plus the immediately preceding month for comparison. It is a
// pure function of its inputs: no caching, no store access, no side effects.
func ComputeSummary(transactions []Transaction, monthlyIncome Money, categories []Category, referenceDate time.Time) Summary {
	current := totalsForMonth(transactions, monthlyIncome, referenceDate)

	// First of the reference month keeps AddDate from sliding across short
	// months when stepping back.
	prevRef := time.Date(referenceDate.Year(), referenceDate.Month(), 1, 0, 0, 0, 0, referenceDate.Location()).AddDate(0, -1, 0)
	previous := totalsForMonth(transactions, monthlyIncome, prevRef)

	s := Summary{
		MonthTotals: current,
		Savings:     current.Balance,
		Previous:    previous,
		Variations: Variations{
			Income:   variation(current.TotalIncome.Cents, previous.TotalIncome.Cents),
			Expenses: variation(current.Expenses.Cents, previous.Expenses.Cents),
		},
		Overspent:     current.Balance.Cents < 0,
		CategoryStats: categoryBreakdown(transactions, categories, current.Expenses, referenceDate),
	}
	if current.TotalIncome.Cents > 0 {
		s.SavingsRate = float64(current.Balance.Cents) / float64(current.TotalIncome.Cents) * 100
	}
	return s
}

func totalsForMonth(transactions []Transaction, monthlyIncome Money, ref time.Time) MonthTotals {
	var expenses, extraIncome int64
	for _, t := range transactions {
		if !SameMonth(t.Date, ref) {
			continue
		}
		switch t.Type {
		case Expense:
			expenses += t.Amount.Cents
		case Income:
			extraIncome += t.Amount.Cents
		}
	}
	totalIncome := monthlyIncome.Cents + extraIncome
	return MonthTotals{
		Expenses:    Money{Cents: expenses},
		TotalIncome: Money{Cents: totalIncome},
		Balance:     Money{Cents: totalIncome - expenses},
	}
}

// variation returns the month-over-month change in percent. A month that goes
// from nothing to something is reported as +100%; two empty months as 0.
func variation(curr, prev int64) float64 {
	if prev == 0 {
		if curr > 0 {
			return 100
		}
		return 0
	}
	return float64(curr-prev) / float64(prev) * 100
}

func categoryBreakdown(transactions []Transaction, categories []Category, monthExpenses Money, ref time.Time) []CategoryStat {
	sums := make(map[string]int64)
	var order []string
	for _, t := range transactions {
		if t.Type != Expense || !SameMonth(t.Date, ref) {
			continue
		}
		if _, seen := sums[t.CategoryID]; !seen {
			order = append(order, t.CategoryID)
		}
		sums[t.CategoryID] += t.Amount.Cents
	}

	byID := make(map[string]Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	stats := make([]CategoryStat, 0, len(order))
	for _, catID := range order {
		amount := sums[catID]
		name := OtherCategoryName
		color := NeutralColor
		var limit int64
		if cat, ok := byID[catID]; ok {
			name = cat.Name
			color = cat.Color
			limit = cat.BudgetLimit.Cents
		}
		over := limit > 0 && amount > limit
		if over {
			color = AlertColor
		}
		var percent float64
		if monthExpenses.Cents > 0 {
			percent = float64(amount) / float64(monthExpenses.Cents) * 100
		}
		stats = append(stats, CategoryStat{
			ID:           catID,
			Name:         name,
			Color:        color,
			Amount:       Money{Cents: amount},
			Limit:        Money{Cents: limit},
			IsOverBudget: over,
			Percent:      percent,
		})
	}

	// Stable keeps first-occurrence order for equal amounts.
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Amount.Cents > stats[j].Amount.Cents
	})
	return stats
}
