package ledger

import (
	"context"
	"testing"
	"time"

	"masroufi/internal/core"
	"masroufi/internal/storage"
)

func newTestStore(t *testing.T) (*Store, *storage.MemoryPersister) {
	t.Helper()
	p := storage.NewMemoryPersister()
	s, err := New(context.Background(), p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, p
}

func testExpense(cents int64) core.Transaction {
	return core.Transaction{
		Amount:     core.Money{Cents: cents},
		CategoryID: "1",
		Date:       time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		Type:       core.Expense,
	}
}

func TestNewSeedsDefaults(t *testing.T) {
	s, p := newTestStore(t)

	if got := len(s.Transactions()); got != 0 {
		t.Errorf("fresh store has %d transactions", got)
	}
	if got, want := len(s.Categories()), len(core.DefaultCategories()); got != want {
		t.Errorf("fresh store has %d categories, want %d", got, want)
	}
	if s.MonthlyIncome().Cents != 0 {
		t.Error("fresh store should have zero income baseline")
	}
	if p.Saves() != 0 {
		t.Errorf("loading must not write, got %d saves", p.Saves())
	}
}

func TestAddTransaction(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	first, err := s.AddTransaction(ctx, testExpense(100))
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	second, err := s.AddTransaction(ctx, testExpense(200))
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	if first.ID == "" || second.ID == "" || first.ID == second.ID {
		t.Errorf("ids must be unique and non-empty: %q, %q", first.ID, second.ID)
	}

	txs := s.Transactions()
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}
	if txs[0].ID != second.ID {
		t.Error("most recent transaction must come first")
	}
	if p.Saves() != 2 {
		t.Errorf("got %d saves, want one per mutation", p.Saves())
	}
}

func TestUpdateTransaction(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	tx, _ := s.AddTransaction(ctx, testExpense(100))
	savesBefore := p.Saves()

	tx.Amount = core.Money{Cents: 999}
	found, err := s.UpdateTransaction(ctx, tx)
	if err != nil || !found {
		t.Fatalf("UpdateTransaction: found=%v err=%v", found, err)
	}
	got, _ := s.Transaction(tx.ID)
	if got.Amount.Cents != 999 {
		t.Errorf("amount = %d, want 999", got.Amount.Cents)
	}

	// A miss is a silent no-op: no error, no write
	missing := testExpense(100)
	missing.ID = "nope"
	found, err = s.UpdateTransaction(ctx, missing)
	if err != nil {
		t.Fatalf("miss must not error: %v", err)
	}
	if found {
		t.Error("miss reported found=true")
	}
	if p.Saves() != savesBefore+1 {
		t.Errorf("miss must not persist, got %d saves", p.Saves())
	}
}

func TestDeleteTransaction(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	tx, _ := s.AddTransaction(ctx, testExpense(100))
	savesBefore := p.Saves()

	found, err := s.DeleteTransaction(ctx, tx.ID)
	if err != nil || !found {
		t.Fatalf("DeleteTransaction: found=%v err=%v", found, err)
	}
	if len(s.Transactions()) != 0 {
		t.Error("transaction still present after delete")
	}

	found, err = s.DeleteTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("miss must not error: %v", err)
	}
	if found {
		t.Error("miss reported found=true")
	}
	if p.Saves() != savesBefore+1 {
		t.Errorf("miss must not persist, got %d saves", p.Saves())
	}
}

func TestUpdateCategory(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	cats := s.Categories()
	target := cats[0]
	target.BudgetLimit = core.Money{Cents: 50000}
	target.Name = "Courses"

	found, err := s.UpdateCategory(ctx, target)
	if err != nil || !found {
		t.Fatalf("UpdateCategory: found=%v err=%v", found, err)
	}

	for _, c := range s.Categories() {
		if c.ID == target.ID {
			if c.Name != "Courses" || c.BudgetLimit.Cents != 50000 {
				t.Errorf("category not updated: %+v", c)
			}
			return
		}
	}
	t.Fatal("category vanished")
}

func TestApplyRecurringBatchSingleWrite(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	def, _ := s.AddRecurringExpense(ctx, core.RecurringExpense{
		Name:       "Rent",
		Amount:     core.Money{Cents: 450000},
		CategoryID: "6",
		DayOfMonth: 1,
	})
	savesBefore := p.Saves()

	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	def.LastAppliedDate = now
	created := []core.Transaction{
		{Amount: def.Amount, CategoryID: def.CategoryID, Date: now, Note: "[Auto] Rent", Type: core.Expense},
		{Amount: core.Money{Cents: 5000}, CategoryID: "4", Date: now, Note: "[Auto] Gym", Type: core.Expense},
	}

	out, err := s.ApplyRecurringBatch(ctx, created, []core.RecurringExpense{def})
	if err != nil {
		t.Fatalf("ApplyRecurringBatch: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d applied, want 2", len(out))
	}
	if out[0].ID == "" || out[1].ID == "" || out[0].ID == out[1].ID {
		t.Errorf("batch ids must be unique and non-empty: %q, %q", out[0].ID, out[1].ID)
	}
	if p.Saves() != savesBefore+1 {
		t.Errorf("batch took %d writes, want 1", p.Saves()-savesBefore)
	}

	defs := s.RecurringExpenses()
	if len(defs) != 1 || !defs[0].LastAppliedDate.Equal(now) {
		t.Errorf("watermark not applied: %+v", defs)
	}
}

func TestApplyRecurringBatchEmpty(t *testing.T) {
	s, p := newTestStore(t)

	out, err := s.ApplyRecurringBatch(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if out != nil {
		t.Errorf("empty batch returned %v", out)
	}
	if p.Saves() != 0 {
		t.Error("empty batch must not write")
	}
}

func TestDarkModeRoundTrip(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	if s.DarkMode() {
		t.Error("dark mode should default to off")
	}
	if err := s.SetDarkMode(ctx, true); err != nil {
		t.Fatalf("SetDarkMode: %v", err)
	}

	reloaded, err := New(ctx, p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !reloaded.DarkMode() {
		t.Error("dark mode not persisted")
	}
}

func TestReset(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.AddTransaction(ctx, testExpense(100))
	s.AddRecurringExpense(ctx, core.RecurringExpense{Name: "Rent", Amount: core.Money{Cents: 1}, CategoryID: "6", DayOfMonth: 1})
	s.SetMonthlyIncome(ctx, core.Money{Cents: 300000})

	cats := s.Categories()
	modified := cats[0]
	modified.Name = "Renamed"
	s.UpdateCategory(ctx, modified)

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	if len(s.Transactions()) != 0 {
		t.Error("transactions survived reset")
	}
	if len(s.RecurringExpenses()) != 0 {
		t.Error("recurring definitions survived reset")
	}
	if s.MonthlyIncome().Cents != 0 {
		t.Error("income baseline survived reset")
	}
	if got := s.Categories()[0].Name; got == "Renamed" {
		t.Error("category edits survived reset")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	p := storage.NewMemoryPersister()
	ctx := context.Background()

	s1, err := New(ctx, p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tx, _ := s1.AddTransaction(ctx, testExpense(4500))
	s1.SetMonthlyIncome(ctx, core.Money{Cents: 300000})

	s2, err := New(ctx, p)
	if err != nil {
		t.Fatalf("New after save: %v", err)
	}
	got, ok := s2.Transaction(tx.ID)
	if !ok || got.Amount.Cents != 4500 {
		t.Errorf("transaction lost across restart: ok=%v %+v", ok, got)
	}
	if s2.MonthlyIncome().Cents != 300000 {
		t.Error("income baseline lost across restart")
	}

	// New ids must stay above anything reloaded
	next, _ := s2.AddTransaction(ctx, testExpense(100))
	if next.ID == tx.ID {
		t.Error("id reused after restart")
	}
}
