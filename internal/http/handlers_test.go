package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"masroufi/internal/core"
	"masroufi/internal/export"
	"masroufi/internal/ledger"
	"masroufi/internal/services"
	"masroufi/internal/storage"
)

type fakeSink struct {
	rows []export.Row
	err  error
}

func (f *fakeSink) Append(_ context.Context, rows []export.Row) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, rows...)
	return nil
}

func newTestServer(t *testing.T, sink export.Sink) (*Server, *ledger.Store) {
	t.Helper()
	store, err := ledger.New(context.Background(), storage.NewMemoryPersister())
	if err != nil {
		t.Fatalf("ledger.New: %v", err)
	}
	txService := services.NewTransactionService(store, nil)
	processor := services.NewRecurringProcessor(store, nil)
	srv := NewServer(":0", store, txService, processor, sink)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, store
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doJSON(t, srv, http.MethodGet, path, nil)
		if rr.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rr.Code)
		}
	}
}

func TestCreateAndListTransactions(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := doJSON(t, srv, http.MethodPost, "/transactions", transactionRequest{
		Amount:     "45.50",
		CategoryID: "1",
		Note:       "lunch",
		Type:       "EXPENSE",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rr.Code, rr.Body.String())
	}
	var created transactionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.AmountCents != 4550 || created.ID == "" {
		t.Errorf("created = %+v", created)
	}

	rr = doJSON(t, srv, http.MethodGet, "/transactions", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	var list []transactionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].ID != created.ID {
		t.Errorf("list = %+v", list)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		name string
		req  transactionRequest
	}{
		{"zero amount", transactionRequest{Amount: "0", CategoryID: "1", Type: "EXPENSE"}},
		{"negative amount", transactionRequest{Amount: "-5", CategoryID: "1", Type: "EXPENSE"}},
		{"missing category", transactionRequest{Amount: "10", Type: "EXPENSE"}},
		{"bad type", transactionRequest{Amount: "10", CategoryID: "1", Type: "TRANSFER"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, srv, http.MethodPost, "/transactions", tt.req)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422", rr.Code)
			}
		})
	}
}

func TestDeleteTransaction(t *testing.T) {
	srv, store := newTestServer(t, nil)

	tx, err := store.AddTransaction(context.Background(), core.Transaction{
		Amount:     core.Money{Cents: 100},
		CategoryID: "1",
		Date:       time.Now(),
		Type:       core.Expense,
	})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	rr := doJSON(t, srv, http.MethodDelete, "/transactions?id="+tx.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}
	var resp map[string]bool
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if !resp["found"] {
		t.Error("delete of an existing record should report found")
	}

	rr = doJSON(t, srv, http.MethodDelete, "/transactions?id="+tx.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("repeat delete status = %d", rr.Code)
	}
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["found"] {
		t.Error("deleting a missing record must stay a silent no-op")
	}
}

func TestDashboardSummary(t *testing.T) {
	srv, store := newTestServer(t, nil)
	ctx := context.Background()

	store.SetMonthlyIncome(ctx, core.Money{Cents: 300000})
	store.AddTransaction(ctx, core.Transaction{
		Amount:     core.Money{Cents: 45000},
		CategoryID: "6",
		Date:       time.Now(),
		Type:       core.Expense,
	})

	rr := doJSON(t, srv, http.MethodGet, "/dashboard", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d, body %s", rr.Code, rr.Body.String())
	}
	var sum summaryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sum.TotalIncomeCents != 300000 {
		t.Errorf("TotalIncomeCents = %d, want 300000", sum.TotalIncomeCents)
	}
	if sum.ExpensesCents != 45000 {
		t.Errorf("ExpensesCents = %d, want 45000", sum.ExpensesCents)
	}
	if sum.BalanceCents != 255000 {
		t.Errorf("BalanceCents = %d, want 255000", sum.BalanceCents)
	}
	if len(sum.CategoryStats) != 1 {
		t.Errorf("got %d category stats, want 1", len(sum.CategoryStats))
	}
}

func TestDashboardTriggersReconciliation(t *testing.T) {
	srv, store := newTestServer(t, nil)

	_, err := store.AddRecurringExpense(context.Background(), core.RecurringExpense{
		Name:       "Rent",
		Amount:     core.Money{Cents: 450000},
		CategoryID: "6",
		DayOfMonth: 1, // always reached
	})
	if err != nil {
		t.Fatalf("AddRecurringExpense: %v", err)
	}

	rr := doJSON(t, srv, http.MethodGet, "/dashboard", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d", rr.Code)
	}

	txs := store.Transactions()
	if len(txs) != 1 {
		t.Fatalf("got %d transactions, want the materialized charge", len(txs))
	}
	if txs[0].Note != "[Auto] Rent" {
		t.Errorf("Note = %q", txs[0].Note)
	}

	// Second view in the same month must not duplicate
	doJSON(t, srv, http.MethodGet, "/dashboard", nil)
	if got := len(store.Transactions()); got != 1 {
		t.Errorf("after second view got %d transactions, want 1", got)
	}
}

func TestDashboardReflectsBackgroundReconciliation(t *testing.T) {
	srv, store := newTestServer(t, nil)

	doJSON(t, srv, http.MethodGet, "/dashboard", nil) // prime the cache, 0 expenses

	_, err := store.AddRecurringExpense(context.Background(), core.RecurringExpense{
		Name:       "Rent",
		Amount:     core.Money{Cents: 100000},
		CategoryID: "2",
		DayOfMonth: 1,
	})
	if err != nil {
		t.Fatalf("AddRecurringExpense: %v", err)
	}

	// The background ticker reconciles through the server
	applied, err := srv.Reconcile(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if applied != 1 {
		t.Fatalf("applied = %d, want 1", applied)
	}

	rr := doJSON(t, srv, http.MethodGet, "/dashboard", nil)
	var sum summaryResponse
	json.Unmarshal(rr.Body.Bytes(), &sum)
	if sum.ExpensesCents != 100000 {
		t.Errorf("ExpensesCents = %d, want 100000 after background reconciliation", sum.ExpensesCents)
	}
}

func TestDashboardCacheInvalidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	doJSON(t, srv, http.MethodGet, "/dashboard", nil) // prime the cache

	rr := doJSON(t, srv, http.MethodPost, "/transactions", transactionRequest{
		Amount:     "100",
		CategoryID: "1",
		Type:       "EXPENSE",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/dashboard", nil)
	var sum summaryResponse
	json.Unmarshal(rr.Body.Bytes(), &sum)
	if sum.ExpensesCents != 10000 {
		t.Errorf("ExpensesCents = %d, want 10000 after invalidation", sum.ExpensesCents)
	}
}

func TestRecurringLifecycle(t *testing.T) {
	srv, store := newTestServer(t, nil)

	// Create: day 1 is already past, so reconciliation fires immediately
	rr := doJSON(t, srv, http.MethodPost, "/recurring", recurringRequest{
		Name:       "Internet",
		Amount:     "399",
		CategoryID: "11",
		DayOfMonth: 1,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rr.Code, rr.Body.String())
	}
	var created recurringResponse
	json.Unmarshal(rr.Body.Bytes(), &created)
	if created.AmountCents != 39900 || created.ID == "" {
		t.Errorf("created = %+v", created)
	}
	if got := len(store.Transactions()); got != 1 {
		t.Errorf("got %d transactions after create, want 1 materialized", got)
	}

	// Edit keeps the watermark: no second charge this month
	rr = doJSON(t, srv, http.MethodPut, "/recurring", recurringRequest{
		ID:         created.ID,
		Name:       "Internet Fibre",
		Amount:     "449",
		CategoryID: "11",
		DayOfMonth: 1,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d", rr.Code)
	}
	if got := len(store.Transactions()); got != 1 {
		t.Errorf("edit re-applied the charge, got %d transactions", got)
	}

	rr = doJSON(t, srv, http.MethodDelete, "/recurring?id="+created.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}
	if got := len(store.RecurringExpenses()); got != 0 {
		t.Errorf("got %d definitions after delete", got)
	}
}

func TestRecurringValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := doJSON(t, srv, http.MethodPost, "/recurring", recurringRequest{
		Name:       "Bad day",
		Amount:     "10",
		CategoryID: "1",
		DayOfMonth: 32,
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rr.Code)
	}
}

func TestUpdateCategory(t *testing.T) {
	srv, store := newTestServer(t, nil)

	rr := doJSON(t, srv, http.MethodPut, "/categories", categoryRequest{
		ID:          "1",
		Name:        "Groceries",
		Icon:        "🛒",
		Color:       "#4CAF50",
		BudgetLimit: "2000",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rr.Code, rr.Body.String())
	}

	for _, c := range store.Categories() {
		if c.ID == "1" {
			if c.Name != "Groceries" || c.BudgetLimit.Cents != 200000 {
				t.Errorf("category = %+v", c)
			}
			return
		}
	}
	t.Fatal("category 1 not found")
}

func TestIncomeAndTheme(t *testing.T) {
	srv, store := newTestServer(t, nil)

	rr := doJSON(t, srv, http.MethodPut, "/income", map[string]string{"amount": "3000"})
	if rr.Code != http.StatusOK {
		t.Fatalf("income status = %d", rr.Code)
	}
	if store.MonthlyIncome().Cents != 300000 {
		t.Errorf("income = %d, want 300000", store.MonthlyIncome().Cents)
	}

	rr = doJSON(t, srv, http.MethodPost, "/theme", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("theme status = %d", rr.Code)
	}
	if !store.DarkMode() {
		t.Error("first toggle should enable dark mode")
	}
	doJSON(t, srv, http.MethodPost, "/theme", nil)
	if store.DarkMode() {
		t.Error("second toggle should disable dark mode")
	}
}

func TestReset(t *testing.T) {
	srv, store := newTestServer(t, nil)
	ctx := context.Background()

	store.AddTransaction(ctx, core.Transaction{
		Amount: core.Money{Cents: 100}, CategoryID: "1", Date: time.Now(), Type: core.Expense,
	})
	store.SetMonthlyIncome(ctx, core.Money{Cents: 300000})

	rr := doJSON(t, srv, http.MethodPost, "/reset", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rr.Code)
	}
	if len(store.Transactions()) != 0 || store.MonthlyIncome().Cents != 0 {
		t.Error("reset did not clear the ledger")
	}
}

func TestExport(t *testing.T) {
	sink := &fakeSink{}
	srv, store := newTestServer(t, sink)

	store.AddTransaction(context.Background(), core.Transaction{
		Amount: core.Money{Cents: 45000}, CategoryID: "1", Date: time.Now(), Type: core.Expense,
	})

	rr := doJSON(t, srv, http.MethodPost, "/export", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("export status = %d, body %s", rr.Code, rr.Body.String())
	}
	if len(sink.rows) != 1 {
		t.Errorf("sink got %d rows, want 1", len(sink.rows))
	}
}

func TestExportWithoutSink(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := doJSON(t, srv, http.MethodPost, "/export", nil)
	if rr.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	cases := []struct {
		method, path string
	}{
		{http.MethodDelete, "/dashboard"},
		{http.MethodGet, "/theme"},
		{http.MethodGet, "/reset"},
		{http.MethodPost, "/income"},
	}
	for _, tc := range cases {
		rr := doJSON(t, srv, tc.method, tc.path, nil)
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s status = %d, want 405", tc.method, tc.path, rr.Code)
		}
	}
}

func TestRateLimitOnMutations(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var limited bool
	for i := 0; i < 70; i++ {
		rr := doJSON(t, srv, http.MethodPost, "/theme", nil)
		if rr.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("mutating requests were never rate limited")
	}

	// Reads stay unthrottled
	for i := 0; i < 70; i++ {
		rr := doJSON(t, srv, http.MethodGet, "/transactions", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("read %d status = %d", i, rr.Code)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := doJSON(t, srv, http.MethodGet, "/dashboard", nil)
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}

func TestDashboardMonthQuery(t *testing.T) {
	srv, store := newTestServer(t, nil)
	ctx := context.Background()

	now := time.Now()
	prev := time.Date(now.Year(), now.Month(), 1, 12, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	store.AddTransaction(ctx, core.Transaction{
		Amount: core.Money{Cents: 7000}, CategoryID: "1", Date: prev, Type: core.Expense,
	})

	path := fmt.Sprintf("/dashboard?year=%d&month=%d", prev.Year(), int(prev.Month()))
	rr := doJSON(t, srv, http.MethodGet, path, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var sum summaryResponse
	json.Unmarshal(rr.Body.Bytes(), &sum)
	if sum.ExpensesCents != 7000 {
		t.Errorf("ExpensesCents = %d, want 7000 for the queried month", sum.ExpensesCents)
	}

	rr = doJSON(t, srv, http.MethodGet, "/dashboard?month=13", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("month=13 status = %d, want 400", rr.Code)
	}
}
