package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"masroufi/internal/cache"
	"masroufi/internal/core"
	"masroufi/internal/export"
)

type (
	transactionRequest struct {
		ID         string `json:"id,omitempty"`
		Amount     string `json:"amount"`
		CategoryID string `json:"categoryId"`
		Date       string `json:"date,omitempty"`
		Note       string `json:"note,omitempty"`
		Type       string `json:"type"`
	}

	transactionResponse struct {
		ID          string    `json:"id"`
		AmountCents int64     `json:"amountCents"`
		CategoryID  string    `json:"categoryId"`
		Date        time.Time `json:"date"`
		Note        string    `json:"note,omitempty"`
		Type        string    `json:"type"`
	}

	categoryRequest struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Icon        string `json:"icon"`
		Color       string `json:"color"`
		BudgetLimit string `json:"budgetLimit,omitempty"` // empty or "0" means no limit
	}

	categoryResponse struct {
		ID               string `json:"id"`
		Name             string `json:"name"`
		Icon             string `json:"icon"`
		Color            string `json:"color"`
		BudgetLimitCents int64  `json:"budgetLimitCents,omitempty"`
	}

	recurringRequest struct {
		ID         string `json:"id,omitempty"`
		Name       string `json:"name"`
		Amount     string `json:"amount"`
		CategoryID string `json:"categoryId"`
		DayOfMonth int    `json:"dayOfMonth"`
	}

	recurringResponse struct {
		ID              string     `json:"id"`
		Name            string     `json:"name"`
		AmountCents     int64      `json:"amountCents"`
		CategoryID      string     `json:"categoryId"`
		DayOfMonth      int        `json:"dayOfMonth"`
		LastAppliedDate *time.Time `json:"lastAppliedDate,omitempty"`
	}

	monthTotalsResponse struct {
		ExpensesCents    int64 `json:"expensesCents"`
		TotalIncomeCents int64 `json:"totalIncomeCents"`
		BalanceCents     int64 `json:"balanceCents"`
	}

	categoryStatResponse struct {
		ID           string  `json:"id"`
		Name         string  `json:"name"`
		Color        string  `json:"color"`
		AmountCents  int64   `json:"amountCents"`
		LimitCents   int64   `json:"limitCents"`
		IsOverBudget bool    `json:"isOverBudget"`
		Percent      float64 `json:"percent"`
	}

	summaryResponse struct {
		monthTotalsResponse
		SavingsCents  int64                  `json:"savingsCents"`
		Previous      monthTotalsResponse    `json:"previous"`
		Variations    variationsResponse     `json:"variations"`
		SavingsRate   float64                `json:"savingsRate"`
		Overspent     bool                   `json:"overspent"`
		CategoryStats []categoryStatResponse `json:"categoryStats"`
	}

	variationsResponse struct {
		Income   float64 `json:"income"`
		Expenses float64 `json:"expenses"`
	}
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// parseAmount accepts a decimal string; empty and "0" mean zero (used for the
// no-limit and zero-income cases).
func parseAmount(s string, allowZero bool) (core.Money, error) {
	s = strings.TrimSpace(s)
	if allowZero && (s == "" || s == "0") {
		return core.Money{}, nil
	}
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Now(), nil
	}
	if d, err := time.Parse(time.RFC3339, s); err == nil {
		return d, nil
	}
	return time.Parse("2006-01-02", s)
}

// invalidateAround drops the cached summary for the transaction's month and
// the one after it, whose month-over-month variation depends on it.
func (s *Server) invalidateAround(d time.Time) {
	s.summaryCache.Delete(cache.MonthKey(d.Year(), int(d.Month())))
	next := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	s.summaryCache.Delete(cache.MonthKey(next.Year(), int(next.Month())))
}

// Reconcile runs the recurring check and drops the cached summaries any
// materialized charges touch. Every reconciliation in this process goes
// through here, background ticker included, so the cache never outlives a
// ledger mutation.
func (s *Server) Reconcile(ctx context.Context, now time.Time) (int, error) {
	applied, err := s.processor.CheckRecurringTransactions(ctx, now)
	if applied > 0 {
		s.invalidateAround(now)
	}
	return applied, err
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		AmountCents: t.Amount.Cents,
		CategoryID:  t.CategoryID,
		Date:        t.Date,
		Note:        t.Note,
		Type:        string(t.Type),
	}
}

func toSummaryResponse(sum core.Summary) summaryResponse {
	resp := summaryResponse{
		monthTotalsResponse: monthTotalsResponse{
			ExpensesCents:    sum.Expenses.Cents,
			TotalIncomeCents: sum.TotalIncome.Cents,
			BalanceCents:     sum.Balance.Cents,
		},
		SavingsCents: sum.Savings.Cents,
		Previous: monthTotalsResponse{
			ExpensesCents:    sum.Previous.Expenses.Cents,
			TotalIncomeCents: sum.Previous.TotalIncome.Cents,
			BalanceCents:     sum.Previous.Balance.Cents,
		},
		Variations: variationsResponse{
			Income:   sum.Variations.Income,
			Expenses: sum.Variations.Expenses,
		},
		SavingsRate:   sum.SavingsRate,
		Overspent:     sum.Overspent,
		CategoryStats: make([]categoryStatResponse, 0, len(sum.CategoryStats)),
	}
	for _, cs := range sum.CategoryStats {
		resp.CategoryStats = append(resp.CategoryStats, categoryStatResponse{
			ID:           cs.ID,
			Name:         cs.Name,
			Color:        cs.Color,
			AmountCents:  cs.Amount.Cents,
			LimitCents:   cs.Limit.Cents,
			IsOverBudget: cs.IsOverBudget,
			Percent:      cs.Percent,
		})
	}
	return resp
}

// handleDashboard reconciles due recurring charges and returns the summary
// for the requested month (default: the current one).
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	now := time.Now()
	year := now.Year()
	month := int(now.Month())
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			year = y
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			month = m
		}
	}
	if month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "month must be between 1 and 12")
		return
	}

	// Dashboard focus is the reconciliation trigger: check every time, not
	// just at startup.
	if _, err := s.Reconcile(r.Context(), now); err != nil {
		// Aggregation over current state is still valid
		slog.ErrorContext(r.Context(), "Recurring reconciliation failed", "error", err)
	}

	key := cache.MonthKey(year, month)
	if cached, found := s.summaryCache.Get(key); found {
		slog.DebugContext(r.Context(), "Summary cache hit", "year", year, "month", month)
		writeJSON(w, http.StatusOK, toSummaryResponse(cached))
		return
	}

	ref := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	sum := core.ComputeSummary(s.store.Transactions(), s.store.MonthlyIncome(), s.store.Categories(), ref)
	s.summaryCache.Set(key, sum)

	writeJSON(w, http.StatusOK, toSummaryResponse(sum))
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listTransactions(w, r)
	case http.MethodPost:
		s.createTransaction(w, r)
	case http.MethodPut:
		s.updateTransaction(w, r)
	case http.MethodDelete:
		s.deleteTransaction(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, PUT, DELETE")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) listTransactions(w http.ResponseWriter, _ *http.Request) {
	txs := s.store.Transactions()
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) parseTransaction(req transactionRequest) (core.Transaction, error) {
	amount, err := parseAmount(req.Amount, false)
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return core.Transaction{}, core.ErrInvalidDate
	}
	return core.Transaction{
		ID:         req.ID,
		Amount:     amount,
		CategoryID: strings.TrimSpace(req.CategoryID),
		Date:       date,
		Note:       strings.TrimSpace(req.Note),
		Type:       core.TransactionType(req.Type),
	}, nil
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	data, err := s.parseTransaction(req)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	tx, err := s.txService.CreateTransaction(r.Context(), data)
	if err != nil {
		slog.ErrorContext(r.Context(), "Transaction create failed", "error", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.invalidateAround(tx.Date)
	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

func (s *Server) updateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeError(w, http.StatusBadRequest, "missing transaction id")
		return
	}

	tx, err := s.parseTransaction(req)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	// A previous version of the record may sit in a different month; drop
	// both cached summaries.
	if old, ok := s.store.Transaction(tx.ID); ok {
		s.invalidateAround(old.Date)
	}

	found, err := s.txService.UpdateTransaction(r.Context(), tx)
	if err != nil {
		slog.ErrorContext(r.Context(), "Transaction update failed", "error", err, "id", tx.ID)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if found {
		s.invalidateAround(tx.Date)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"found": found})
}

func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transaction id")
		return
	}

	if old, ok := s.store.Transaction(id); ok {
		s.invalidateAround(old.Date)
	}

	found, err := s.txService.DeleteTransaction(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Transaction delete failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"found": found})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cats := s.store.Categories()
		out := make([]categoryResponse, 0, len(cats))
		for _, c := range cats {
			out = append(out, categoryResponse{
				ID:               c.ID,
				Name:             c.Name,
				Icon:             c.Icon,
				Color:            c.Color,
				BudgetLimitCents: c.BudgetLimit.Cents,
			})
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPut:
		var req categoryRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.Name) == "" {
			writeError(w, http.StatusUnprocessableEntity, "id and name are required")
			return
		}
		limit, err := parseAmount(req.BudgetLimit, true)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid budget limit")
			return
		}

		found, err := s.store.UpdateCategory(r.Context(), core.Category{
			ID:          strings.TrimSpace(req.ID),
			Name:        strings.TrimSpace(req.Name),
			Icon:        strings.TrimSpace(req.Icon),
			Color:       strings.TrimSpace(req.Color),
			BudgetLimit: limit,
		})
		if err != nil {
			slog.ErrorContext(r.Context(), "Category update failed", "error", err, "id", req.ID)
			writeError(w, http.StatusInternalServerError, "update failed")
			return
		}

		// Budget limits apply retroactively to every displayed month
		s.summaryCache.Clear()
		writeJSON(w, http.StatusOK, map[string]bool{"found": found})
	default:
		w.Header().Set("Allow", "GET, PUT")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRecurring(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listRecurring(w)
	case http.MethodPost, http.MethodPut:
		s.saveRecurring(w, r)
	case http.MethodDelete:
		id := strings.TrimSpace(r.URL.Query().Get("id"))
		if id == "" {
			writeError(w, http.StatusBadRequest, "missing recurring expense id")
			return
		}
		found, err := s.store.DeleteRecurringExpense(r.Context(), id)
		if err != nil {
			slog.ErrorContext(r.Context(), "Recurring delete failed", "error", err, "id", id)
			writeError(w, http.StatusInternalServerError, "delete failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"found": found})
	default:
		w.Header().Set("Allow", "GET, POST, PUT, DELETE")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) listRecurring(w http.ResponseWriter) {
	defs := s.store.RecurringExpenses()
	out := make([]recurringResponse, 0, len(defs))
	for _, re := range defs {
		resp := recurringResponse{
			ID:          re.ID,
			Name:        re.Name,
			AmountCents: re.Amount.Cents,
			CategoryID:  re.CategoryID,
			DayOfMonth:  re.DayOfMonth,
		}
		if !re.LastAppliedDate.IsZero() {
			d := re.LastAppliedDate
			resp.LastAppliedDate = &d
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

// saveRecurring creates (POST) or replaces (PUT) a recurring definition and
// immediately re-runs reconciliation, so a charge whose day has already
// passed lands in the ledger right away.
func (s *Server) saveRecurring(w http.ResponseWriter, r *http.Request) {
	var req recurringRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := parseAmount(req.Amount, false)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}
	def := core.RecurringExpense{
		ID:         strings.TrimSpace(req.ID),
		Name:       strings.TrimSpace(req.Name),
		Amount:     amount,
		CategoryID: strings.TrimSpace(req.CategoryID),
		DayOfMonth: req.DayOfMonth,
	}
	if err := def.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var (
		saved  core.RecurringExpense
		status = http.StatusCreated
	)
	if r.Method == http.MethodPut {
		if def.ID == "" {
			writeError(w, http.StatusBadRequest, "missing recurring expense id")
			return
		}
		// Edits keep the watermark so the charge is not applied twice in the
		// same month.
		for _, existing := range s.store.RecurringExpenses() {
			if existing.ID == def.ID {
				def.LastAppliedDate = existing.LastAppliedDate
				break
			}
		}
		found, err := s.store.UpdateRecurringExpense(r.Context(), def)
		if err != nil {
			slog.ErrorContext(r.Context(), "Recurring update failed", "error", err, "id", def.ID)
			writeError(w, http.StatusInternalServerError, "update failed")
			return
		}
		if !found {
			writeJSON(w, http.StatusOK, map[string]bool{"found": false})
			return
		}
		saved = def
		status = http.StatusOK
	} else {
		saved, err = s.store.AddRecurringExpense(r.Context(), def)
		if err != nil {
			slog.ErrorContext(r.Context(), "Recurring create failed", "error", err)
			writeError(w, http.StatusInternalServerError, "create failed")
			return
		}
	}

	if _, err := s.Reconcile(r.Context(), time.Now()); err != nil {
		slog.ErrorContext(r.Context(), "Recurring reconciliation failed", "error", err)
	}

	writeJSON(w, status, recurringResponse{
		ID:          saved.ID,
		Name:        saved.Name,
		AmountCents: saved.Amount.Cents,
		CategoryID:  saved.CategoryID,
		DayOfMonth:  saved.DayOfMonth,
	})
}

func (s *Server) handleIncome(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.Header().Set("Allow", "PUT")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Amount string `json:"amount"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := parseAmount(req.Amount, true)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}

	if err := s.store.SetMonthlyIncome(r.Context(), amount); err != nil {
		slog.ErrorContext(r.Context(), "Income update failed", "error", err)
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}

	// The baseline feeds every month's totals
	s.summaryCache.Clear()
	writeJSON(w, http.StatusOK, map[string]int64{"monthlyIncomeCents": amount.Cents})
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	enabled := !s.store.DarkMode()
	if err := s.store.SetDarkMode(r.Context(), enabled); err != nil {
		slog.ErrorContext(r.Context(), "Theme toggle failed", "error", err)
		writeError(w, http.StatusInternalServerError, "toggle failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isDarkMode": enabled})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err := s.store.Reset(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Reset failed", "error", err)
		writeError(w, http.StatusInternalServerError, "reset failed")
		return
	}

	s.summaryCache.Clear()
	writeJSON(w, http.StatusOK, map[string]bool{"reset": true})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.sink == nil {
		writeError(w, http.StatusNotImplemented, "export sink not configured")
		return
	}

	rows := export.BuildReport(s.store.Transactions(), s.store.Categories())
	if len(rows) == 0 {
		writeJSON(w, http.StatusOK, map[string]int{"rows": 0})
		return
	}

	if err := s.sink.Append(r.Context(), rows); err != nil {
		slog.ErrorContext(r.Context(), "Export failed", "error", err)
		writeError(w, http.StatusBadGateway, "export failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"rows": len(rows)})
}
