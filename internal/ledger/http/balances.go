package http

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/pocketledger/pocketledger/internal/platform/httpx"
)

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.balances.Summary(r.Context(), currentUser(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summaryResponse{Income: s.Income, Expense: s.Expense, Net: s.Net, Total: s.Total})
}

func (h *Handler) monthly(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		badRequest(w, "year", "required integer")
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil {
		badRequest(w, "month", "required integer")
		return
	}
	m, err := h.balances.Monthly(r.Context(), currentUser(r), year, time.Month(month))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, monthlyResponse{Year: m.Year, Month: int(m.Month), Income: m.Income, Expense: m.Expense, Net: m.Net})
}

func (h *Handler) totalBalance(w http.ResponseWriter, r *http.Request) {
	h.amount(w, r, func() (decimal.Decimal, error) {
		return h.ledger.TotalBalance(r.Context(), currentUser(r))
	})
}

func (h *Handler) totalIncome(w http.ResponseWriter, r *http.Request) {
	h.amount(w, r, func() (decimal.Decimal, error) {
		return h.ledger.TotalIncome(r.Context(), currentUser(r))
	})
}

func (h *Handler) totalExpense(w http.ResponseWriter, r *http.Request) {
	h.amount(w, r, func() (decimal.Decimal, error) {
		return h.ledger.TotalExpense(r.Context(), currentUser(r))
	})
}

func (h *Handler) accountBalance(w http.ResponseWriter, r *http.Request) {
	h.amount(w, r, func() (decimal.Decimal, error) {
		return h.ledger.AccountBalance(r.Context(), currentUser(r), chi.URLParam(r, "accountID"))
	})
}

func (h *Handler) categoryBalance(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		badRequest(w, "name", "invalid escape")
		return
	}
	h.amount(w, r, func() (decimal.Decimal, error) {
		return h.ledger.CategoryBalance(r.Context(), currentUser(r), name)
	})
}

func (h *Handler) categoryBalanceByID(w http.ResponseWriter, r *http.Request) {
	h.amount(w, r, func() (decimal.Decimal, error) {
		return h.ledger.CategoryBalanceByID(r.Context(), currentUser(r), chi.URLParam(r, "categoryID"))
	})
}

func (h *Handler) amount(w http.ResponseWriter, r *http.Request, fn func() (decimal.Decimal, error)) {
	value, err := fn()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, amountResponse{Amount: value})
}
