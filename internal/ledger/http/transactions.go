package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pocketledger/pocketledger/internal/ledger"
	"github.com/pocketledger/pocketledger/internal/platform/httpx"
)

// IdempotencyHeader names the request header that deduplicates posts.
const IdempotencyHeader = "Idempotency-Key"

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	order, err := ledger.ParseOrder(r.URL.Query().Get("order"))
	if err != nil {
		badRequest(w, "order", "oneof asc desc")
		return
	}
	txs, err := h.ledger.ListTransactions(r.Context(), currentUser(r), chi.URLParam(r, "accountID"), order)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionResponse(t))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) registerTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	kind, err := ledger.ParseKind(req.Kind)
	if err != nil {
		badRequest(w, "kind", "oneof INCOME EXPENSE")
		return
	}
	in, ok := registerInput(w, r, req.CategoryID, req.Amount, req.Description, req.Date)
	if !ok {
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	module := "transactions:" + in.UserID
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, module); err != nil {
			h.respondError(w, r, err)
			return
		}
	}
	created, err := h.ledger.Register(r.Context(), kind, in)
	if err != nil {
		if key != "" && h.idempotency != nil {
			_ = h.idempotency.Delete(r.Context(), key, module)
		}
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTransactionResponse(created))
}

func (h *Handler) editTransaction(w http.ResponseWriter, r *http.Request) {
	var req editTransactionRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	in, ok := registerInput(w, r, req.CategoryID, req.Amount, req.Description, req.Date)
	if !ok {
		return
	}
	updated, err := h.ledger.EditTransaction(r.Context(), ledger.EditInput{
		UserID:        in.UserID,
		AccountID:     in.AccountID,
		TransactionID: chi.URLParam(r, "transactionID"),
		CategoryID:    in.CategoryID,
		Amount:        in.Amount,
		Description:   in.Description,
		Date:          in.Date,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionResponse(updated))
}

func (h *Handler) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	accountID := chi.URLParam(r, "accountID")
	transactionID := chi.URLParam(r, "transactionID")
	txs, err := h.ledger.ListTransactions(r.Context(), userID, accountID, ledger.OrderInsertion)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if !containsTransaction(txs, transactionID) {
		h.respondError(w, r, ledger.ErrTransactionNotFound)
		return
	}
	if err := h.ledger.DeleteTransaction(r.Context(), userID, transactionID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func containsTransaction(txs []ledger.Transaction, id string) bool {
	for _, t := range txs {
		if t.ID == id {
			return true
		}
	}
	return false
}

func registerInput(w http.ResponseWriter, r *http.Request, categoryID, rawAmount, description, rawDate string) (ledger.RegisterInput, bool) {
	amount, err := parseAmount(rawAmount)
	if err != nil {
		badRequest(w, "amount", "numeric")
		return ledger.RegisterInput{}, false
	}
	date, err := parseDate(rawDate)
	if err != nil {
		badRequest(w, "date", err.Error())
		return ledger.RegisterInput{}, false
	}
	return ledger.RegisterInput{
		UserID:      currentUser(r),
		AccountID:   chi.URLParam(r, "accountID"),
		CategoryID:  categoryID,
		Amount:      amount,
		Description: description,
		Date:        date,
	}, true
}
