package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pocketledger/pocketledger/internal/platform/httpx"
)

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.ledger.ListAccounts(r.Context(), currentUser(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	initial, err := parseAmount(req.InitialBalance)
	if err != nil {
		badRequest(w, "initial_balance", "numeric")
		return
	}
	account, err := h.ledger.CreateAccount(r.Context(), currentUser(r), req.Name, initial)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAccountResponse(account))
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.ledger.GetAccount(r.Context(), currentUser(r), chi.URLParam(r, "accountID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) renameAccount(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	account, err := h.ledger.RenameAccount(r.Context(), currentUser(r), chi.URLParam(r, "accountID"), req.Name)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteAccount(r.Context(), currentUser(r), chi.URLParam(r, "accountID")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
