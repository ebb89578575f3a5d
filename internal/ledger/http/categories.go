package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pocketledger/pocketledger/internal/ledger"
	"github.com/pocketledger/pocketledger/internal/platform/httpx"
)

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	var kind ledger.Kind
	if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
		parsed, err := ledger.ParseKind(raw)
		if err != nil {
			badRequest(w, "kind", "oneof INCOME EXPENSE")
			return
		}
		kind = parsed
	}
	categories, err := h.ledger.ListCategories(r.Context(), currentUser(r), kind)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCategoryResponses(categories))
}

func (h *Handler) addCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	kind, err := ledger.ParseKind(req.Kind)
	if err != nil {
		badRequest(w, "kind", "oneof INCOME EXPENSE")
		return
	}
	category, err := h.ledger.AddCategory(r.Context(), currentUser(r), req.Name, kind)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toCategoryResponses([]ledger.Category{category})[0])
}

func (h *Handler) addDefaultCategories(w http.ResponseWriter, r *http.Request) {
	created, err := h.ledger.AddDefaultCategories(r.Context(), currentUser(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCategoryResponses(created))
}

func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request) {
	category, err := h.ledger.GetCategory(r.Context(), currentUser(r), chi.URLParam(r, "categoryID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCategoryResponses([]ledger.Category{category})[0])
}

func (h *Handler) renameCategory(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	category, err := h.ledger.EditCategory(r.Context(), currentUser(r), chi.URLParam(r, "categoryID"), req.Name)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCategoryResponses([]ledger.Category{category})[0])
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteCategory(r.Context(), currentUser(r), chi.URLParam(r, "categoryID")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
