// Package http exposes the ledger over a JSON API. Every route expects the
// caller's user id in the request context.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/pocketledger/pocketledger/internal/balances"
	"github.com/pocketledger/pocketledger/internal/ledger"
	"github.com/pocketledger/pocketledger/internal/platform/httpx"
	"github.com/pocketledger/pocketledger/internal/shared"
)

// IdempotencyGuard claims request keys. *shared.IdempotencyStore satisfies it.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Handler wires account, transaction, category and balance endpoints.
type Handler struct {
	logger      *slog.Logger
	ledger      *ledger.Service
	balances    *balances.Service
	idempotency IdempotencyGuard
	validator   *validator.Validate
	writeLimit  func(http.Handler) http.Handler
}

// Options tunes optional handler behaviour.
type Options struct {
	// Idempotency enables the Idempotency-Key header on transaction posts.
	Idempotency IdempotencyGuard
	// WritesPerMinute caps transaction writes per user. Zero disables the cap.
	WritesPerMinute int
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, ledgerSvc *ledger.Service, balanceSvc *balances.Service, opts Options) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logger:      logger,
		ledger:      ledgerSvc,
		balances:    balanceSvc,
		idempotency: opts.Idempotency,
		validator:   validator.New(),
		writeLimit:  func(next http.Handler) http.Handler { return next },
	}
	if opts.WritesPerMinute > 0 {
		h.writeLimit = httprate.Limit(opts.WritesPerMinute, time.Minute, httprate.WithKeyFuncs(userOrIPKey))
	}
	return h
}

func userOrIPKey(r *http.Request) (string, error) {
	if userID, ok := shared.UserFromContext(r.Context()); ok {
		return "user:" + userID, nil
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr, nil
	}
	return "ip:" + host, nil
}

// MountRoutes registers the ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.listAccounts)
		r.Post("/", h.createAccount)
		r.Route("/{accountID}", func(r chi.Router) {
			r.Get("/", h.getAccount)
			r.Patch("/", h.renameAccount)
			r.Delete("/", h.deleteAccount)
			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", h.listTransactions)
				r.With(h.writeLimit).Post("/", h.registerTransaction)
				r.With(h.writeLimit).Put("/{transactionID}", h.editTransaction)
				r.With(h.writeLimit).Delete("/{transactionID}", h.deleteTransaction)
			})
		})
	})
	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.listCategories)
		r.Post("/", h.addCategory)
		r.Post("/defaults", h.addDefaultCategories)
		r.Get("/{categoryID}", h.getCategory)
		r.Patch("/{categoryID}", h.renameCategory)
		r.Delete("/{categoryID}", h.deleteCategory)
	})
	r.Route("/balances", func(r chi.Router) {
		r.Get("/summary", h.summary)
		r.Get("/total", h.totalBalance)
		r.Get("/income", h.totalIncome)
		r.Get("/expense", h.totalExpense)
		r.Get("/monthly", h.monthly)
		r.Get("/accounts/{accountID}", h.accountBalance)
		r.Get("/categories/{name}", h.categoryBalance)
		r.Get("/category-ids/{categoryID}", h.categoryBalanceByID)
	})
}

func currentUser(r *http.Request) string {
	userID, _ := shared.UserFromContext(r.Context())
	return userID
}

// respondError maps ledger failures to problem responses.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var funds *ledger.InsufficientFundsError
	switch {
	case errors.As(err, &funds):
		httpx.WriteProblem(w, httpx.ProblemDetail{
			Title:  "Insufficient Funds",
			Status: http.StatusUnprocessableEntity,
			Detail: err.Error(),
			Meta: map[string]any{
				"available": funds.Available.String(),
				"required":  funds.Required.String(),
			},
		})
	case errors.Is(err, ledger.ErrNotAuthorized):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrForbidden, err.Error()))
	case errors.Is(err, ledger.ErrUserNotFound), errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrCategoryNotFound), errors.Is(err, ledger.ErrTransactionNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err.Error()))
	case errors.Is(err, ledger.ErrDuplicateCategory), errors.Is(err, ledger.ErrCategoryInUse),
		errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrDuplicate, err.Error()))
	case errors.Is(err, ledger.ErrInvalidAccount), errors.Is(err, ledger.ErrInvalidTransaction),
		errors.Is(err, ledger.ErrInvalidCategory), errors.Is(err, ledger.ErrInvalidPeriod):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
	default:
		h.logger.Error("ledger request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func badRequest(w http.ResponseWriter, field, msg string) {
	httpx.WriteProblem(w, httpx.ProblemDetail{
		Title:  "Validation Failed",
		Status: http.StatusBadRequest,
		Errors: map[string]string{field: msg},
	})
}
