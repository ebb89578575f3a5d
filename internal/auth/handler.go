package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pocketledger/pocketledger/internal/ledger"
	"github.com/pocketledger/pocketledger/internal/platform/httpx"
	"github.com/pocketledger/pocketledger/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers the public auth routes and the authenticated /me
// routes behind RequireUser.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(RequireUser(h.logger, h.service))
		r.Post("/logout", h.handleLogout)
		r.Get("/me", h.handleMe)
		r.Delete("/me", h.handleDeleteMe)
	})
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	profile, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.respondError(w, "register", err)
		return
	}
	h.logger.Info("user registered", slog.String("user_id", profile.ID))
	httpx.JSON(w, http.StatusCreated, profile)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(w, "login", err)
		return
	}
	httpx.JSON(w, http.StatusOK, token)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), shared.BearerToken(r)); err != nil {
		h.respondError(w, "logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.UserFromContext(r.Context())
	profile, err := h.service.Me(r.Context(), userID)
	if err != nil {
		h.respondError(w, "me", err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.UserFromContext(r.Context())
	if err := h.service.DeleteAccount(r.Context(), userID); err != nil {
		h.respondError(w, "delete user", err)
		return
	}
	h.logger.Info("user deleted", slog.String("user_id", userID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials):
		httpx.RespondError(w, fmt.Errorf("%w: invalid email or password", httpx.ErrUnauthorized))
	case errors.Is(err, ErrWeakPassword), errors.Is(err, ledger.ErrInvalidUser):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
	case errors.Is(err, ledger.ErrDuplicateEmail):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrDuplicate, err.Error()))
	case errors.Is(err, ledger.ErrUserNotFound):
		// a valid token for a deleted user
		httpx.RespondError(w, httpx.ErrUnauthorized)
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
