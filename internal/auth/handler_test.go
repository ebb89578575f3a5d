package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pocketledger/pocketledger/internal/auth"
	"github.com/pocketledger/pocketledger/internal/ledger"
	"github.com/pocketledger/pocketledger/internal/ledger/memstore"
	"github.com/pocketledger/pocketledger/internal/shared"
	_ "github.com/pocketledger/pocketledger/testing"
)

type harness struct {
	router   http.Handler
	service  *auth.Service
	ledger   *ledger.Service
	sessions *shared.SessionManager
	redis    *miniredis.Miniredis
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessions := shared.NewSessionManager(client, time.Hour)
	ledgerSvc := ledger.NewService(memstore.New(), nil)
	service := auth.NewService(ledgerSvc, sessions)
	service.WithCost(bcrypt.MinCost)
	handler := auth.NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), service)

	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	return &harness{router: r, service: service, ledger: ledgerSvc, sessions: sessions, redis: mr}
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	h.router.ServeHTTP(res, req)
	return res
}

func (h *harness) login(t *testing.T, email, password string) auth.Token {
	t.Helper()
	res := h.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var token auth.Token
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &token))
	return token
}

func TestRegisterLoginMe(t *testing.T) {
	h := newHarness(t)

	res := h.do(t, http.MethodPost, "/auth/register", "", map[string]string{"name": "Ana", "email": "Ana@Example.com", "password": "secret1"})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var profile auth.Profile
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &profile))
	require.Equal(t, "ana@example.com", profile.Email)
	require.NotContains(t, res.Body.String(), "secret1")

	categories, err := h.ledger.ListCategories(context.Background(), profile.ID, "")
	require.NoError(t, err)
	require.Len(t, categories, len(ledger.DefaultCategories))

	token := h.login(t, "ana@example.com", "secret1")
	require.Equal(t, "Bearer", token.TokenType)
	require.Equal(t, profile.ID, token.User.ID)

	res = h.do(t, http.MethodGet, "/auth/me", token.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), profile.ID)

	res = h.do(t, http.MethodPost, "/auth/logout", token.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, res.Code)
	res = h.do(t, http.MethodGet, "/auth/me", token.AccessToken, nil)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	h := newHarness(t)

	res := h.do(t, http.MethodPost, "/auth/register", "", map[string]string{"name": "Ana", "email": "ana@example.com", "password": "123"})
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Contains(t, res.Body.String(), "password")

	res = h.do(t, http.MethodPost, "/auth/register", "", map[string]string{"name": "Ana", "email": "ana@example.com", "password": "secret1", "role": "admin"})
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = h.do(t, http.MethodPost, "/auth/register", "", map[string]string{"name": "Ana", "email": "ana@example.com", "password": "secret1"})
	require.Equal(t, http.StatusCreated, res.Code)
	res = h.do(t, http.MethodPost, "/auth/register", "", map[string]string{"name": "Bea", "email": "ANA@example.com", "password": "secret2"})
	require.Equal(t, http.StatusConflict, res.Code)
}

func TestLoginInvalidCredentials(t *testing.T) {
	h := newHarness(t)
	_, err := h.service.Register(context.Background(), "Ana", "ana@example.com", "correctpass")
	require.NoError(t, err)

	res := h.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "wrongpass"})
	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Equal(t, "application/problem+json", res.Header().Get("Content-Type"))

	res = h.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "nobody@example.com", "password": "whatever"})
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRequireUserRejectsMissingOrExpiredToken(t *testing.T) {
	h := newHarness(t)
	_, err := h.service.Register(context.Background(), "Ana", "ana@example.com", "secret1")
	require.NoError(t, err)
	token := h.login(t, "ana@example.com", "secret1")

	res := h.do(t, http.MethodGet, "/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.NotEmpty(t, res.Header().Get("WWW-Authenticate"))

	h.redis.FastForward(2 * time.Hour)
	res = h.do(t, http.MethodGet, "/auth/me", token.AccessToken, nil)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestDeleteMeRevokesEverySession(t *testing.T) {
	h := newHarness(t)
	profile, err := h.service.Register(context.Background(), "Ana", "ana@example.com", "secret1")
	require.NoError(t, err)
	first := h.login(t, "ana@example.com", "secret1")
	second := h.login(t, "ana@example.com", "secret1")

	res := h.do(t, http.MethodDelete, "/auth/me", first.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, res.Code)

	res = h.do(t, http.MethodGet, "/auth/me", second.AccessToken, nil)
	require.Equal(t, http.StatusUnauthorized, res.Code)

	_, err = h.ledger.GetUser(context.Background(), profile.ID)
	require.ErrorIs(t, err, ledger.ErrUserNotFound)
}
