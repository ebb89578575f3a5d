package http

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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/pocketledger/pocketledger/internal/balances"
	"github.com/pocketledger/pocketledger/internal/ledger"
	"github.com/pocketledger/pocketledger/internal/ledger/memstore"
	"github.com/pocketledger/pocketledger/internal/platform/httpx"
	"github.com/pocketledger/pocketledger/internal/shared"
)

func init() {
	if err := balances.SetupMetrics(prometheus.NewRegistry()); err != nil {
		panic(err)
	}
}

type testEnv struct {
	router http.Handler
	ledger *ledger.Service
	userID string
}

// withUser stands in for the auth middleware.
func withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Test-User"); id != "" {
			r = r.WithContext(shared.ContextWithUser(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := ledger.NewService(memstore.New(), nil)
	cached := balances.NewService(svc, balances.NewCache(client, time.Minute))
	svc.WithNotifier(cached)

	handler := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, cached, Options{
		Idempotency: shared.NewIdempotencyStore(client, time.Hour),
	})
	r := chi.NewRouter()
	r.Use(withUser)
	handler.MountRoutes(r)

	user, err := svc.RegisterUser(context.Background(), ledger.NewUserInput{Name: "Ana", Email: "ana@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	return &testEnv{router: r, ledger: svc, userID: user.ID}
}

func (e *testEnv) request(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", e.userID)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	res := httptest.NewRecorder()
	e.router.ServeHTTP(res, req)
	return res
}

func (e *testEnv) categoryID(t *testing.T, name string) string {
	t.Helper()
	categories, err := e.ledger.ListCategories(context.Background(), e.userID, "")
	require.NoError(t, err)
	for _, c := range categories {
		if c.Name == name {
			return c.ID
		}
	}
	t.Fatalf("no category %q", name)
	return ""
}

func decode[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out), res.Body.String())
	return out
}

func TestAccountAndTransactionFlow(t *testing.T) {
	env := newTestEnv(t)

	res := env.request(t, http.MethodPost, "/accounts", map[string]string{"name": "Wallet", "initial_balance": "1000"})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	account := decode[accountResponse](t, res)
	require.True(t, account.Balance.Equal(decimal.NewFromInt(1000)))

	txPath := "/accounts/" + account.ID + "/transactions"
	res = env.request(t, http.MethodPost, txPath, map[string]string{
		"kind": "expense", "category_id": env.categoryID(t, "Food"), "amount": "200", "description": "market", "date": "2024-03-01",
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	expense := decode[transactionResponse](t, res)
	require.Equal(t, "Food", expense.CategoryName)

	res = env.request(t, http.MethodPut, txPath+"/"+expense.ID, map[string]string{
		"category_id": env.categoryID(t, "Food"), "amount": "1100", "description": "market", "date": "2024-03-01",
	})
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)
	problem := decode[httpx.ProblemDetail](t, res)
	require.Equal(t, "1000", problem.Meta["available"])
	require.Equal(t, "1100", problem.Meta["required"])

	res = env.request(t, http.MethodPut, txPath+"/"+expense.ID, map[string]string{
		"category_id": env.categoryID(t, "Food"), "amount": "900", "description": "market", "date": "2024-03-01T10:00:00Z",
	})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = env.request(t, http.MethodGet, "/accounts/"+account.ID, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.True(t, decode[accountResponse](t, res).Balance.Equal(decimal.NewFromInt(100)))

	res = env.request(t, http.MethodGet, txPath+"?order=desc", nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Len(t, decode[[]transactionResponse](t, res), 1)

	res = env.request(t, http.MethodDelete, txPath+"/"+expense.ID, nil)
	require.Equal(t, http.StatusNoContent, res.Code)
	res = env.request(t, http.MethodDelete, txPath+"/"+expense.ID, nil)
	require.Equal(t, http.StatusNotFound, res.Code)

	res = env.request(t, http.MethodGet, "/balances/accounts/"+account.ID, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.True(t, decode[amountResponse](t, res).Amount.Equal(decimal.NewFromInt(1000)))
}

func TestRegisterTransactionValidation(t *testing.T) {
	env := newTestEnv(t)
	account, err := env.ledger.CreateAccount(context.Background(), env.userID, "Wallet", decimal.NewFromInt(10))
	require.NoError(t, err)
	txPath := "/accounts/" + account.ID + "/transactions"

	cases := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{"missing amount", map[string]string{"kind": "INCOME", "category_id": env.categoryID(t, "Salary"), "description": "x", "date": "2024-03-01"}, http.StatusBadRequest},
		{"bad kind", map[string]string{"kind": "TRANSFER", "category_id": env.categoryID(t, "Salary"), "amount": "1", "description": "x", "date": "2024-03-01"}, http.StatusBadRequest},
		{"bad date", map[string]string{"kind": "INCOME", "category_id": env.categoryID(t, "Salary"), "amount": "1", "description": "x", "date": "March 1st"}, http.StatusBadRequest},
		{"zero amount", map[string]string{"kind": "INCOME", "category_id": env.categoryID(t, "Salary"), "amount": "0", "description": "x", "date": "2024-03-01"}, http.StatusBadRequest},
		{"kind mismatch", map[string]string{"kind": "INCOME", "category_id": env.categoryID(t, "Food"), "amount": "1", "description": "x", "date": "2024-03-01"}, http.StatusBadRequest},
		{"unknown category", map[string]string{"kind": "INCOME", "category_id": "nope", "amount": "1", "description": "x", "date": "2024-03-01"}, http.StatusNotFound},
		{"overdraw", map[string]string{"kind": "EXPENSE", "category_id": env.categoryID(t, "Food"), "amount": "10.01", "description": "x", "date": "2024-03-01"}, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := env.request(t, http.MethodPost, txPath, tc.body)
			require.Equal(t, tc.status, res.Code, res.Body.String())
			require.Equal(t, "application/problem+json", res.Header().Get("Content-Type"))
		})
	}

	res := env.request(t, http.MethodPost, "/accounts/missing/transactions", map[string]string{
		"kind": "INCOME", "category_id": env.categoryID(t, "Salary"), "amount": "1", "description": "x", "date": "2024-03-01",
	})
	require.Equal(t, http.StatusNotFound, res.Code)
}

func TestIdempotencyKeyRejectsReplay(t *testing.T) {
	env := newTestEnv(t)
	account, err := env.ledger.CreateAccount(context.Background(), env.userID, "Wallet", decimal.Zero)
	require.NoError(t, err)
	txPath := "/accounts/" + account.ID + "/transactions"
	body := map[string]string{"kind": "INCOME", "category_id": env.categoryID(t, "Salary"), "amount": "5", "description": "pay", "date": "2024-03-01"}

	res := env.request(t, http.MethodPost, txPath, body, IdempotencyHeader, "abc")
	require.Equal(t, http.StatusCreated, res.Code)
	res = env.request(t, http.MethodPost, txPath, body, IdempotencyHeader, "abc")
	require.Equal(t, http.StatusConflict, res.Code)

	// a failed post releases its key
	bad := map[string]string{"kind": "EXPENSE", "category_id": env.categoryID(t, "Food"), "amount": "50", "description": "x", "date": "2024-03-01"}
	res = env.request(t, http.MethodPost, txPath, bad, IdempotencyHeader, "def")
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)
	bad["amount"] = "1"
	res = env.request(t, http.MethodPost, txPath, bad, IdempotencyHeader, "def")
	require.Equal(t, http.StatusCreated, res.Code)

	balance, err := env.ledger.AccountBalance(context.Background(), env.userID, account.ID)
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.NewFromInt(4)))
}

func TestCategoryEndpoints(t *testing.T) {
	env := newTestEnv(t)

	res := env.request(t, http.MethodGet, "/categories?kind=income", nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Len(t, decode[[]categoryResponse](t, res), 4)

	res = env.request(t, http.MethodGet, "/categories?kind=other", nil)
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = env.request(t, http.MethodPost, "/categories", map[string]string{"name": "Pets", "kind": "EXPENSE"})
	require.Equal(t, http.StatusCreated, res.Code)
	pets := decode[categoryResponse](t, res)

	res = env.request(t, http.MethodPost, "/categories", map[string]string{"name": "pets", "kind": "EXPENSE"})
	require.Equal(t, http.StatusConflict, res.Code)

	res = env.request(t, http.MethodPatch, "/categories/"+pets.ID, map[string]string{"name": "Animals"})
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "Animals", decode[categoryResponse](t, res).Name)

	res = env.request(t, http.MethodDelete, "/categories/"+pets.ID, nil)
	require.Equal(t, http.StatusNoContent, res.Code)

	res = env.request(t, http.MethodPost, "/categories/defaults", nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Empty(t, decode[[]categoryResponse](t, res))
}

func TestForeignResourcesAreRejected(t *testing.T) {
	env := newTestEnv(t)
	other, err := env.ledger.RegisterUser(context.Background(), ledger.NewUserInput{Name: "Bea", Email: "bea@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	categories, err := env.ledger.ListCategories(context.Background(), other.ID, ledger.KindExpense)
	require.NoError(t, err)

	res := env.request(t, http.MethodDelete, "/categories/"+categories[0].ID, nil)
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestBalanceEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet, err := env.ledger.CreateAccount(ctx, env.userID, "Wallet", decimal.NewFromInt(100))
	require.NoError(t, err)
	bank, err := env.ledger.CreateAccount(ctx, env.userID, "Bank", decimal.NewFromInt(100))
	require.NoError(t, err)

	res := env.request(t, http.MethodGet, "/balances/summary", nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.True(t, decode[summaryResponse](t, res).Total.Equal(decimal.NewFromInt(200)))

	for _, post := range []struct{ account, amount string }{{wallet.ID, "10"}, {bank.ID, "20"}} {
		res = env.request(t, http.MethodPost, "/accounts/"+post.account+"/transactions", map[string]string{
			"kind": "EXPENSE", "category_id": env.categoryID(t, "Food"), "amount": post.amount, "description": "food", "date": "2024-03-10",
		})
		require.Equal(t, http.StatusCreated, res.Code)
	}

	// the notifier retired the cached summary
	res = env.request(t, http.MethodGet, "/balances/summary", nil)
	summary := decode[summaryResponse](t, res)
	require.True(t, summary.Expense.Equal(decimal.NewFromInt(30)))
	require.True(t, summary.Total.Equal(decimal.NewFromInt(170)))

	res = env.request(t, http.MethodGet, "/balances/categories/food", nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.True(t, decode[amountResponse](t, res).Amount.Equal(decimal.NewFromInt(-30)))

	res = env.request(t, http.MethodGet, "/balances/category-ids/"+env.categoryID(t, "Food"), nil)
	require.True(t, decode[amountResponse](t, res).Amount.Equal(decimal.NewFromInt(-30)))

	res = env.request(t, http.MethodGet, "/balances/monthly?year=2024&month=3", nil)
	require.Equal(t, http.StatusOK, res.Code)
	monthly := decode[monthlyResponse](t, res)
	require.Equal(t, 3, monthly.Month)
	require.True(t, monthly.Net.Equal(decimal.NewFromInt(-30)))

	res = env.request(t, http.MethodGet, "/balances/monthly?year=2024&month=13", nil)
	require.Equal(t, http.StatusBadRequest, res.Code)
	res = env.request(t, http.MethodGet, "/balances/monthly?year=x&month=1", nil)
	require.Equal(t, http.StatusBadRequest, res.Code)

	for path, want := range map[string]int64{"/balances/total": 170, "/balances/income": 0, "/balances/expense": 30} {
		res = env.request(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, res.Code, path)
		require.True(t, decode[amountResponse](t, res).Amount.Equal(decimal.NewFromInt(want)), path)
	}
}
