package audithttp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/pocketledger/pocketledger/internal/audit"
	"github.com/pocketledger/pocketledger/internal/shared"
)

func newTestRouter(t *testing.T) (http.Handler, *audit.MemoryLog) {
	t.Helper()
	log := audit.NewMemoryLog(nil, 0)
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), audit.NewService(log))
	h.now = func() time.Time { return time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC) }

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := r.Header.Get("X-Test-User"); id != "" {
				r = r.WithContext(shared.ContextWithUser(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	})
	h.MountRoutes(r)
	return r, log
}

func get(router http.Handler, path, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestTimelineReturnsOnlyCallerRows(t *testing.T) {
	router, log := newTestRouter(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 19, 10, 0, 0, 0, time.UTC)
	require.NoError(t, log.Record(ctx, shared.AuditLog{ActorID: "u1", Action: "account.create", Entity: "account", EntityID: "a1", At: at}))
	require.NoError(t, log.Record(ctx, shared.AuditLog{ActorID: "u2", Action: "account.create", Entity: "account", EntityID: "a2", At: at}))
	require.NoError(t, log.Record(ctx, shared.AuditLog{ActorID: "u1", Action: "account.create", Entity: "account", EntityID: "old", At: at.AddDate(0, -3, 0)}))

	res := get(router, "/activity", "u1")
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var result audit.Result
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &result))
	require.Len(t, result.Rows, 1)
	require.Equal(t, "a1", result.Rows[0].EntityID)

	res = get(router, "/activity?from=2023-12-01&to=2024-03-20", "u1")
	require.Equal(t, http.StatusOK, res.Code)
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &result))
	require.Len(t, result.Rows, 2)
}

func TestTimelineRejectsBadFilters(t *testing.T) {
	router, _ := newTestRouter(t)
	for _, path := range []string{
		"/activity?from=yesterday",
		"/activity?from=2024-03-10&to=2024-03-01",
		"/activity?from=2020-01-01&to=2024-03-01",
		"/activity?page=0",
		"/activity?page_size=abc",
	} {
		res := get(router, path, "u1")
		require.Equal(t, http.StatusBadRequest, res.Code, path)
	}
	res := get(router, "/activity", "")
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestExportCSV(t *testing.T) {
	router, log := newTestRouter(t)
	require.NoError(t, log.Record(context.Background(), shared.AuditLog{
		ActorID: "u1", Action: "transaction.delete", Entity: "transaction", EntityID: "t1",
		At: time.Date(2024, 3, 18, 8, 0, 0, 0, time.UTC),
	}))

	res := get(router, "/activity/export.csv", "u1")
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "text/csv; charset=utf-8", res.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(res.Body.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[1], "transaction.delete")
}
