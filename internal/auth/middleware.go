package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pocketledger/pocketledger/internal/platform/httpx"
	"github.com/pocketledger/pocketledger/internal/shared"
)

// TokenResolver maps a bearer token to a user id.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// RequireUser rejects requests without a valid bearer token and stores the
// resolved user id in the request context.
func RequireUser(logger *slog.Logger, resolver TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := shared.BearerToken(r)
			if token == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="pocketledger"`)
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			userID, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				if !errors.Is(err, shared.ErrUnauthenticated) {
					if logger != nil {
						logger.Error("resolve session", slog.Any("error", err))
					}
					httpx.RespondError(w, err)
					return
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="pocketledger", error="invalid_token"`)
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithUser(r.Context(), userID)))
		})
	}
}
