package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/pocketledger/pocketledger/internal/audit/http"
	"github.com/pocketledger/pocketledger/internal/auth"
	ledgerhttp "github.com/pocketledger/pocketledger/internal/ledger/http"
	"github.com/pocketledger/pocketledger/internal/observability"
	"github.com/pocketledger/pocketledger/jobs"
)

// APIPrefix is the mount point of the versioned JSON API.
const APIPrefix = "/api/v1"

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger        *slog.Logger
	Config        *Config
	AuthHandler   *auth.Handler
	TokenResolver auth.TokenResolver
	LedgerHandler *ledgerhttp.Handler
	AuditHandler  *audithttp.Handler
	JobHandler    *jobs.Handler
	Metrics       *observability.Metrics
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	if !InTestMode() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route(APIPrefix, func(r chi.Router) {
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser(logger, params.TokenResolver))
			if params.LedgerHandler != nil {
				params.LedgerHandler.MountRoutes(r)
			}
			if params.AuditHandler != nil {
				params.AuditHandler.MountRoutes(r)
			}
			if params.JobHandler != nil {
				r.Route("/jobs", params.JobHandler.MountAdminRoutes)
			}
		})
	})

	return r
}
