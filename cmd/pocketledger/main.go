package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/pocketledger/pocketledger/internal/app"
	"github.com/pocketledger/pocketledger/internal/audit"
	audithttp "github.com/pocketledger/pocketledger/internal/audit/http"
	"github.com/pocketledger/pocketledger/internal/auth"
	"github.com/pocketledger/pocketledger/internal/balances"
	"github.com/pocketledger/pocketledger/internal/ledger"
	ledgerhttp "github.com/pocketledger/pocketledger/internal/ledger/http"
	"github.com/pocketledger/pocketledger/internal/ledger/memstore"
	"github.com/pocketledger/pocketledger/internal/observability"
	"github.com/pocketledger/pocketledger/internal/platform/cache"
	"github.com/pocketledger/pocketledger/internal/platform/db"
	"github.com/pocketledger/pocketledger/internal/shared"
	"github.com/pocketledger/pocketledger/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	var (
		repo       ledger.RepositoryPort
		auditSink  ledger.AuditPort
		auditStore audit.Repository
		pool       *pgxpool.Pool
	)
	if cfg.UsesPostgres() {
		pool, err = db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		if cfg.PGAutoMigrate {
			if err := db.Migrate(pool); err != nil {
				logger.Error("migrate database", slog.Any("error", err))
				os.Exit(1)
			}
		}
		repo = ledger.NewRepository(pool)
		auditSink = shared.NewAuditLogger(pool)
		auditStore = audit.NewRepository(pool)
	} else {
		logger.Warn("using in-memory ledger, data is lost on restart")
		repo = memstore.New()
		memoryLog := audit.NewMemoryLog(shared.NewSlogAuditLogger(logger), 10000)
		auditSink = memoryLog
		auditStore = memoryLog
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	if err := balances.SetupMetrics(metrics.Registerer()); err != nil {
		logger.Warn("balance metrics", slog.Any("error", err))
	}

	ledgerService := ledger.NewService(repo, auditSink)
	balanceService := balances.NewService(ledgerService, balances.NewCache(redisClient, cfg.BalanceCacheTTL))
	ledgerService.WithLogger(logger)
	ledgerService.WithNotifier(balanceService)
	ledgerService.WithObserver(metrics)

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionTTL)
	authService := auth.NewService(ledgerService, sessionManager)
	authHandler := auth.NewHandler(logger, authService)

	ledgerHandler := ledgerhttp.NewHandler(logger, ledgerService, balanceService, ledgerhttp.Options{
		Idempotency:     shared.NewIdempotencyStore(redisClient, cfg.IdempotencyTTL),
		WritesPerMinute: cfg.WriteLimitPerMinute,
	})

	auditHandler := audithttp.NewHandler(logger, audit.NewService(auditStore))

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		AuthHandler:   authHandler,
		TokenResolver: authService,
		LedgerHandler: ledgerHandler,
		AuditHandler:  auditHandler,
		JobHandler:    jobHandler,
		Metrics:       metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("storage", cfg.StorageBackend),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
