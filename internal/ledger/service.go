package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/pocketledger/pocketledger/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ChangeNotifier is told after a commit that a user's balances moved.
type ChangeNotifier interface {
	Invalidate(ctx context.Context, userID string) error
}

// Observer receives the outcome class of every mutating operation.
type Observer interface {
	ObserveLedgerOp(op, result string)
}

// Service coordinates users, categories, accounts, transactions and the
// balance reads derived from them.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	notifier ChangeNotifier
	observer Observer
	locks    *shared.KeyedMutex
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, locks: shared.NewKeyedMutex(), logger: slog.Default(), now: time.Now}
}

// WithLogger sets the logger used for post-commit failures.
func (s *Service) WithLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithNotifier registers the balance change notifier.
func (s *Service) WithNotifier(n ChangeNotifier) {
	s.notifier = n
}

// WithObserver registers the operation observer.
func (s *Service) WithObserver(o Observer) {
	s.observer = o
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

// mutate runs fn as one unit of work. When accountID is set, mutations of
// that account are serialized in process before storage locking applies.
func (s *Service) mutate(ctx context.Context, op, accountID string, fn func(context.Context, TxRepository) error) (err error) {
	if accountID != "" {
		unlock := s.locks.Lock(shared.AccountLockKey(accountID))
		defer unlock()
	}
	defer func() {
		if s.observer != nil {
			s.observer.ObserveLedgerOp(op, ErrorClass(err))
		}
	}()
	return s.repo.WithTx(ctx, fn)
}

func (s *Service) read(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return s.repo.WithTx(ctx, fn)
}

// committed runs the post-commit side effects. Their failures never undo
// the committed change.
func (s *Service) committed(ctx context.Context, userID string, log shared.AuditLog) {
	if s.notifier != nil && userID != "" {
		if err := s.notifier.Invalidate(ctx, userID); err != nil {
			s.logger.Warn("balance cache invalidation failed",
				slog.String("user_id", userID),
				slog.String("action", log.Action),
				slog.Any("error", err))
		}
	}
	if s.audit != nil {
		log.ActorID = userID
		log.At = s.timestamp()
		_ = s.audit.Record(ctx, log)
	}
}
