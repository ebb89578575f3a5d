// Package balances serves the per-user balance reports through a versioned
// Redis cache. Concurrent misses for the same key share one computation.
package balances

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pocketledger/pocketledger/internal/ledger"
)

// Source computes balance reports from the ledger.
type Source interface {
	Balance(ctx context.Context, userID string) (ledger.BalanceSummary, error)
	MonthlySummary(ctx context.Context, userID string, year int, month time.Month) (ledger.MonthlySummary, error)
}

// Service caches Source reports.
type Service struct {
	source Source
	cache  *Cache
	group  singleflight.Group
}

// NewService wires a Source to the cache. A nil cache serves every read live.
func NewService(source Source, cache *Cache) *Service {
	return &Service{source: source, cache: cache}
}

// Summary returns the user's income, expense, net and total balance.
func (s *Service) Summary(ctx context.Context, userID string) (ledger.BalanceSummary, error) {
	var out ledger.BalanceSummary
	err := s.fetch(ctx, "summary", userID, &out, func(ctx context.Context) (any, error) {
		return s.source.Balance(ctx, userID)
	})
	return out, err
}

// Monthly returns the income and expense dated in the given month.
func (s *Service) Monthly(ctx context.Context, userID string, year int, month time.Month) (ledger.MonthlySummary, error) {
	var out ledger.MonthlySummary
	err := s.fetch(ctx, "monthly", userID, &out, func(ctx context.Context) (any, error) {
		return s.source.MonthlySummary(ctx, userID, year, month)
	}, strconv.Itoa(year), strconv.Itoa(int(month)))
	return out, err
}

// Invalidate drops the user's cached reports. It satisfies ledger.ChangeNotifier.
func (s *Service) Invalidate(ctx context.Context, userID string) error {
	return s.cache.Invalidate(ctx, userID)
}

func (s *Service) fetch(ctx context.Context, report, userID string, dest any, compute func(context.Context) (any, error), parts ...string) error {
	key, err := s.cache.BuildKey(ctx, userID, append([]string{report}, parts...)...)
	if err != nil {
		return err
	}
	hit, err := s.cache.FetchJSON(ctx, key, dest, func(ctx context.Context) (any, error) {
		val, err, _ := s.build(ctx, key, func(ctx context.Context) (any, error) {
			start := time.Now()
			defer func() { observeBuildDuration(report, time.Since(start)) }()
			return compute(ctx)
		})
		return val, err
	})
	if err != nil {
		return err
	}
	recordCacheResult(report, hit)
	return nil
}

func (s *Service) build(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	resultChan := s.group.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}
