package perf

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/pocketledger/pocketledger/internal/balances"
	jobmetrics "github.com/pocketledger/pocketledger/internal/jobs"
	"github.com/pocketledger/pocketledger/internal/ledger"
	"github.com/pocketledger/pocketledger/internal/ledger/memstore"
	"github.com/pocketledger/pocketledger/jobs"
)

type fixture struct {
	svc      *ledger.Service
	userID   string
	account  ledger.Account
	income   ledger.Category
	expense  ledger.Category
	baseDate time.Time
}

func newFixture(tb testing.TB, initial int64) fixture {
	tb.Helper()
	ctx := context.Background()
	svc := ledger.NewService(memstore.New(), nil)
	user, err := svc.RegisterUser(ctx, ledger.NewUserInput{Name: "Perf", Email: "perf@example.com", PasswordHash: "h"})
	if err != nil {
		tb.Fatalf("register user: %v", err)
	}
	account, err := svc.CreateAccount(ctx, user.ID, "Main", decimal.NewFromInt(initial))
	if err != nil {
		tb.Fatalf("create account: %v", err)
	}
	incomes, err := svc.ListCategories(ctx, user.ID, ledger.KindIncome)
	if err != nil || len(incomes) == 0 {
		tb.Fatalf("income categories: %v", err)
	}
	expenses, err := svc.ListCategories(ctx, user.ID, ledger.KindExpense)
	if err != nil || len(expenses) == 0 {
		tb.Fatalf("expense categories: %v", err)
	}
	return fixture{
		svc:      svc,
		userID:   user.ID,
		account:  account,
		income:   incomes[0],
		expense:  expenses[0],
		baseDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f fixture) input(i int, category ledger.Category) ledger.RegisterInput {
	return ledger.RegisterInput{
		UserID:      f.userID,
		AccountID:   f.account.ID,
		CategoryID:  category.ID,
		Amount:      decimal.NewFromInt(1),
		Description: fmt.Sprintf("op %d", i),
		Date:        f.baseDate.AddDate(0, 0, i%365),
	}
}

func TestRegisterLatencyTargets(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	samples := make([]time.Duration, 0, 300)
	for i := 0; i < 300; i++ {
		start := time.Now()
		if _, err := f.svc.RegisterIncome(ctx, f.input(i, f.income)); err != nil {
			t.Fatalf("register income: %v", err)
		}
		samples = append(samples, time.Since(start))
	}
	if p95 := percentile95(samples); p95 > 100*time.Millisecond {
		t.Fatalf("register latency regression: p95=%s", p95)
	}

	account, err := f.svc.GetAccount(ctx, f.userID, f.account.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if !account.Balance.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("unexpected balance %s", account.Balance)
	}
}

func TestIntegrityJobThroughputAndMetrics(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()
	for i := 0; i < 200; i++ {
		if _, err := f.svc.RegisterExpense(ctx, f.input(i, f.expense)); err != nil {
			t.Fatalf("register expense: %v", err)
		}
	}

	reg := prometheus.NewRegistry()
	job := jobs.NewIntegrityJob(f.svc, nil, jobmetrics.NewMetrics(reg))
	for i := 0; i < 5; i++ {
		if _, err := job.Run(ctx, "perf"); err != nil {
			t.Fatalf("integrity run: %v", err)
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	success := metricValue(t, families, "pocketledger_jobs_total", map[string]string{"job": "ledger_integrity", "status": "success"})
	if success != 5 {
		t.Fatalf("expected 5 successful runs, got %f", success)
	}
	if mean := histogramMean(t, families, "pocketledger_job_duration_seconds", map[string]string{"job": "ledger_integrity"}); mean > 0.5 {
		t.Fatalf("integrity duration above budget: %f", mean)
	}
}

func BenchmarkRegisterExpense(b *testing.B) {
	f := newFixture(b, int64(b.N)+1)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := f.svc.RegisterExpense(ctx, f.input(i, f.expense)); err != nil {
			b.Fatalf("register expense: %v", err)
		}
	}
}

func BenchmarkCachedSummary(b *testing.B) {
	f := newFixture(b, 100)
	mr := miniredis.RunT(b)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b.Cleanup(func() { _ = client.Close() })
	svc := balances.NewService(f.svc, balances.NewCache(client, time.Minute))
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.Summary(ctx, f.userID); err != nil {
			b.Fatalf("summary: %v", err)
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	return sorted[index]
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) && fam.GetType() == dto.MetricType_COUNTER {
				return metric.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	found := 0
	for _, lp := range metric.GetLabel() {
		val, ok := labels[lp.GetName()]
		if !ok {
			continue
		}
		if lp.GetValue() != val {
			return false
		}
		found++
	}
	return found == len(labels)
}
