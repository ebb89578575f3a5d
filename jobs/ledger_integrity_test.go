package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/pocketledger/pocketledger/internal/jobs"
	"github.com/pocketledger/pocketledger/internal/ledger"
	"github.com/pocketledger/pocketledger/internal/ledger/memstore"
)

func newIntegrityFixture(t *testing.T) (*IntegrityJob, *memstore.Store, *ledger.Service, *prometheus.Registry) {
	t.Helper()
	store := memstore.New()
	svc := ledger.NewService(store, nil)
	reg := prometheus.NewRegistry()
	job := NewIntegrityJob(svc, slog.New(slog.NewTextHandler(io.Discard, nil)), jobmetrics.NewMetrics(reg))
	return job, store, svc, reg
}

func TestIntegrityJobCleanLedger(t *testing.T) {
	job, _, svc, reg := newIntegrityFixture(t)
	ctx := context.Background()

	user, err := svc.RegisterUser(ctx, ledger.NewUserInput{Name: "Ana", Email: "ana@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	_, err = svc.CreateAccount(ctx, user.ID, "Wallet", decimal.NewFromInt(20))
	require.NoError(t, err)

	task, err := NewIntegrityTask("cron")
	require.NoError(t, err)
	require.NoError(t, job.Handle(ctx, task))

	count, err := testutil.GatherAndCount(reg, "pocketledger_jobs_failures_total")
	require.NoError(t, err)
	require.Zero(t, count)
	require.Zero(t, testutil.ToFloat64(job.Metrics.DriftCounter()))
}

func TestIntegrityJobReportsDrift(t *testing.T) {
	job, store, svc, _ := newIntegrityFixture(t)
	ctx := context.Background()

	user, err := svc.RegisterUser(ctx, ledger.NewUserInput{Name: "Ana", Email: "ana@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	account, err := svc.CreateAccount(ctx, user.ID, "Wallet", decimal.NewFromInt(20))
	require.NoError(t, err)
	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx ledger.TxRepository) error {
		a, err := tx.GetAccount(ctx, account.ID)
		if err != nil {
			return err
		}
		a.Balance = decimal.NewFromInt(21)
		return tx.UpdateAccount(ctx, a)
	}))

	report, err := job.Run(ctx, "manual")
	require.ErrorIs(t, err, ErrBalanceDrift)
	require.Len(t, report.Drifts, 1)
	require.Equal(t, float64(1), testutil.ToFloat64(job.Metrics.DriftCounter()))

	task, err := NewIntegrityTask("")
	require.NoError(t, err)
	err = job.Handle(ctx, task)
	require.ErrorIs(t, err, ErrBalanceDrift)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

type failingVerifier struct{}

func (failingVerifier) VerifyIntegrity(context.Context) (ledger.IntegrityReport, error) {
	return ledger.IntegrityReport{}, errors.New("db down")
}

func TestIntegrityJobPropagatesErrors(t *testing.T) {
	job := NewIntegrityJob(failingVerifier{}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrity, nil))
	require.EqualError(t, err, "db down")

	err = job.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrity, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	var unset *IntegrityJob
	require.Error(t, unset.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrity, nil)))
}
