package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/pocketledger/pocketledger/internal/jobs"
	"github.com/pocketledger/pocketledger/internal/ledger"
)

const integrityJobName = "ledger_integrity"

// ErrBalanceDrift is returned when at least one account balance disagrees
// with its transactions.
var ErrBalanceDrift = errors.New("ledger integrity: balance drift detected")

// IntegrityVerifier recomputes stored balances.
type IntegrityVerifier interface {
	VerifyIntegrity(ctx context.Context) (ledger.IntegrityReport, error)
}

// IntegrityJob checks that every stored balance equals its initial balance
// plus the signed sum of its transactions.
type IntegrityJob struct {
	Verifier IntegrityVerifier
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewIntegrityJob initialises the integrity check handler.
func NewIntegrityJob(verifier IntegrityVerifier, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityJob {
	return &IntegrityJob{Verifier: verifier, Logger: logger, Metrics: metrics}
}

// Handle executes one integrity run for an Asynq task.
func (j *IntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Verifier == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload IntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	_, err := j.Run(ctx, payload.Trigger)
	return err
}

// Run verifies the ledger and returns the report. Drift is logged per
// account and surfaces as ErrBalanceDrift.
func (j *IntegrityJob) Run(ctx context.Context, trigger string) (report ledger.IntegrityReport, err error) {
	tracker := j.Metrics.Track(integrityJobName)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger().With(slog.String("job", integrityJobName))
	if trigger != "" {
		logger = logger.With(slog.String("trigger", trigger))
	}

	report, err = j.Verifier.VerifyIntegrity(ctx)
	if err != nil {
		logger.Error("integrity check failed", slog.Any("error", err))
		return report, err
	}

	j.Metrics.AddDrifts(len(report.Drifts))
	for _, drift := range report.Drifts {
		logger.Warn("balance drift detected",
			slog.String("account_id", drift.AccountID),
			slog.String("user_id", drift.UserID),
			slog.String("stored", drift.Stored.String()),
			slog.String("expected", drift.Expected.String()),
		)
	}
	logger.Info("integrity check completed",
		slog.Int("accounts", report.Checked),
		slog.Int("drifts", len(report.Drifts)),
	)
	if len(report.Drifts) > 0 {
		return report, fmt.Errorf("%w: %d account(s)", ErrBalanceDrift, len(report.Drifts))
	}
	return report, nil
}

func (j *IntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
