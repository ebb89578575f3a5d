package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity recomputes every account balance and reports drift.
	TaskLedgerIntegrity = "ledger:integrity"
)

// IntegrityPayload carries the options of one integrity run.
type IntegrityPayload struct {
	// Trigger records who asked for the run, "cron" or "manual".
	Trigger string `json:"trigger"`
}

// NewIntegrityTask constructs an Asynq task for the ledger integrity check.
func NewIntegrityTask(trigger string) (*asynq.Task, error) {
	if trigger == "" {
		trigger = "manual"
	}
	data, err := json.Marshal(IntegrityPayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}
