package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerWarmup precomputes and caches today's ledger passes.
	TaskLedgerWarmup = "ledger:warmup"
	// TaskOverdueScan reports the overdue receivable backlog.
	TaskOverdueScan = "ledger:overdue_scan"
)

// LedgerWarmupPayload selects the reference date and filters to warm.
type LedgerWarmupPayload struct {
	// AsOf is YYYY-MM-DD; empty means the day the job runs.
	AsOf  string   `json:"as_of,omitempty"`
	Types []string `json:"types,omitempty"`
}

// OverdueScanPayload configures an overdue scan.
type OverdueScanPayload struct {
	AsOf string `json:"as_of,omitempty"`
	// MinDays ignores lines overdue by fewer days.
	MinDays int `json:"min_days,omitempty"`
}

// NewLedgerWarmupTask constructs a warmup task.
func NewLedgerWarmupTask(payload LedgerWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerWarmup, data, asynq.Timeout(2*time.Minute)), nil
}

// NewOverdueScanTask constructs an overdue scan task.
func NewOverdueScanTask(payload OverdueScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverdueScan, data, asynq.Timeout(2*time.Minute)), nil
}

func parseAsOf(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return now, nil
	}
	return time.Parse("2006-01-02", raw)
}
