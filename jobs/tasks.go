package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskWarehouseWarmup pre-populates the rollup caches.
	TaskWarehouseWarmup = "rollup:warehouse_warmup"
	// TaskLedgerIntegrity scans the ledger for invariant violations.
	TaskLedgerIntegrity = "ledger:integrity_scan"
)

// ScheduledPayload carries scheduling metadata shared by cron tasks.
type ScheduledPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewWarehouseWarmupTask constructs the cache warmup task.
func NewWarehouseWarmupTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScheduledPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWarehouseWarmup, body, asynq.Queue(QueueDefault)), nil
}

// NewLedgerIntegrityTask constructs the nightly integrity scan task.
func NewLedgerIntegrityTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScheduledPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, body, asynq.Queue(QueueDefault)), nil
}
