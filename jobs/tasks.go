package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerReconcile compares cached and physical balances with the ledger.
	TaskLedgerReconcile = "ledger:reconcile"
)

// ReconcilePayload carries scheduling metadata for a reconciliation run.
type ReconcilePayload struct {
	RunID       string    `json:"run_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewReconcileTask constructs an Asynq task for reconciliation.
func NewReconcileTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ReconcilePayload{RunID: uuid.NewString(), RequestedAt: at.UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerReconcile, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// NewScheduledReconcileTask builds the task registered with the scheduler. The
// payload carries no run id so every firing gets its own.
func NewScheduledReconcileTask() (*asynq.Task, error) {
	body, err := json.Marshal(ReconcilePayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerReconcile, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
