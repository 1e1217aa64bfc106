package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-books/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-books/internal/jobs"
	"github.com/odyssey-erp/odyssey-books/internal/ledger"
)

const (
	checkCash      = "cash"
	checkInventory = "inventory"
)

// CashReconciler compares cached bank/cash balances with the ledger.
type CashReconciler interface {
	ReconcileCashAccounts(ctx context.Context) ([]ledger.CashVariance, error)
}

// InventoryReconciler compares stock value with the Inventory Asset balance.
type InventoryReconciler interface {
	Reconcile(ctx context.Context) (inventory.ReconcileReport, error)
}

// ReconcileResult is the outcome of one reconciliation run.
type ReconcileResult struct {
	RunID     string                    `json:"run_id"`
	CheckedAt time.Time                 `json:"checked_at"`
	Cash      []ledger.CashVariance     `json:"cash_variances"`
	Inventory inventory.ReconcileReport `json:"inventory"`
}

// Drift reports whether any check found a variance beyond tolerance.
func (r ReconcileResult) Drift() bool {
	return len(r.Cash) > 0 || r.Inventory.Drift()
}

// ReconcileJob runs the cash and inventory checks side by side.
type ReconcileJob struct {
	Cash      CashReconciler
	Inventory InventoryReconciler
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewReconcileJob initialises the reconciliation handler.
func NewReconcileJob(cash CashReconciler, inv InventoryReconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileJob {
	return &ReconcileJob{
		Cash:      cash,
		Inventory: inv,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes a queued reconciliation task.
func (j *ReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("reconcile: handler not configured")
	}
	var payload ReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	runID := payload.RunID
	if runID == "" {
		if id, ok := asynq.GetTaskID(ctx); ok {
			runID = id
		} else {
			runID = uuid.NewString()
		}
	}
	_, err := j.Run(ctx, runID)
	return err
}

// Run performs one reconciliation and publishes its variances.
func (j *ReconcileJob) Run(ctx context.Context, runID string) (result ReconcileResult, err error) {
	if j.Cash == nil || j.Inventory == nil {
		return ReconcileResult{}, errors.New("reconcile: reconcilers not configured")
	}
	tracker := j.Metrics.Track(TaskLedgerReconcile)
	defer func() {
		err = tracker.End(err)
	}()

	start := j.now()
	logger := j.logger().With(slog.String("run_id", runID))
	logger.Info("starting reconciliation")

	result = ReconcileResult{RunID: runID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		variances, err := j.Cash.ReconcileCashAccounts(gctx)
		if err != nil {
			return err
		}
		result.Cash = variances
		return nil
	})
	g.Go(func() error {
		report, err := j.Inventory.Reconcile(gctx)
		if err != nil {
			return err
		}
		result.Inventory = report
		return nil
	})
	if err = g.Wait(); err != nil {
		logger.Error("reconciliation failed", slog.Any("error", err))
		return ReconcileResult{}, err
	}

	result.CheckedAt = j.now()
	for _, v := range result.Cash {
		j.Metrics.SetVariance(checkCash, v.Code, v.Variance, true)
	}
	j.Metrics.SetVariance(checkInventory, result.Inventory.AccountCode, result.Inventory.Variance, result.Inventory.Drift())
	j.Metrics.MarkChecked(checkCash, result.CheckedAt)
	j.Metrics.MarkChecked(checkInventory, result.CheckedAt)

	logger.Info("completed reconciliation",
		slog.Int("cash_variances", len(result.Cash)),
		slog.Float64("inventory_variance", result.Inventory.Variance),
		slog.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (j *ReconcileJob) logger() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *ReconcileJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
