package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-books/internal/ap"
	"github.com/odyssey-erp/odyssey-books/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-books/internal/jobs"
	"github.com/odyssey-erp/odyssey-books/internal/ledger"
	"github.com/odyssey-erp/odyssey-books/internal/platform/lock"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
	"github.com/odyssey-erp/odyssey-books/jobs"
)

// Core wires the ledger, payables and inventory services over one pool.
// Order fulfilment and bill controllers call into these services directly.
type Core struct {
	Ledger    *ledger.Service
	Payables  *ap.Service
	Inventory *inventory.Service
}

// NewCore builds the services. A nil redis client leaves payments serialised by
// row locks alone.
func NewCore(pool *pgxpool.Pool, redisClient *redis.Client, cfg *Config, logger *slog.Logger) *Core {
	audit := shared.NewAuditLogger(pool)
	ledgerService := ledger.NewService(ledger.NewRepository(pool), audit, cfg.AccountCodes(), logger)

	payables := ap.NewService(ap.NewRepository(pool), ledgerService, audit, logger)
	if redisClient != nil {
		payables.SetLocker(lock.New(redisClient, cfg.PaymentLockTTL, logger))
	}

	return &Core{
		Ledger:    ledgerService,
		Payables:  payables,
		Inventory: inventory.NewService(inventory.NewRepository(pool), ledgerService, cfg.InventoryConfig(), logger),
	}
}

// ReconcileJob returns the cash and inventory reconciliation job.
func (c *Core) ReconcileJob(logger *slog.Logger, metrics *jobmetrics.Metrics) *jobs.ReconcileJob {
	return jobs.NewReconcileJob(c.Ledger, c.Inventory, logger, metrics)
}
