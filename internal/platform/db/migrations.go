package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is one versioned schema change. Versions sort lexically.
type Migration struct {
	Version string
	Name    string
	Up      string
}

// Migrations is the ordered schema history of the accounting core.
var Migrations = []Migration{
	{
		Version: "20250101000001",
		Name:    "create_ledger_accounts",
		Up: `
CREATE TABLE IF NOT EXISTS ledger_accounts (
    id              BIGSERIAL PRIMARY KEY,
    parent_id       BIGINT REFERENCES ledger_accounts(id),
    code            TEXT NOT NULL UNIQUE,
    name            TEXT NOT NULL,
    nature          TEXT NOT NULL CHECK (nature IN ('asset','liability','equity','revenue','expense')),
    kind            TEXT NOT NULL CHECK (kind IN ('group','account')),
    is_system       BOOLEAN NOT NULL DEFAULT FALSE,
    is_active       BOOLEAN NOT NULL DEFAULT TRUE,
    is_bank_or_cash BOOLEAN NOT NULL DEFAULT FALSE,
    opening_balance NUMERIC(18,2) NOT NULL DEFAULT 0,
    current_balance NUMERIC(18,2) NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_ledger_accounts_parent ON ledger_accounts (parent_id);`,
	},
	{
		Version: "20250101000002",
		Name:    "create_journal",
		Up: `
CREATE TABLE IF NOT EXISTS journal_entries (
    id             BIGSERIAL PRIMARY KEY,
    entry_number   TEXT NOT NULL UNIQUE,
    entry_date     DATE NOT NULL,
    reference_type TEXT NOT NULL,
    reference_id   BIGINT NOT NULL DEFAULT 0,
    narration      TEXT NOT NULL DEFAULT '',
    is_posted      BOOLEAN NOT NULL DEFAULT TRUE,
    created_by     BIGINT NOT NULL DEFAULT 0,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_journal_entries_reference ON journal_entries (reference_type, reference_id);

CREATE TABLE IF NOT EXISTS journal_entry_lines (
    id          BIGSERIAL PRIMARY KEY,
    entry_id    BIGINT NOT NULL REFERENCES journal_entries(id) ON DELETE CASCADE,
    account_id  BIGINT NOT NULL REFERENCES ledger_accounts(id),
    description TEXT NOT NULL DEFAULT '',
    debit       NUMERIC(18,2) NOT NULL DEFAULT 0 CHECK (debit >= 0),
    credit      NUMERIC(18,2) NOT NULL DEFAULT 0 CHECK (credit >= 0),
    CHECK (NOT (debit > 0 AND credit > 0))
);
CREATE INDEX IF NOT EXISTS idx_journal_lines_account ON journal_entry_lines (account_id);
CREATE INDEX IF NOT EXISTS idx_journal_lines_entry ON journal_entry_lines (entry_id);`,
	},
	{
		Version: "20250101000003",
		Name:    "create_payables",
		Up: `
CREATE TABLE IF NOT EXISTS suppliers (
    id                 BIGSERIAL PRIMARY KEY,
    name               TEXT NOT NULL,
    payable_account_id BIGINT REFERENCES ledger_accounts(id)
);

CREATE TABLE IF NOT EXISTS bills (
    id           BIGSERIAL PRIMARY KEY,
    bill_number  TEXT NOT NULL UNIQUE,
    bill_date    DATE NOT NULL,
    due_date     DATE,
    supplier_id  BIGINT NOT NULL REFERENCES suppliers(id),
    total_amount NUMERIC(18,2) NOT NULL DEFAULT 0,
    paid_amount  NUMERIC(18,2) NOT NULL DEFAULT 0,
    status       TEXT NOT NULL CHECK (status IN ('draft','unpaid','partially_paid','paid')),
    notes        TEXT NOT NULL DEFAULT '',
    created_by   BIGINT NOT NULL DEFAULT 0,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS bill_items (
    id                 BIGSERIAL PRIMARY KEY,
    bill_id            BIGINT NOT NULL REFERENCES bills(id) ON DELETE CASCADE,
    expense_account_id BIGINT NOT NULL REFERENCES ledger_accounts(id),
    description        TEXT NOT NULL DEFAULT '',
    amount             NUMERIC(18,2) NOT NULL CHECK (amount > 0)
);

CREATE TABLE IF NOT EXISTS payments (
    id                 BIGSERIAL PRIMARY KEY,
    payment_number     TEXT NOT NULL UNIQUE,
    payment_date       DATE NOT NULL,
    bill_id            BIGINT NOT NULL REFERENCES bills(id),
    payment_account_id BIGINT NOT NULL REFERENCES ledger_accounts(id),
    amount             NUMERIC(18,2) NOT NULL CHECK (amount > 0),
    method             TEXT NOT NULL CHECK (method IN ('bank','cash')),
    reference          TEXT NOT NULL DEFAULT '',
    status             TEXT NOT NULL CHECK (status IN ('draft','posted')),
    notes              TEXT NOT NULL DEFAULT '',
    created_by         BIGINT NOT NULL DEFAULT 0,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_payments_bill ON payments (bill_id);`,
	},
	{
		Version: "20250101000004",
		Name:    "create_inventory",
		Up: `
CREATE TABLE IF NOT EXISTS products (
    id   BIGSERIAL PRIMARY KEY,
    sku  TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS product_stock_locations (
    id                BIGSERIAL PRIMARY KEY,
    product_id        BIGINT NOT NULL REFERENCES products(id),
    warehouse_id      BIGINT NOT NULL,
    rack_id           BIGINT NOT NULL,
    quantity          NUMERIC(18,4) NOT NULL DEFAULT 0 CHECK (quantity >= 0),
    previous_quantity NUMERIC(18,4) NOT NULL DEFAULT 0,
    avg_cost          NUMERIC(18,6) NOT NULL DEFAULT 0 CHECK (avg_cost >= 0),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (product_id, warehouse_id, rack_id)
);

CREATE TABLE IF NOT EXISTS order_items (
    id                BIGSERIAL PRIMARY KEY,
    order_id          BIGINT NOT NULL,
    product_id        BIGINT NOT NULL REFERENCES products(id),
    quantity          NUMERIC(18,4) NOT NULL CHECK (quantity > 0),
    inventory_updated BOOLEAN NOT NULL DEFAULT FALSE,
    cost_at_sale      NUMERIC(18,6)
);
CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items (order_id);`,
	},
	{
		Version: "20250101000005",
		Name:    "create_audit_logs",
		Up: `
CREATE TABLE IF NOT EXISTS audit_logs (
    id          BIGSERIAL PRIMARY KEY,
    actor_id    BIGINT NOT NULL DEFAULT 0,
    action      TEXT NOT NULL,
    entity      TEXT NOT NULL,
    entity_id   TEXT NOT NULL,
    meta        JSONB NOT NULL DEFAULT '{}',
    occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_audit_logs_entity ON audit_logs (entity, entity_id);`,
	},
}

// Migrate applies pending migrations in version order. Each migration runs in
// its own transaction together with its schema_migrations row. The transaction
// is read-committed so the version check sees rows committed while it waited
// for the advisory lock.
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return fmt.Errorf("platform/db: create schema_migrations: %w", err)
	}
	for _, m := range Migrations {
		applied := false
		err := WithWriteTx(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('schema_migrations'))`); err != nil {
				return err
			}
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return nil
			}
			if _, err := tx.Exec(ctx, m.Up); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name); err != nil {
				return err
			}
			applied = true
			return nil
		})
		if err != nil {
			return fmt.Errorf("platform/db: migration %s_%s: %w", m.Version, m.Name, err)
		}
		if applied {
			logger.Info("migration applied", slog.String("version", m.Version), slog.String("name", m.Name))
		}
	}
	return nil
}
