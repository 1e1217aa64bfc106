package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-books/internal/ledger"
	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	ledger.TxRepository
	tx pgx.Tx
}

// WithTx executes the callback inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithWriteTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: ledger.NewTxRepository(tx), tx: tx})
	})
}

// WithSnapshot executes read-only fn inside a repeatable-read transaction.
func (r *Repository) WithSnapshot(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: ledger.NewTxRepository(tx), tx: tx})
	})
}

func (r *txRepository) LockProduct(ctx context.Context, productID int64) error {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM products WHERE id=$1 FOR UPDATE`, productID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNoProduct
	}
	return err
}

func (r *txRepository) ListLocations(ctx context.Context, productID int64) ([]StockLocation, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, product_id, warehouse_id, rack_id, quantity, previous_quantity, avg_cost, updated_at
FROM product_stock_locations WHERE product_id=$1 ORDER BY id FOR UPDATE`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StockLocation
	for rows.Next() {
		var l StockLocation
		if err := rows.Scan(&l.ID, &l.ProductID, &l.WarehouseID, &l.RackID, &l.Quantity, &l.PreviousQuantity, &l.AvgCost, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *txRepository) InsertLocation(ctx context.Context, loc StockLocation) (StockLocation, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO product_stock_locations (product_id, warehouse_id, rack_id, quantity, previous_quantity, avg_cost, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`, loc.ProductID, loc.WarehouseID, loc.RackID,
		shared.Numeric(loc.Quantity, 4), shared.Numeric(loc.PreviousQuantity, 4), shared.Numeric(loc.AvgCost, 6), loc.UpdatedAt).Scan(&loc.ID)
	return loc, err
}

func (r *txRepository) UpdateLocation(ctx context.Context, loc StockLocation) error {
	tag, err := r.tx.Exec(ctx, `UPDATE product_stock_locations SET quantity=$2, previous_quantity=$3, avg_cost=$4, updated_at=$5 WHERE id=$1`,
		loc.ID, shared.Numeric(loc.Quantity, 4), shared.Numeric(loc.PreviousQuantity, 4), shared.Numeric(loc.AvgCost, 6), loc.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLocationNotFound
	}
	return nil
}

func (r *txRepository) DeleteLocation(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM product_stock_locations WHERE id=$1`, id)
	return err
}

func (r *txRepository) GetOrderItemForUpdate(ctx context.Context, id int64) (OrderItem, error) {
	var it OrderItem
	err := r.tx.QueryRow(ctx, `SELECT id, order_id, product_id, quantity, inventory_updated, cost_at_sale
FROM order_items WHERE id=$1 FOR UPDATE`, id).Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.InventoryUpdated, &it.CostAtSale)
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderItem{}, ErrOrderItemNotFound
	}
	return it, err
}

func (r *txRepository) UpdateOrderItem(ctx context.Context, item OrderItem) error {
	var cost any
	if item.CostAtSale != nil {
		cost = shared.Numeric(*item.CostAtSale, 6)
	}
	tag, err := r.tx.Exec(ctx, `UPDATE order_items SET inventory_updated=$2, cost_at_sale=$3 WHERE id=$1`, item.ID, item.InventoryUpdated, cost)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderItemNotFound
	}
	return nil
}

func (r *txRepository) StockValue(ctx context.Context) (float64, error) {
	var value float64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(ROUND(SUM(quantity * avg_cost), 2), 0) FROM product_stock_locations`).Scan(&value)
	return value, err
}
