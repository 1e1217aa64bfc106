package inventory

import (
	"context"

	"github.com/odyssey-erp/odyssey-books/internal/ledger"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	WithSnapshot(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations used by service. Stock rows and
// the COGS postings they imply share one transaction.
type TxRepository interface {
	ledger.TxRepository

	// LockProduct takes a row lock on the product, serialising every stock
	// movement of it including the first receipt.
	LockProduct(ctx context.Context, productID int64) error
	// ListLocations returns the product's locations ordered by id.
	ListLocations(ctx context.Context, productID int64) ([]StockLocation, error)
	InsertLocation(ctx context.Context, loc StockLocation) (StockLocation, error)
	UpdateLocation(ctx context.Context, loc StockLocation) error
	DeleteLocation(ctx context.Context, id int64) error
	GetOrderItemForUpdate(ctx context.Context, id int64) (OrderItem, error)
	UpdateOrderItem(ctx context.Context, item OrderItem) error
	// StockValue sums quantity times average cost over every location.
	StockValue(ctx context.Context) (float64, error)
}
