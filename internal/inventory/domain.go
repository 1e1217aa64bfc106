package inventory

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// StockLocation is the stock of one product at one warehouse rack.
type StockLocation struct {
	ID               int64
	ProductID        int64
	WarehouseID      int64
	RackID           int64
	Quantity         float64
	PreviousQuantity float64
	AvgCost          float64
	UpdatedAt        time.Time
}

// Value returns quantity times average cost.
func (l StockLocation) Value() float64 {
	return shared.Monetary(l.Quantity, l.AvgCost)
}

// OrderItem carries the costing fields of a sales order line.
type OrderItem struct {
	ID               int64
	OrderID          int64
	ProductID        int64
	Quantity         float64
	InventoryUpdated bool
	// CostAtSale is the average cost captured when stock was deducted.
	CostAtSale *float64
}

// ReceiptInput describes stock received from a supplier.
type ReceiptInput struct {
	ProductID   int64     `validate:"required"`
	WarehouseID int64     `validate:"required"`
	RackID      int64     `validate:"required"`
	Quantity    float64   `validate:"gt=0"`
	UnitCost    float64   `validate:"gte=0"`
	ReferenceID int64     `validate:"required"`
	ReceivedAt  time.Time `validate:"required"`
	Narration   string    `validate:"max=255"`
}

// ChargesInput describes landed charges billed for a purchase.
type ChargesInput struct {
	ReferenceID int64     `validate:"required"`
	Date        time.Time `validate:"required"`
	Freight     float64   `validate:"gte=0"`
	Duties      float64   `validate:"gte=0"`
	Narration   string    `validate:"max=255"`
}

// ReturnInput describes received stock sent back to the supplier.
type ReturnInput struct {
	ProductID   int64     `validate:"required"`
	WarehouseID int64     `validate:"required"`
	RackID      int64     `validate:"required"`
	Quantity    float64   `validate:"gt=0"`
	UnitCost    float64   `validate:"gte=0"`
	ReferenceID int64     `validate:"required"`
	ReturnedAt  time.Time `validate:"required"`
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// StrictStock rejects sales that exceed stock on hand instead of deducting
	// what is available.
	StrictStock bool
	// DefaultWarehouseID and DefaultRackID receive restored stock for products
	// that no longer have any location.
	DefaultWarehouseID int64
	DefaultRackID      int64
}

// ReconcileReport compares stock value with the Inventory Asset ledger balance.
type ReconcileReport struct {
	AccountCode   string  `json:"account_code"`
	PhysicalValue float64 `json:"physical_value"`
	LedgerBalance float64 `json:"ledger_balance"`
	Variance      float64 `json:"variance"`
}

// Drift reports whether the variance is beyond tolerance.
func (r ReconcileReport) Drift() bool {
	return !shared.WithinTolerance(r.PhysicalValue, r.LedgerBalance)
}

var (
	// ErrNoProduct indicates the product does not exist.
	ErrNoProduct = fmt.Errorf("%w: product", shared.ErrNotFound)
	// ErrOrderItemNotFound indicates a missing order item.
	ErrOrderItemNotFound = fmt.Errorf("%w: order item", shared.ErrNotFound)
	// ErrLocationNotFound indicates the product has no stock at the given rack.
	ErrLocationNotFound = fmt.Errorf("%w: stock location", shared.ErrNotFound)
	// ErrInsufficientStock indicates a deduction larger than stock on hand.
	ErrInsufficientStock = shared.Conflictf("insufficient stock")
	// ErrNoDefaultLocation indicates restored stock has nowhere to go.
	ErrNoDefaultLocation = fmt.Errorf("%w: default warehouse and rack for restored stock", shared.ErrConfigurationMissing)
	// ErrNothingToCharge indicates charges without any amount.
	ErrNothingToCharge = shared.Validationf("freight or duties amount required")
)
