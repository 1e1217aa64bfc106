package ap

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// BillStatus enumerates bill statuses.
type BillStatus string

const (
	BillStatusDraft         BillStatus = "draft"
	BillStatusUnpaid        BillStatus = "unpaid"
	BillStatusPartiallyPaid BillStatus = "partially_paid"
	BillStatusPaid          BillStatus = "paid"
)

// PaymentStatus enumerates payment statuses.
type PaymentStatus string

const (
	PaymentStatusDraft  PaymentStatus = "draft"
	PaymentStatusPosted PaymentStatus = "posted"
)

// PaymentMethod enumerates how a payment leaves the business.
type PaymentMethod string

const (
	MethodBank PaymentMethod = "bank"
	MethodCash PaymentMethod = "cash"
)

// Supplier is the vendor a bill is owed to.
type Supplier struct {
	ID   int64
	Name string
	// PayableAccountID overrides the Trade Payables account for this supplier.
	PayableAccountID *int64
}

// Bill model.
type Bill struct {
	ID          int64
	BillNumber  string
	BillDate    time.Time
	DueDate     *time.Time
	SupplierID  int64
	TotalAmount float64
	PaidAmount  float64
	Status      BillStatus
	Notes       string
	CreatedBy   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Items       []BillItem
	Supplier    *Supplier
}

// BillItem is one expense line of a bill.
type BillItem struct {
	ID               int64
	BillID           int64
	ExpenseAccountID int64
	Description      string
	Amount           float64
}

// Payment model.
type Payment struct {
	ID               int64
	PaymentNumber    string
	PaymentDate      time.Time
	BillID           int64
	PaymentAccountID int64
	Amount           float64
	Method           PaymentMethod
	Reference        string
	Status           PaymentStatus
	Notes            string
	CreatedBy        int64
	CreatedAt        time.Time
}

// CanEdit reports whether the bill may still be changed: drafts always, unpaid
// bills only while no payment references them.
func (b Bill) CanEdit(paymentCount int) bool {
	switch b.Status {
	case BillStatusDraft:
		return true
	case BillStatusUnpaid:
		return paymentCount == 0
	}
	return false
}

// CanDelete follows the same rule as CanEdit.
func (b Bill) CanDelete(paymentCount int) bool {
	return b.CanEdit(paymentCount)
}

// Payable reports whether payments may be recorded against the bill.
func (b Bill) Payable() bool {
	return b.Status == BillStatusUnpaid || b.Status == BillStatusPartiallyPaid
}

// Remaining returns the amount still owed.
func (b Bill) Remaining() float64 {
	return shared.Sum(b.TotalAmount, -b.PaidAmount)
}

// UpdateStatus derives the status from the paid amount. Drafts are left alone.
func (b *Bill) UpdateStatus() {
	if b.Status == BillStatusDraft {
		return
	}
	switch {
	case !shared.Exceeds(b.TotalAmount, b.PaidAmount):
		b.Status = BillStatusPaid
	case shared.Exceeds(b.PaidAmount, 0):
		b.Status = BillStatusPartiallyPaid
	default:
		b.Status = BillStatusUnpaid
	}
}

// BillItemInput describes one bill line.
type BillItemInput struct {
	ExpenseAccountID int64   `validate:"required"`
	Description      string  `validate:"max=255"`
	Amount           float64 `validate:"gt=0"`
}

// BillInput carries the fields to create or replace a bill. An empty Status
// means draft.
type BillInput struct {
	SupplierID int64           `validate:"required"`
	BillDate   time.Time       `validate:"required"`
	DueDate    *time.Time
	Status     BillStatus      `validate:"omitempty,oneof=draft unpaid"`
	Notes      string          `validate:"max=1000"`
	Items      []BillItemInput `validate:"required,min=1,dive"`
}

// PaymentInput carries the fields to record a payment. An empty Status means
// posted.
type PaymentInput struct {
	BillID           int64         `validate:"required"`
	PaymentAccountID int64         `validate:"required"`
	PaymentDate      time.Time     `validate:"required"`
	Amount           float64       `validate:"gt=0"`
	Method           PaymentMethod `validate:"required,oneof=bank cash"`
	Reference        string        `validate:"max=120"`
	Status           PaymentStatus `validate:"omitempty,oneof=draft posted"`
	Notes            string        `validate:"max=1000"`
}

var (
	ErrBillNotFound     = fmt.Errorf("%w: bill", shared.ErrNotFound)
	ErrPaymentNotFound  = fmt.Errorf("%w: payment", shared.ErrNotFound)
	ErrSupplierNotFound = fmt.Errorf("%w: supplier", shared.ErrNotFound)
	ErrNotEditable      = shared.Conflictf("bill can only be edited while draft or unpaid without payments")
	ErrNotDeletable     = shared.Conflictf("bill can only be deleted while draft or unpaid without payments")
	ErrInvalidState     = shared.Conflictf("bill is not a draft")
	ErrNotPayable       = shared.Conflictf("bill is not open for payment")
	ErrPaymentPosted    = shared.Conflictf("payment is already posted")
	ErrExceedsBalance   = fmt.Errorf("ap: %w", shared.ErrBalanceExceeded)
	ErrPaymentAccount   = shared.Validationf("payment account must be an active bank or cash account")
)
