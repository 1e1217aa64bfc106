package ap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/ledger"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Locker serialises work on one key across processes.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Service drives the bill and payment workflows.
type Service struct {
	repo   Repository
	ledger *ledger.Service
	audit  shared.AuditPort
	locker Locker
	log    *slog.Logger
	now    func() time.Time
}

// NewService constructs the AP service.
func NewService(repo Repository, ledgerSvc *ledger.Service, audit shared.AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, ledger: ledgerSvc, audit: audit, log: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// SetLocker enables cross-process serialisation of payments per bill.
func (s *Service) SetLocker(locker Locker) {
	s.locker = locker
}

func (s *Service) logger() *slog.Logger {
	if s.log == nil {
		return slog.Default()
	}
	return s.log
}

// CreateBill persists a bill with its items and posts it unless it is a draft.
func (s *Service) CreateBill(ctx context.Context, actorID int64, input BillInput) (Bill, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Bill{}, err
	}
	if input.Status == "" {
		input.Status = BillStatusDraft
	}
	var billID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		supplier, err := tx.GetSupplier(ctx, input.SupplierID)
		if err != nil {
			return err
		}
		if err := checkExpenseAccounts(ctx, tx, input.Items); err != nil {
			return err
		}
		now := s.now()
		last, err := tx.LastBillNumber(ctx, ledger.MonthPrefix(ledger.PrefixBill, now))
		if err != nil {
			return err
		}
		bill, err := tx.InsertBill(ctx, Bill{
			BillNumber: ledger.NextNumber(ledger.PrefixBill, now, last),
			BillDate:   input.BillDate,
			DueDate:    input.DueDate,
			SupplierID: supplier.ID,
			Status:     input.Status,
			Notes:      input.Notes,
			CreatedBy:  actorID,
			CreatedAt:  now,
		})
		if err != nil {
			return err
		}
		billID = bill.ID
		bill.Supplier = &supplier
		if err := s.replaceItems(ctx, tx, &bill, input.Items); err != nil {
			return err
		}
		bill.UpdateStatus()
		bill.UpdatedAt = now
		if err := tx.UpdateBill(ctx, bill); err != nil {
			return err
		}
		if bill.Status != BillStatusDraft {
			return s.postBillEntry(ctx, tx, actorID, bill)
		}
		return nil
	})
	if err != nil {
		return Bill{}, err
	}
	return s.GetBill(ctx, billID)
}

// UpdateBill replaces the bill header and items. Any posting is reversed and
// the bill is posted again when it is not a draft.
func (s *Service) UpdateBill(ctx context.Context, actorID, id int64, input BillInput) (Bill, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Bill{}, err
	}
	var removed []ledger.JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bill, err := tx.GetBillForUpdate(ctx, id)
		if err != nil {
			return err
		}
		payments, err := tx.CountPayments(ctx, id)
		if err != nil {
			return err
		}
		if !bill.CanEdit(payments) {
			return ErrNotEditable
		}
		supplier, err := tx.GetSupplier(ctx, input.SupplierID)
		if err != nil {
			return err
		}
		if err := checkExpenseAccounts(ctx, tx, input.Items); err != nil {
			return err
		}
		removed, err = s.ledger.ReverseReferenceTx(ctx, tx, ledger.RefBill, bill.ID)
		if err != nil {
			return err
		}
		if err := tx.DeleteBillItems(ctx, bill.ID); err != nil {
			return err
		}
		bill.BillDate = input.BillDate
		bill.DueDate = input.DueDate
		bill.SupplierID = supplier.ID
		bill.Supplier = &supplier
		bill.Notes = input.Notes
		if input.Status != "" {
			bill.Status = input.Status
		}
		if err := s.replaceItems(ctx, tx, &bill, input.Items); err != nil {
			return err
		}
		bill.UpdateStatus()
		bill.UpdatedAt = s.now()
		if err := tx.UpdateBill(ctx, bill); err != nil {
			return err
		}
		if bill.Status != BillStatusDraft {
			return s.postBillEntry(ctx, tx, actorID, bill)
		}
		return nil
	})
	if err != nil {
		return Bill{}, err
	}
	s.ledger.RecordReversals(ctx, actorID, removed...)
	return s.GetBill(ctx, id)
}

// DeleteBill removes a bill that has no payments, reversing its posting.
func (s *Service) DeleteBill(ctx context.Context, actorID, id int64) error {
	var (
		removed []ledger.JournalEntry
		bill    Bill
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		bill, err = tx.GetBillForUpdate(ctx, id)
		if err != nil {
			return err
		}
		payments, err := tx.CountPayments(ctx, id)
		if err != nil {
			return err
		}
		if !bill.CanDelete(payments) {
			return ErrNotDeletable
		}
		removed, err = s.ledger.ReverseReferenceTx(ctx, tx, ledger.RefBill, bill.ID)
		if err != nil {
			return err
		}
		if err := tx.DeleteBillItems(ctx, bill.ID); err != nil {
			return err
		}
		return tx.DeleteBill(ctx, bill.ID)
	})
	if err != nil {
		return err
	}
	s.ledger.RecordReversals(ctx, actorID, removed...)
	s.record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "bill.delete",
		Entity:   "bill",
		EntityID: bill.BillNumber,
		Meta:     map[string]any{"total": bill.TotalAmount, "status": bill.Status},
		At:       s.now(),
	})
	return nil
}

// PostBill moves a draft bill to unpaid and posts its journal entry.
func (s *Service) PostBill(ctx context.Context, actorID, id int64) (Bill, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bill, err := tx.GetBillForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if bill.Status != BillStatusDraft {
			return ErrInvalidState
		}
		bill.Items, err = tx.ListBillItems(ctx, id)
		if err != nil {
			return err
		}
		bill.Status = BillStatusUnpaid
		bill.UpdateStatus()
		bill.UpdatedAt = s.now()
		if err := tx.UpdateBill(ctx, bill); err != nil {
			return err
		}
		return s.postBillEntry(ctx, tx, actorID, bill)
	})
	if err != nil {
		return Bill{}, err
	}
	return s.GetBill(ctx, id)
}

// GetBill loads a bill with its items and supplier.
func (s *Service) GetBill(ctx context.Context, id int64) (Bill, error) {
	var bill Bill
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		bill, err = tx.GetBill(ctx, id)
		if err != nil {
			return err
		}
		bill.Items, err = tx.ListBillItems(ctx, id)
		if err != nil {
			return err
		}
		supplier, err := tx.GetSupplier(ctx, bill.SupplierID)
		if err != nil {
			return err
		}
		bill.Supplier = &supplier
		return nil
	})
	return bill, err
}

// ListPayments returns the payments recorded against a bill.
func (s *Service) ListPayments(ctx context.Context, billID int64) ([]Payment, error) {
	var payments []Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		payments, err = tx.ListPayments(ctx, billID)
		return err
	})
	return payments, err
}

func (s *Service) replaceItems(ctx context.Context, tx TxRepository, bill *Bill, inputs []BillItemInput) error {
	items := make([]BillItem, 0, len(inputs))
	amounts := make([]float64, 0, len(inputs))
	for _, in := range inputs {
		amount := shared.Round2(in.Amount)
		items = append(items, BillItem{ExpenseAccountID: in.ExpenseAccountID, Description: in.Description, Amount: amount})
		amounts = append(amounts, amount)
	}
	saved, err := tx.InsertBillItems(ctx, bill.ID, items)
	if err != nil {
		return err
	}
	bill.Items = saved
	bill.TotalAmount = shared.Sum(amounts...)
	return nil
}

// postBillEntry debits each expense account and credits the payable account
// for the bill total.
func (s *Service) postBillEntry(ctx context.Context, tx TxRepository, actorID int64, bill Bill) error {
	payable, err := s.payableAccount(ctx, tx, bill.SupplierID)
	if err != nil {
		return err
	}
	lines := make([]ledger.PostingLine, 0, len(bill.Items)+1)
	for _, item := range bill.Items {
		expense, err := tx.GetAccount(ctx, item.ExpenseAccountID)
		if err != nil {
			return err
		}
		lines = append(lines, ledger.Increase(expense, item.Amount, item.Description))
	}
	lines = append(lines, ledger.Increase(payable, bill.TotalAmount, "Bill "+bill.BillNumber))
	_, err = s.ledger.PostEntryTx(ctx, tx, ledger.PostingInput{
		ReferenceType: ledger.RefBill,
		ReferenceID:   bill.ID,
		EntryDate:     bill.BillDate,
		Narration:     fmt.Sprintf("Bill %s", bill.BillNumber),
		CreatedBy:     actorID,
		Lines:         lines,
	})
	return err
}

// payableAccount prefers the supplier's own payable account and falls back to
// the configured Trade Payables account.
func (s *Service) payableAccount(ctx context.Context, tx TxRepository, supplierID int64) (ledger.Account, error) {
	supplier, err := tx.GetSupplier(ctx, supplierID)
	if err != nil {
		return ledger.Account{}, err
	}
	if supplier.PayableAccountID != nil {
		acc, err := tx.GetAccount(ctx, *supplier.PayableAccountID)
		if err != nil {
			return ledger.Account{}, fmt.Errorf("supplier %d payable account: %w", supplierID, err)
		}
		return acc, nil
	}
	return s.ledger.ResolveRole(ctx, tx, ledger.RoleTradePayables)
}

func checkExpenseAccounts(ctx context.Context, tx TxRepository, items []BillItemInput) error {
	for idx, item := range items {
		acc, err := tx.GetAccount(ctx, item.ExpenseAccountID)
		if err != nil {
			return fmt.Errorf("item %d: %w", idx, err)
		}
		if !acc.Postable() {
			return shared.Validationf("item %d account %s is not postable", idx, acc.Code)
		}
		if !acc.Nature.DebitNormal() {
			return shared.Validationf("item %d account %s is a %s account and cannot be debited", idx, acc.Code, acc.Nature)
		}
	}
	return nil
}

func (s *Service) record(ctx context.Context, log shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger().Warn("audit record failed", slog.String("action", log.Action), slog.Any("error", err))
	}
}
