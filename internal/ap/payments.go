package ap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/odyssey-books/internal/ledger"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// CreatePayment records a payment against an open bill. Posted payments also
// write their journal entry and move the bank/cash balance; drafts only reserve
// the amount on the bill until PostPayment.
func (s *Service) CreatePayment(ctx context.Context, actorID int64, input PaymentInput) (Payment, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Payment{}, err
	}
	if input.Status == "" {
		input.Status = PaymentStatusPosted
	}
	release, err := s.acquire(ctx, input.BillID)
	if err != nil {
		return Payment{}, err
	}
	defer release()

	var payment Payment
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bill, err := tx.GetBillForUpdate(ctx, input.BillID)
		if err != nil {
			return err
		}
		amount := shared.Round2(input.Amount)
		if bill.Status == BillStatusPaid {
			return fmt.Errorf("%w: %.2f requested, %s is fully paid", ErrExceedsBalance, amount, bill.BillNumber)
		}
		if !bill.Payable() {
			return ErrNotPayable
		}
		if shared.Exceeds(amount, bill.Remaining()) {
			return fmt.Errorf("%w: %.2f requested, %.2f remaining on %s", ErrExceedsBalance, amount, bill.Remaining(), bill.BillNumber)
		}
		if err := checkPaymentAccount(ctx, tx, input.PaymentAccountID); err != nil {
			return err
		}
		now := s.now()
		last, err := tx.LastPaymentNumber(ctx, ledger.MonthPrefix(ledger.PrefixPayment, now))
		if err != nil {
			return err
		}
		payment, err = tx.InsertPayment(ctx, Payment{
			PaymentNumber:    ledger.NextNumber(ledger.PrefixPayment, now, last),
			PaymentDate:      input.PaymentDate,
			BillID:           bill.ID,
			PaymentAccountID: input.PaymentAccountID,
			Amount:           amount,
			Method:           input.Method,
			Reference:        input.Reference,
			Status:           input.Status,
			Notes:            input.Notes,
			CreatedBy:        actorID,
			CreatedAt:        now,
		})
		if err != nil {
			return err
		}
		bill.PaidAmount = shared.Sum(bill.PaidAmount, amount)
		bill.UpdateStatus()
		bill.UpdatedAt = now
		if err := tx.UpdateBill(ctx, bill); err != nil {
			return err
		}
		if payment.Status == PaymentStatusPosted {
			return s.postPaymentEntry(ctx, tx, actorID, bill, payment)
		}
		return nil
	})
	if err != nil {
		return Payment{}, err
	}
	s.logger().Info("payment recorded",
		slog.String("number", payment.PaymentNumber),
		slog.Int64("bill_id", payment.BillID),
		slog.Float64("amount", payment.Amount),
		slog.String("status", string(payment.Status)),
	)
	return payment, nil
}

// PostPayment posts a draft payment to the ledger.
func (s *Service) PostPayment(ctx context.Context, actorID, id int64) (Payment, error) {
	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		payment, err = tx.GetPaymentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if payment.Status != PaymentStatusDraft {
			return ErrPaymentPosted
		}
		bill, err := tx.GetBillForUpdate(ctx, payment.BillID)
		if err != nil {
			return err
		}
		if err := checkPaymentAccount(ctx, tx, payment.PaymentAccountID); err != nil {
			return err
		}
		if err := tx.UpdatePaymentStatus(ctx, id, PaymentStatusPosted); err != nil {
			return err
		}
		payment.Status = PaymentStatusPosted
		return s.postPaymentEntry(ctx, tx, actorID, bill, payment)
	})
	if err != nil {
		return Payment{}, err
	}
	return payment, nil
}

// DeletePayment undoes a payment: the journal entry and bank/cash movement of a
// posted payment are reversed and the bill's paid amount is released.
func (s *Service) DeletePayment(ctx context.Context, actorID, id int64) error {
	var (
		payment Payment
		removed []ledger.JournalEntry
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		payment, err = tx.GetPaymentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		bill, err := tx.GetBillForUpdate(ctx, payment.BillID)
		if err != nil {
			return err
		}
		if payment.Status == PaymentStatusPosted {
			removed, err = s.ledger.ReverseReferenceTx(ctx, tx, ledger.RefPayment, payment.ID)
			if err != nil {
				return err
			}
			if err := ledger.UpdateCashBalance(ctx, tx, payment.PaymentAccountID, payment.Amount, ledger.EntryTypeDebit); err != nil {
				return err
			}
		}
		bill.PaidAmount = shared.Sum(bill.PaidAmount, -payment.Amount)
		if shared.Exceeds(0, bill.PaidAmount) {
			bill.PaidAmount = 0
		}
		bill.UpdateStatus()
		bill.UpdatedAt = s.now()
		if err := tx.UpdateBill(ctx, bill); err != nil {
			return err
		}
		return tx.DeletePayment(ctx, payment.ID)
	})
	if err != nil {
		return err
	}
	s.ledger.RecordReversals(ctx, actorID, removed...)
	s.record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "payment.delete",
		Entity:   "payment",
		EntityID: payment.PaymentNumber,
		Meta:     map[string]any{"bill_id": payment.BillID, "amount": payment.Amount, "status": payment.Status},
		At:       s.now(),
	})
	return nil
}

// postPaymentEntry debits the payable account, credits the payment account and
// moves the cached bank/cash balance in the same transaction.
func (s *Service) postPaymentEntry(ctx context.Context, tx TxRepository, actorID int64, bill Bill, payment Payment) error {
	payable, err := s.payableAccount(ctx, tx, bill.SupplierID)
	if err != nil {
		return err
	}
	cash, err := tx.GetAccount(ctx, payment.PaymentAccountID)
	if err != nil {
		return err
	}
	memo := fmt.Sprintf("Payment %s for %s", payment.PaymentNumber, bill.BillNumber)
	credit := ledger.Decrease(cash, payment.Amount, memo)
	_, err = s.ledger.PostEntryTx(ctx, tx, ledger.PostingInput{
		ReferenceType: ledger.RefPayment,
		ReferenceID:   payment.ID,
		EntryDate:     payment.PaymentDate,
		Narration:     memo,
		CreatedBy:     actorID,
		Lines:         []ledger.PostingLine{ledger.Decrease(payable, payment.Amount, memo), credit},
	})
	if err != nil {
		return err
	}
	return ledger.UpdateCashBalance(ctx, tx, cash.ID, payment.Amount, ledger.EntryTypeCredit)
}

func (s *Service) acquire(ctx context.Context, billID int64) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	return s.locker.Acquire(ctx, shared.PaymentLockKey(billID))
}

func checkPaymentAccount(ctx context.Context, tx TxRepository, accountID int64) error {
	acc, err := tx.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !acc.Postable() || !acc.IsBankOrCash {
		return ErrPaymentAccount
	}
	return nil
}
