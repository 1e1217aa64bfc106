package ap

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-books/internal/ledger"
	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Repository defines AP data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository defines operations within a transaction. It embeds the ledger
// repository so postings commit with the bill or payment that caused them.
type TxRepository interface {
	ledger.TxRepository

	GetSupplier(ctx context.Context, id int64) (Supplier, error)

	LastBillNumber(ctx context.Context, monthPrefix string) (string, error)
	InsertBill(ctx context.Context, bill Bill) (Bill, error)
	GetBill(ctx context.Context, id int64) (Bill, error)
	GetBillForUpdate(ctx context.Context, id int64) (Bill, error)
	UpdateBill(ctx context.Context, bill Bill) error
	DeleteBill(ctx context.Context, id int64) error
	ListBillItems(ctx context.Context, billID int64) ([]BillItem, error)
	InsertBillItems(ctx context.Context, billID int64, items []BillItem) ([]BillItem, error)
	DeleteBillItems(ctx context.Context, billID int64) error

	LastPaymentNumber(ctx context.Context, monthPrefix string) (string, error)
	InsertPayment(ctx context.Context, payment Payment) (Payment, error)
	GetPaymentForUpdate(ctx context.Context, id int64) (Payment, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status PaymentStatus) error
	DeletePayment(ctx context.Context, id int64) error
	CountPayments(ctx context.Context, billID int64) (int, error)
	ListPayments(ctx context.Context, billID int64) ([]Payment, error)
}

var _ Repository = (*pgRepository)(nil)
var _ TxRepository = (*pgTxRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the Postgres backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithWriteTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{TxRepository: ledger.NewTxRepository(tx), tx: tx})
	})
}

type pgTxRepository struct {
	ledger.TxRepository
	tx pgx.Tx
}

func (r *pgTxRepository) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	var s Supplier
	err := r.tx.QueryRow(ctx, `SELECT id, name, payable_account_id FROM suppliers WHERE id=$1`, id).
		Scan(&s.ID, &s.Name, &s.PayableAccountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrSupplierNotFound
	}
	return s, err
}

func (r *pgTxRepository) LastBillNumber(ctx context.Context, monthPrefix string) (string, error) {
	return db.LastNumberForUpdate(ctx, r.tx, "bills", "bill_number", monthPrefix)
}

func (r *pgTxRepository) InsertBill(ctx context.Context, bill Bill) (Bill, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO bills (bill_number, bill_date, due_date, supplier_id, total_amount, paid_amount,
status, notes, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10) RETURNING id`,
		bill.BillNumber, bill.BillDate, bill.DueDate, bill.SupplierID, shared.Numeric(bill.TotalAmount, 2),
		shared.Numeric(bill.PaidAmount, 2), bill.Status, bill.Notes, bill.CreatedBy, bill.CreatedAt).Scan(&bill.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Bill{}, ledger.ErrDuplicateNumber
		}
		return Bill{}, err
	}
	bill.UpdatedAt = bill.CreatedAt
	return bill, nil
}

const billColumns = `id, bill_number, bill_date, due_date, supplier_id, total_amount, paid_amount, status, notes,
created_by, created_at, updated_at`

func (r *pgTxRepository) scanBill(ctx context.Context, sql string, id int64) (Bill, error) {
	var b Bill
	err := r.tx.QueryRow(ctx, sql, id).Scan(&b.ID, &b.BillNumber, &b.BillDate, &b.DueDate, &b.SupplierID,
		&b.TotalAmount, &b.PaidAmount, &b.Status, &b.Notes, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Bill{}, ErrBillNotFound
	}
	return b, err
}

func (r *pgTxRepository) GetBill(ctx context.Context, id int64) (Bill, error) {
	return r.scanBill(ctx, `SELECT `+billColumns+` FROM bills WHERE id=$1`, id)
}

func (r *pgTxRepository) GetBillForUpdate(ctx context.Context, id int64) (Bill, error) {
	return r.scanBill(ctx, `SELECT `+billColumns+` FROM bills WHERE id=$1 FOR UPDATE`, id)
}

func (r *pgTxRepository) UpdateBill(ctx context.Context, bill Bill) error {
	tag, err := r.tx.Exec(ctx, `UPDATE bills SET bill_date=$2, due_date=$3, supplier_id=$4, total_amount=$5, paid_amount=$6,
status=$7, notes=$8, updated_at=$9 WHERE id=$1`, bill.ID, bill.BillDate, bill.DueDate, bill.SupplierID,
		shared.Numeric(bill.TotalAmount, 2), shared.Numeric(bill.PaidAmount, 2), bill.Status, bill.Notes, bill.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBillNotFound
	}
	return nil
}

func (r *pgTxRepository) DeleteBill(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM bills WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBillNotFound
	}
	return nil
}

func (r *pgTxRepository) ListBillItems(ctx context.Context, billID int64) ([]BillItem, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, bill_id, expense_account_id, description, amount FROM bill_items
WHERE bill_id=$1 ORDER BY id`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BillItem
	for rows.Next() {
		var it BillItem
		if err := rows.Scan(&it.ID, &it.BillID, &it.ExpenseAccountID, &it.Description, &it.Amount); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *pgTxRepository) InsertBillItems(ctx context.Context, billID int64, items []BillItem) ([]BillItem, error) {
	out := make([]BillItem, 0, len(items))
	for _, it := range items {
		it.BillID = billID
		err := r.tx.QueryRow(ctx, `INSERT INTO bill_items (bill_id, expense_account_id, description, amount)
VALUES ($1,$2,$3,$4) RETURNING id`, billID, it.ExpenseAccountID, it.Description, shared.Numeric(it.Amount, 2)).Scan(&it.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

func (r *pgTxRepository) DeleteBillItems(ctx context.Context, billID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM bill_items WHERE bill_id=$1`, billID)
	return err
}

func (r *pgTxRepository) LastPaymentNumber(ctx context.Context, monthPrefix string) (string, error) {
	return db.LastNumberForUpdate(ctx, r.tx, "payments", "payment_number", monthPrefix)
}

func (r *pgTxRepository) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO payments (payment_number, payment_date, bill_id, payment_account_id, amount,
method, reference, status, notes, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
		p.PaymentNumber, p.PaymentDate, p.BillID, p.PaymentAccountID, shared.Numeric(p.Amount, 2),
		p.Method, p.Reference, p.Status, p.Notes, p.CreatedBy, p.CreatedAt).Scan(&p.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Payment{}, ledger.ErrDuplicateNumber
		}
		return Payment{}, err
	}
	return p, nil
}

const paymentColumns = `id, payment_number, payment_date, bill_id, payment_account_id, amount, method, reference,
status, notes, created_by, created_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.PaymentNumber, &p.PaymentDate, &p.BillID, &p.PaymentAccountID, &p.Amount,
		&p.Method, &p.Reference, &p.Status, &p.Notes, &p.CreatedBy, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrPaymentNotFound
	}
	return p, err
}

func (r *pgTxRepository) GetPaymentForUpdate(ctx context.Context, id int64) (Payment, error) {
	return scanPayment(r.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1 FOR UPDATE`, id))
}

func (r *pgTxRepository) UpdatePaymentStatus(ctx context.Context, id int64, status PaymentStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE payments SET status=$2 WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *pgTxRepository) DeletePayment(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM payments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *pgTxRepository) CountPayments(ctx context.Context, billID int64) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE bill_id=$1`, billID).Scan(&n)
	return n, err
}

func (r *pgTxRepository) ListPayments(ctx context.Context, billID int64) ([]Payment, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE bill_id=$1 ORDER BY id`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
