package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Repository persists ledger entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn within a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithWriteTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// WithSnapshot executes fn within a repeatable-read transaction.
func (r *Repository) WithSnapshot(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// NewTxRepository binds the ledger queries to tx. Workflow repositories embed the
// result so their postings share the workflow transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

type txRepository struct {
	tx pgx.Tx
}

const accountColumns = `id, parent_id, code, name, nature, kind, is_system, is_active, is_bank_or_cash,
opening_balance, current_balance, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.ParentID, &a.Code, &a.Name, &a.Nature, &a.Kind, &a.IsSystem, &a.IsActive,
		&a.IsBankOrCash, &a.OpeningBalance, &a.CurrentBalance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) queryAccounts(ctx context.Context, sql string, args ...any) ([]Account, error) {
	rows, err := r.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *txRepository) GetAccount(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE id=$1`, id))
}

func (r *txRepository) GetAccountByCode(ctx context.Context, code string) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE code=$1`, code))
}

func (r *txRepository) ListAccounts(ctx context.Context) ([]Account, error) {
	return r.queryAccounts(ctx, `SELECT `+accountColumns+` FROM ledger_accounts ORDER BY code`)
}

func (r *txRepository) ListChildAccounts(ctx context.Context, parentID int64) ([]Account, error) {
	return r.queryAccounts(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE parent_id=$1 ORDER BY code`, parentID)
}

func (r *txRepository) ListBankCashAccounts(ctx context.Context) ([]Account, error) {
	return r.queryAccounts(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE is_bank_or_cash ORDER BY code`)
}

func (r *txRepository) InsertAccount(ctx context.Context, acc Account) (Account, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO ledger_accounts (parent_id, code, name, nature, kind, is_system, is_active,
is_bank_or_cash, opening_balance, current_balance, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id`,
		acc.ParentID, acc.Code, acc.Name, acc.Nature, acc.Kind, acc.IsSystem, acc.IsActive, acc.IsBankOrCash,
		shared.Numeric(acc.OpeningBalance, 2), shared.Numeric(acc.CurrentBalance, 2), acc.CreatedAt, acc.UpdatedAt).Scan(&acc.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Account{}, ErrDuplicateCode
		}
		return Account{}, err
	}
	return acc, nil
}

func (r *txRepository) DeleteAccount(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM ledger_accounts WHERE id=$1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrAccountHasPostings
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) CountAccountLines(ctx context.Context, accountID int64) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entry_lines WHERE account_id=$1`, accountID).Scan(&n)
	return n, err
}

func (r *txRepository) AdjustCurrentBalance(ctx context.Context, accountID int64, delta float64) (float64, error) {
	var balance float64
	err := r.tx.QueryRow(ctx, `UPDATE ledger_accounts SET current_balance = current_balance + $2, updated_at = NOW()
WHERE id=$1 RETURNING current_balance`, accountID, shared.Numeric(delta, 2)).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	return balance, err
}

func (r *txRepository) SumPostedLines(ctx context.Context, accountID int64, asOf *time.Time) (float64, float64, error) {
	var debit, credit float64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM journal_entry_lines l JOIN journal_entries e ON e.id = l.entry_id
WHERE l.account_id=$1 AND e.is_posted AND ($2::date IS NULL OR e.entry_date <= $2::date)`, accountID, asOf).Scan(&debit, &credit)
	return debit, credit, err
}

func (r *txRepository) LastEntryNumber(ctx context.Context, monthPrefix string) (string, error) {
	return db.LastNumberForUpdate(ctx, r.tx, "journal_entries", "entry_number", monthPrefix)
}

func (r *txRepository) InsertJournalEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (entry_number, entry_date, reference_type, reference_id, narration,
is_posted, created_by, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		entry.EntryNumber, entry.EntryDate, entry.ReferenceType, entry.ReferenceID, entry.Narration,
		entry.IsPosted, entry.CreatedBy, entry.CreatedAt).Scan(&entry.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return JournalEntry{}, ErrDuplicateNumber
		}
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertJournalLines(ctx context.Context, entryID int64, lines []PostingLine) ([]JournalLine, error) {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		jl := JournalLine{EntryID: entryID, AccountID: line.AccountID, Description: line.Description, Debit: line.Debit, Credit: line.Credit}
		err := r.tx.QueryRow(ctx, `INSERT INTO journal_entry_lines (entry_id, account_id, description, debit, credit)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, entryID, line.AccountID, line.Description,
			shared.Numeric(line.Debit, 2), shared.Numeric(line.Credit, 2)).Scan(&jl.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, jl)
	}
	return out, nil
}

const entryColumns = `id, entry_number, entry_date, reference_type, reference_id, narration, is_posted, created_by, created_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.EntryNumber, &e.EntryDate, &e.ReferenceType, &e.ReferenceID, &e.Narration, &e.IsPosted, &e.CreatedBy, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	return e, nil
}

func (r *txRepository) GetJournalWithLines(ctx context.Context, entryID int64) (JournalEntry, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 FOR UPDATE`, entryID))
	if err != nil {
		return JournalEntry{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id, entry_id, account_id, description, debit, credit
FROM journal_entry_lines WHERE entry_id=$1 ORDER BY id`, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l JournalLine
		if err := rows.Scan(&l.ID, &l.EntryID, &l.AccountID, &l.Description, &l.Debit, &l.Credit); err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, l)
	}
	return entry, rows.Err()
}

func (r *txRepository) ListEntriesByReference(ctx context.Context, refType ReferenceType, refID int64) ([]JournalEntry, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries
WHERE reference_type=$1 AND reference_id=$2 ORDER BY id`, refType, refID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *txRepository) DeleteJournalLines(ctx context.Context, entryID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM journal_entry_lines WHERE entry_id=$1`, entryID)
	return err
}

func (r *txRepository) DeleteJournalEntry(ctx context.Context, entryID int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM journal_entries WHERE id=$1`, entryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJournalNotFound
	}
	return nil
}
