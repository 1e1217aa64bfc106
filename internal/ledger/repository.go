package ledger

import (
	"context"
	"time"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	// WithSnapshot runs read-only fn against one consistent snapshot.
	WithSnapshot(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the ledger tables inside one transaction. Workflow
// repositories embed it so bill, payment and stock changes commit together with
// their postings.
type TxRepository interface {
	GetAccount(ctx context.Context, id int64) (Account, error)
	GetAccountByCode(ctx context.Context, code string) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	ListChildAccounts(ctx context.Context, parentID int64) ([]Account, error)
	ListBankCashAccounts(ctx context.Context) ([]Account, error)
	InsertAccount(ctx context.Context, acc Account) (Account, error)
	DeleteAccount(ctx context.Context, id int64) error
	CountAccountLines(ctx context.Context, accountID int64) (int, error)
	// AdjustCurrentBalance applies delta atomically and returns the new cached balance.
	AdjustCurrentBalance(ctx context.Context, accountID int64, delta float64) (float64, error)
	// SumPostedLines totals debit and credit of posted lines, optionally up to asOf inclusive.
	SumPostedLines(ctx context.Context, accountID int64, asOf *time.Time) (debit, credit float64, err error)

	// LastEntryNumber returns the highest entry number starting with monthPrefix
	// while holding a lock that serialises concurrent numbering.
	LastEntryNumber(ctx context.Context, monthPrefix string) (string, error)
	InsertJournalEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	InsertJournalLines(ctx context.Context, entryID int64, lines []PostingLine) ([]JournalLine, error)
	GetJournalWithLines(ctx context.Context, entryID int64) (JournalEntry, error)
	ListEntriesByReference(ctx context.Context, refType ReferenceType, refID int64) ([]JournalEntry, error)
	DeleteJournalLines(ctx context.Context, entryID int64) error
	DeleteJournalEntry(ctx context.Context, entryID int64) error
}
