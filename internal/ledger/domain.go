package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Nature determines on which side an increase is recorded.
type Nature string

const (
	NatureAsset     Nature = "asset"
	NatureLiability Nature = "liability"
	NatureEquity    Nature = "equity"
	NatureRevenue   Nature = "revenue"
	NatureExpense   Nature = "expense"
)

// Valid reports whether n is a known nature.
func (n Nature) Valid() bool {
	switch n {
	case NatureAsset, NatureLiability, NatureEquity, NatureRevenue, NatureExpense:
		return true
	}
	return false
}

// DebitNormal reports whether the nature grows on the debit side.
func (n Nature) DebitNormal() bool {
	return ResolveEntryType(n, true) == EntryTypeDebit
}

// Kind separates aggregating groups from postable accounts.
type Kind string

const (
	KindGroup   Kind = "group"
	KindAccount Kind = "account"
)

// EntryType is the side of a journal line.
type EntryType string

const (
	EntryTypeDebit  EntryType = "debit"
	EntryTypeCredit EntryType = "credit"
)

// ReferenceType names the business event behind a journal entry.
type ReferenceType string

const (
	RefBill              ReferenceType = "bill"
	RefPayment           ReferenceType = "payment"
	RefOrderFulfillment  ReferenceType = "order_fulfillment"
	RefOrderCancellation ReferenceType = "order_cancellation"
	RefPurchaseReceipt   ReferenceType = "purchase_receipt"
	RefPurchaseCharges   ReferenceType = "purchase_charges"
	RefPurchaseReversal  ReferenceType = "purchase_reversal"
)

// Account models a chart of accounts node.
type Account struct {
	ID             int64
	ParentID       *int64
	Code           string
	Name           string
	Nature         Nature
	Kind           Kind
	IsSystem       bool
	IsActive       bool
	IsBankOrCash   bool
	OpeningBalance float64
	// CurrentBalance is a cache of the ledger balance kept for bank/cash accounts only.
	CurrentBalance float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Postable reports whether journal lines may reference the account.
func (a Account) Postable() bool {
	return a.Kind == KindAccount && a.IsActive
}

// JournalEntry captures posting metadata.
type JournalEntry struct {
	ID            int64
	EntryNumber   string
	EntryDate     time.Time
	ReferenceType ReferenceType
	ReferenceID   int64
	Narration     string
	IsPosted      bool
	CreatedBy     int64
	CreatedAt     time.Time
	Lines         []JournalLine
}

// Totals returns the debit and credit sums of the entry lines.
func (e JournalEntry) Totals() (debit, credit float64) {
	debits := make([]float64, 0, len(e.Lines))
	credits := make([]float64, 0, len(e.Lines))
	for _, line := range e.Lines {
		debits = append(debits, line.Debit)
		credits = append(credits, line.Credit)
	}
	return shared.Sum(debits...), shared.Sum(credits...)
}

// JournalLine stores debit or credit amount for an account.
type JournalLine struct {
	ID          int64
	EntryID     int64
	AccountID   int64
	Description string
	Debit       float64
	Credit      float64
}

// PostingLine describes a journal line in a posting request.
type PostingLine struct {
	AccountID   int64
	Description string
	Debit       float64
	Credit      float64
}

// PostingInput groups fields required to create a journal entry.
type PostingInput struct {
	ReferenceType ReferenceType
	ReferenceID   int64
	EntryDate     time.Time
	Narration     string
	CreatedBy     int64
	Lines         []PostingLine
}

// CreateAccountInput describes a chart of accounts node to add.
type CreateAccountInput struct {
	ParentID       *int64
	Code           string  `validate:"required,max=32"`
	Name           string  `validate:"required,max=160"`
	Nature         Nature  `validate:"required,oneof=asset liability equity revenue expense"`
	Kind           Kind    `validate:"required,oneof=group account"`
	IsSystem       bool
	IsBankOrCash   bool
	OpeningBalance float64 `validate:"gte=0"`
}

// Balance is a computed account balance.
type Balance struct {
	AccountID int64
	Code      string
	Nature    Nature
	Debit     float64
	Credit    float64
	Amount    float64
}

// CashVariance reports a bank/cash account whose cached balance drifted from the ledger.
type CashVariance struct {
	AccountID     int64   `json:"account_id"`
	Code          string  `json:"code"`
	CachedBalance float64 `json:"cached_balance"`
	LedgerBalance float64 `json:"ledger_balance"`
	Variance      float64 `json:"variance"`
}

var (
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = fmt.Errorf("%w: ledger account", shared.ErrNotFound)
	// ErrJournalNotFound indicates a missing entry.
	ErrJournalNotFound = fmt.Errorf("%w: journal entry", shared.ErrNotFound)
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = shared.Validationf("journal requires at least two lines")
	// ErrSystemAccount blocks deletion of seeded accounts.
	ErrSystemAccount = shared.Conflictf("system accounts cannot be deleted")
	// ErrAccountHasPostings blocks deletion of accounts referenced by journal lines.
	ErrAccountHasPostings = shared.Conflictf("account has journal postings")
	// ErrGroupHasChildren blocks deletion of non-empty groups.
	ErrGroupHasChildren = shared.Conflictf("account group has children")
	// ErrNotCashAccount indicates a cash balance update on a non bank/cash account.
	ErrNotCashAccount = shared.Validationf("account is not a bank or cash account")
	// ErrDuplicateCode indicates the account code is taken.
	ErrDuplicateCode = shared.Conflictf("account code already exists")
	// ErrDuplicateNumber indicates a document number collision.
	ErrDuplicateNumber = errors.New("ledger: document number already used")
)

// Validate ensures posting input meets minimum criteria.
func (in PostingInput) Validate() error {
	if in.ReferenceType == "" {
		return shared.Validationf("reference type required")
	}
	if in.EntryDate.IsZero() {
		return shared.Validationf("entry date required")
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	debits := make([]float64, 0, len(in.Lines))
	credits := make([]float64, 0, len(in.Lines))
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return shared.Validationf("line %d missing account", idx)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return shared.Validationf("line %d negative amount", idx)
		}
		if line.Debit > 0 && line.Credit > 0 {
			return shared.Validationf("line %d cannot be both debit and credit", idx)
		}
		if line.Debit == 0 && line.Credit == 0 {
			return shared.Validationf("line %d has no amount", idx)
		}
		debits = append(debits, line.Debit)
		credits = append(credits, line.Credit)
	}
	debit, credit := shared.Sum(debits...), shared.Sum(credits...)
	if !shared.WithinTolerance(debit, credit) {
		return fmt.Errorf("%w: debit %.2f != credit %.2f", shared.ErrImbalancedEntry, debit, credit)
	}
	return nil
}
