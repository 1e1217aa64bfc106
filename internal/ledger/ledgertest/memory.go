// Package ledgertest provides an in-memory ledger repository for tests.
package ledgertest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/ledger"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Store is an in-memory ledger.TxRepository. WithTx snapshots the state and
// restores it when fn fails, mirroring a rolled back transaction.
type Store struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]ledger.Account
	entries  map[int64]ledger.JournalEntry
	fail     map[string]error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[int64]ledger.Account),
		entries:  make(map[int64]ledger.JournalEntry),
		fail:     make(map[string]error),
	}
}

// WithTx runs fn against the store and rolls back on error.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, ledger.TxRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	restore := s.Snapshot()
	if err := fn(ctx, s); err != nil {
		restore()
		return err
	}
	return nil
}

// WithSnapshot behaves like WithTx; the store is already serialised.
func (s *Store) WithSnapshot(ctx context.Context, fn func(context.Context, ledger.TxRepository) error) error {
	return s.WithTx(ctx, fn)
}

// Snapshot captures the state and returns a function restoring it. Dependant
// test repositories call it when they drive the store inside their own WithTx.
func (s *Store) Snapshot() func() {
	nextID := s.nextID
	accounts := make(map[int64]ledger.Account, len(s.accounts))
	for k, v := range s.accounts {
		accounts[k] = v
	}
	entries := make(map[int64]ledger.JournalEntry, len(s.entries))
	for k, v := range s.entries {
		v.Lines = append([]ledger.JournalLine(nil), v.Lines...)
		entries[k] = v
	}
	return func() {
		s.nextID = nextID
		s.accounts = accounts
		s.entries = entries
	}
}

// FailOn makes the next call of op return err.
func (s *Store) FailOn(op string, err error) {
	s.fail[op] = err
}

func (s *Store) failed(op string) error {
	if err, ok := s.fail[op]; ok {
		delete(s.fail, op)
		return err
	}
	return nil
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// AddAccount seeds an account and returns it with its id.
func (s *Store) AddAccount(acc ledger.Account) ledger.Account {
	acc.ID = s.id()
	if acc.Kind == "" {
		acc.Kind = ledger.KindAccount
	}
	acc.IsActive = true
	acc.CurrentBalance = acc.OpeningBalance
	s.accounts[acc.ID] = acc
	return acc
}

// Account returns the stored account.
func (s *Store) Account(id int64) ledger.Account {
	return s.accounts[id]
}

// SetCurrentBalance overwrites a cached balance to simulate drift.
func (s *Store) SetCurrentBalance(id int64, balance float64) {
	acc := s.accounts[id]
	acc.CurrentBalance = balance
	s.accounts[id] = acc
}

// Entries returns all journal entries ordered by id.
func (s *Store) Entries() []ledger.JournalEntry {
	out := make([]ledger.JournalEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) GetAccount(_ context.Context, id int64) (ledger.Account, error) {
	acc, ok := s.accounts[id]
	if !ok {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	return acc, nil
}

func (s *Store) GetAccountByCode(_ context.Context, code string) (ledger.Account, error) {
	for _, acc := range s.accounts {
		if acc.Code == code {
			return acc, nil
		}
	}
	return ledger.Account{}, ledger.ErrAccountNotFound
}

func (s *Store) sortedAccounts(keep func(ledger.Account) bool) []ledger.Account {
	var out []ledger.Account
	for _, acc := range s.accounts {
		if keep(acc) {
			out = append(out, acc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (s *Store) ListAccounts(context.Context) ([]ledger.Account, error) {
	return s.sortedAccounts(func(ledger.Account) bool { return true }), nil
}

func (s *Store) ListChildAccounts(_ context.Context, parentID int64) ([]ledger.Account, error) {
	return s.sortedAccounts(func(a ledger.Account) bool { return a.ParentID != nil && *a.ParentID == parentID }), nil
}

func (s *Store) ListBankCashAccounts(context.Context) ([]ledger.Account, error) {
	return s.sortedAccounts(func(a ledger.Account) bool { return a.IsBankOrCash }), nil
}

func (s *Store) InsertAccount(_ context.Context, acc ledger.Account) (ledger.Account, error) {
	for _, existing := range s.accounts {
		if existing.Code == acc.Code {
			return ledger.Account{}, ledger.ErrDuplicateCode
		}
	}
	acc.ID = s.id()
	s.accounts[acc.ID] = acc
	return acc, nil
}

func (s *Store) DeleteAccount(_ context.Context, id int64) error {
	if _, ok := s.accounts[id]; !ok {
		return ledger.ErrAccountNotFound
	}
	delete(s.accounts, id)
	return nil
}

func (s *Store) CountAccountLines(_ context.Context, accountID int64) (int, error) {
	n := 0
	for _, e := range s.entries {
		for _, l := range e.Lines {
			if l.AccountID == accountID {
				n++
			}
		}
	}
	return n, nil
}

func (s *Store) AdjustCurrentBalance(_ context.Context, accountID int64, delta float64) (float64, error) {
	if err := s.failed("AdjustCurrentBalance"); err != nil {
		return 0, err
	}
	acc, ok := s.accounts[accountID]
	if !ok {
		return 0, ledger.ErrAccountNotFound
	}
	acc.CurrentBalance = shared.Sum(acc.CurrentBalance, delta)
	s.accounts[accountID] = acc
	return acc.CurrentBalance, nil
}

func (s *Store) SumPostedLines(_ context.Context, accountID int64, asOf *time.Time) (float64, float64, error) {
	var debits, credits []float64
	for _, e := range s.entries {
		if !e.IsPosted || (asOf != nil && e.EntryDate.After(*asOf)) {
			continue
		}
		for _, l := range e.Lines {
			if l.AccountID == accountID {
				debits = append(debits, l.Debit)
				credits = append(credits, l.Credit)
			}
		}
	}
	return shared.Sum(debits...), shared.Sum(credits...), nil
}

func (s *Store) LastEntryNumber(_ context.Context, monthPrefix string) (string, error) {
	last := ""
	for _, e := range s.entries {
		n := e.EntryNumber
		if !strings.HasPrefix(n, monthPrefix) {
			continue
		}
		if len(n) > len(last) || (len(n) == len(last) && n > last) {
			last = n
		}
	}
	return last, nil
}

func (s *Store) InsertJournalEntry(_ context.Context, entry ledger.JournalEntry) (ledger.JournalEntry, error) {
	if err := s.failed("InsertJournalEntry"); err != nil {
		return ledger.JournalEntry{}, err
	}
	for _, e := range s.entries {
		if e.EntryNumber == entry.EntryNumber {
			return ledger.JournalEntry{}, ledger.ErrDuplicateNumber
		}
	}
	entry.ID = s.id()
	s.entries[entry.ID] = entry
	return entry, nil
}

func (s *Store) InsertJournalLines(_ context.Context, entryID int64, lines []ledger.PostingLine) ([]ledger.JournalLine, error) {
	if err := s.failed("InsertJournalLines"); err != nil {
		return nil, err
	}
	entry, ok := s.entries[entryID]
	if !ok {
		return nil, ledger.ErrJournalNotFound
	}
	out := make([]ledger.JournalLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, ledger.JournalLine{
			ID:          s.id(),
			EntryID:     entryID,
			AccountID:   l.AccountID,
			Description: l.Description,
			Debit:       l.Debit,
			Credit:      l.Credit,
		})
	}
	entry.Lines = append(entry.Lines, out...)
	s.entries[entryID] = entry
	return out, nil
}

func (s *Store) GetJournalWithLines(_ context.Context, entryID int64) (ledger.JournalEntry, error) {
	entry, ok := s.entries[entryID]
	if !ok {
		return ledger.JournalEntry{}, ledger.ErrJournalNotFound
	}
	entry.Lines = append([]ledger.JournalLine(nil), entry.Lines...)
	return entry, nil
}

func (s *Store) ListEntriesByReference(_ context.Context, refType ledger.ReferenceType, refID int64) ([]ledger.JournalEntry, error) {
	var out []ledger.JournalEntry
	for _, e := range s.Entries() {
		if e.ReferenceType == refType && e.ReferenceID == refID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) DeleteJournalLines(_ context.Context, entryID int64) error {
	entry, ok := s.entries[entryID]
	if !ok {
		return ledger.ErrJournalNotFound
	}
	entry.Lines = nil
	s.entries[entryID] = entry
	return nil
}

func (s *Store) DeleteJournalEntry(_ context.Context, entryID int64) error {
	if _, ok := s.entries[entryID]; !ok {
		return ledger.ErrJournalNotFound
	}
	delete(s.entries, entryID)
	return nil
}

// AuditRecorder collects audit records in memory.
type AuditRecorder struct {
	mu   sync.Mutex
	Logs []shared.AuditLog
}

// Record implements shared.AuditPort.
func (a *AuditRecorder) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Logs = append(a.Logs, log)
	return nil
}
