package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// AccountRole names an account the core resolves through configuration.
type AccountRole string

const (
	RoleInventory     AccountRole = "Inventory Asset"
	RoleCOGS          AccountRole = "COGS"
	RoleTradePayables AccountRole = "Trade Payables"
	RoleProductSales  AccountRole = "Product Sales"
	RoleFreight       AccountRole = "Freight"
	RoleDuties        AccountRole = "Duties"
)

// WellKnownCodes maps account roles to chart of accounts codes.
type WellKnownCodes struct {
	Inventory     string
	COGS          string
	TradePayables string
	ProductSales  string
	Freight       string
	Duties        string
}

// Code returns the configured code for role.
func (c WellKnownCodes) Code(role AccountRole) string {
	switch role {
	case RoleInventory:
		return c.Inventory
	case RoleCOGS:
		return c.COGS
	case RoleTradePayables:
		return c.TradePayables
	case RoleProductSales:
		return c.ProductSales
	case RoleFreight:
		return c.Freight
	case RoleDuties:
		return c.Duties
	}
	return ""
}

// Roles lists every well-known role.
func Roles() []AccountRole {
	return []AccountRole{RoleInventory, RoleCOGS, RoleTradePayables, RoleProductSales, RoleFreight, RoleDuties}
}

// Service owns the chart of accounts and the journal.
type Service struct {
	repo  RepositoryPort
	audit shared.AuditPort
	codes WellKnownCodes
	log   *slog.Logger
	now   func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, audit shared.AuditPort, codes WellKnownCodes, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, codes: codes, log: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Codes exposes the configured well-known account codes.
func (s *Service) Codes() WellKnownCodes {
	return s.codes
}

func (s *Service) logger() *slog.Logger {
	if s.log == nil {
		return slog.Default()
	}
	return s.log
}

// CreateAccount adds a group or postable account to the chart.
func (s *Service) CreateAccount(ctx context.Context, input CreateAccountInput) (Account, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Account{}, err
	}
	if input.IsBankOrCash && (input.Kind != KindAccount || input.Nature != NatureAsset) {
		return Account{}, shared.Validationf("bank or cash accounts must be asset accounts")
	}
	var created Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetAccountByCode(ctx, input.Code); err == nil {
			return ErrDuplicateCode
		} else if !errors.Is(err, ErrAccountNotFound) {
			return err
		}
		if input.ParentID != nil {
			parent, err := tx.GetAccount(ctx, *input.ParentID)
			if err != nil {
				return err
			}
			if parent.Kind != KindGroup {
				return shared.Validationf("parent %s is not a group", parent.Code)
			}
			if parent.Nature != input.Nature {
				return shared.Validationf("nature %s does not match parent nature %s", input.Nature, parent.Nature)
			}
		}
		now := s.now()
		acc, err := tx.InsertAccount(ctx, Account{
			ParentID:       input.ParentID,
			Code:           input.Code,
			Name:           input.Name,
			Nature:         input.Nature,
			Kind:           input.Kind,
			IsSystem:       input.IsSystem,
			IsActive:       true,
			IsBankOrCash:   input.IsBankOrCash,
			OpeningBalance: shared.Round2(input.OpeningBalance),
			CurrentBalance: shared.Round2(input.OpeningBalance),
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			return err
		}
		created = acc
		return nil
	})
	return created, err
}

// DeleteAccount removes an account unless it is a system account, has postings
// or is a group with children.
func (s *Service) DeleteAccount(ctx context.Context, actorID, id int64) error {
	var removed Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		acc, err := tx.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if acc.IsSystem {
			return ErrSystemAccount
		}
		lines, err := tx.CountAccountLines(ctx, id)
		if err != nil {
			return err
		}
		if lines > 0 {
			return ErrAccountHasPostings
		}
		children, err := tx.ListChildAccounts(ctx, id)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return ErrGroupHasChildren
		}
		removed = acc
		return tx.DeleteAccount(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "account.delete",
		Entity:   "ledger_account",
		EntityID: removed.Code,
		Meta:     map[string]any{"id": removed.ID, "name": removed.Name},
		At:       s.now(),
	})
	return nil
}

// GetAccount loads one account.
func (s *Service) GetAccount(ctx context.Context, id int64) (Account, error) {
	var acc Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		acc, err = tx.GetAccount(ctx, id)
		return err
	})
	return acc, err
}

// ListAccounts retrieves all chart of accounts entries.
func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		accounts, err = tx.ListAccounts(ctx)
		return err
	})
	return accounts, err
}

// ComputeBalance derives the balance of an account from posted journal lines.
// Groups return the roll-up of their descendants.
func (s *Service) ComputeBalance(ctx context.Context, accountID int64, asOf *time.Time) (float64, error) {
	var bal Balance
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		bal, err = s.BalanceTx(ctx, tx, accountID, asOf)
		return err
	})
	return bal.Amount, err
}

// BalanceTx computes a balance inside an existing transaction.
func (s *Service) BalanceTx(ctx context.Context, tx TxRepository, accountID int64, asOf *time.Time) (Balance, error) {
	acc, err := tx.GetAccount(ctx, accountID)
	if err != nil {
		return Balance{}, err
	}
	return s.balanceOf(ctx, tx, acc, asOf, 0)
}

const maxGroupDepth = 32

func (s *Service) balanceOf(ctx context.Context, tx TxRepository, acc Account, asOf *time.Time, depth int) (Balance, error) {
	bal := Balance{AccountID: acc.ID, Code: acc.Code, Nature: acc.Nature}
	if acc.Kind == KindGroup {
		if depth > maxGroupDepth {
			return Balance{}, fmt.Errorf("ledger: account hierarchy below %s is too deep", acc.Code)
		}
		children, err := tx.ListChildAccounts(ctx, acc.ID)
		if err != nil {
			return Balance{}, err
		}
		for _, child := range children {
			cb, err := s.balanceOf(ctx, tx, child, asOf, depth+1)
			if err != nil {
				return Balance{}, err
			}
			bal.Debit = shared.Sum(bal.Debit, cb.Debit)
			bal.Credit = shared.Sum(bal.Credit, cb.Credit)
			if child.Nature == acc.Nature {
				bal.Amount = shared.Sum(bal.Amount, cb.Amount)
			} else {
				bal.Amount = shared.Sum(bal.Amount, -cb.Amount)
			}
		}
		return bal, nil
	}
	debit, credit, err := tx.SumPostedLines(ctx, acc.ID, asOf)
	if err != nil {
		return Balance{}, err
	}
	bal.Debit = debit
	bal.Credit = credit
	bal.Amount = shared.Round2(signedBalance(acc.Nature, acc.OpeningBalance, debit, credit))
	return bal, nil
}

// UpdateCashBalance moves the cached balance of a bank/cash account: debits add,
// credits subtract. It must run in the transaction that writes the matching lines.
func UpdateCashBalance(ctx context.Context, tx TxRepository, accountID int64, amount float64, entryType EntryType) error {
	acc, err := tx.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !acc.IsBankOrCash {
		return ErrNotCashAccount
	}
	delta := shared.Round2(amount)
	if entryType == EntryTypeCredit {
		delta = -delta
	}
	_, err = tx.AdjustCurrentBalance(ctx, accountID, delta)
	return err
}

// ResolveRole finds the postable account configured for role.
func (s *Service) ResolveRole(ctx context.Context, tx TxRepository, role AccountRole) (Account, error) {
	code := s.codes.Code(role)
	if code == "" {
		return Account{}, shared.MissingAccount(string(role), code)
	}
	acc, err := tx.GetAccountByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, shared.MissingAccount(string(role), code)
		}
		return Account{}, err
	}
	if !acc.Postable() {
		return Account{}, fmt.Errorf("%w: %s account %s is not an active postable account", shared.ErrConfigurationMissing, role, code)
	}
	return acc, nil
}

// VerifyWellKnown checks that every configured role resolves. Processes call it
// on start so a missing account fails fast instead of at the first posting.
func (s *Service) VerifyWellKnown(ctx context.Context) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var errs []error
		for _, role := range Roles() {
			if _, err := s.ResolveRole(ctx, tx, role); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// ReconcileCashAccounts compares cached bank/cash balances with the ledger.
func (s *Service) ReconcileCashAccounts(ctx context.Context) ([]CashVariance, error) {
	var out []CashVariance
	err := s.repo.WithSnapshot(ctx, func(ctx context.Context, tx TxRepository) error {
		accounts, err := tx.ListBankCashAccounts(ctx)
		if err != nil {
			return err
		}
		for _, acc := range accounts {
			bal, err := s.balanceOf(ctx, tx, acc, nil, 0)
			if err != nil {
				return err
			}
			if shared.WithinTolerance(acc.CurrentBalance, bal.Amount) {
				continue
			}
			out = append(out, CashVariance{
				AccountID:     acc.ID,
				Code:          acc.Code,
				CachedBalance: acc.CurrentBalance,
				LedgerBalance: bal.Amount,
				Variance:      shared.Sum(acc.CurrentBalance, -bal.Amount),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, v := range out {
		s.logger().Warn("cash balance drift",
			slog.String("account", v.Code),
			slog.Float64("cached", v.CachedBalance),
			slog.Float64("ledger", v.LedgerBalance),
			slog.Float64("variance", v.Variance),
		)
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, log shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger().Warn("audit record failed", slog.String("action", log.Action), slog.Any("error", err))
	}
}
