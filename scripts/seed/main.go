package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-books/internal/app"
	"github.com/odyssey-erp/odyssey-books/internal/ledger"
	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg)
	ctx := context.Background()

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	fmt.Println("→ Applying migrations...")
	if err := db.Migrate(ctx, pool, logger); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	ledgerService := ledger.NewService(ledger.NewRepository(pool), shared.NewAuditLogger(pool), cfg.AccountCodes(), logger)

	fmt.Println("→ Seeding chart of accounts...")
	if err := seedAccounts(ctx, ledgerService, cfg.AccountCodes()); err != nil {
		log.Fatalf("seed accounts: %v", err)
	}

	fmt.Println("→ Seeding suppliers and products...")
	if err := seedMasterData(ctx, pool, cfg.AccountCodes().TradePayables); err != nil {
		log.Fatalf("seed master data: %v", err)
	}

	fmt.Println("→ Verifying well-known accounts...")
	if err := ledgerService.VerifyWellKnown(ctx); err != nil {
		log.Fatalf("verify accounts: %v", err)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

type accountSeed struct {
	code       string
	name       string
	parent     string
	nature     ledger.Nature
	kind       ledger.Kind
	system     bool
	bankOrCash bool
}

func chartOfAccounts(codes ledger.WellKnownCodes) []accountSeed {
	return []accountSeed{
		{code: "1000", name: "Assets", nature: ledger.NatureAsset, kind: ledger.KindGroup, system: true},
		{code: "1100", name: "Current Assets", parent: "1000", nature: ledger.NatureAsset, kind: ledger.KindGroup},
		{code: "1110", name: "Cash on Hand", parent: "1100", nature: ledger.NatureAsset, kind: ledger.KindAccount, bankOrCash: true},
		{code: "1120", name: "Bank Account", parent: "1100", nature: ledger.NatureAsset, kind: ledger.KindAccount, bankOrCash: true},
		{code: codes.Inventory, name: "Inventory Asset", parent: "1100", nature: ledger.NatureAsset, kind: ledger.KindAccount, system: true},
		{code: "2000", name: "Liabilities", nature: ledger.NatureLiability, kind: ledger.KindGroup, system: true},
		{code: "2100", name: "Current Liabilities", parent: "2000", nature: ledger.NatureLiability, kind: ledger.KindGroup},
		{code: codes.TradePayables, name: "Trade Payables", parent: "2100", nature: ledger.NatureLiability, kind: ledger.KindAccount, system: true},
		{code: "3000", name: "Equity", nature: ledger.NatureEquity, kind: ledger.KindGroup, system: true},
		{code: "3100", name: "Owner Capital", parent: "3000", nature: ledger.NatureEquity, kind: ledger.KindAccount},
		{code: "4000", name: "Revenue", nature: ledger.NatureRevenue, kind: ledger.KindGroup, system: true},
		{code: codes.ProductSales, name: "Product Sales", parent: "4000", nature: ledger.NatureRevenue, kind: ledger.KindAccount, system: true},
		{code: "5000", name: "Expenses", nature: ledger.NatureExpense, kind: ledger.KindGroup, system: true},
		{code: codes.COGS, name: "Cost of Goods Sold", parent: "5000", nature: ledger.NatureExpense, kind: ledger.KindAccount, system: true},
		{code: "5200", name: "Purchasing Costs", parent: "5000", nature: ledger.NatureExpense, kind: ledger.KindGroup},
		{code: codes.Freight, name: "Freight In", parent: "5200", nature: ledger.NatureExpense, kind: ledger.KindAccount, system: true},
		{code: codes.Duties, name: "Import Duties", parent: "5200", nature: ledger.NatureExpense, kind: ledger.KindAccount, system: true},
		{code: "5300", name: "Operating Expenses", parent: "5000", nature: ledger.NatureExpense, kind: ledger.KindGroup},
		{code: "5310", name: "Office Supplies", parent: "5300", nature: ledger.NatureExpense, kind: ledger.KindAccount},
		{code: "5320", name: "Utilities", parent: "5300", nature: ledger.NatureExpense, kind: ledger.KindAccount},
		{code: "5330", name: "Rent", parent: "5300", nature: ledger.NatureExpense, kind: ledger.KindAccount},
	}
}

func seedAccounts(ctx context.Context, svc *ledger.Service, codes ledger.WellKnownCodes) error {
	existing, err := svc.ListAccounts(ctx)
	if err != nil {
		return err
	}
	ids := make(map[string]int64, len(existing))
	for _, acc := range existing {
		ids[acc.Code] = acc.ID
	}

	for _, seed := range chartOfAccounts(codes) {
		if _, ok := ids[seed.code]; ok {
			continue
		}
		input := ledger.CreateAccountInput{
			Code:         seed.code,
			Name:         seed.name,
			Nature:       seed.nature,
			Kind:         seed.kind,
			IsSystem:     seed.system,
			IsBankOrCash: seed.bankOrCash,
		}
		if seed.parent != "" {
			parentID, ok := ids[seed.parent]
			if !ok {
				return fmt.Errorf("account %s: parent %s not seeded", seed.code, seed.parent)
			}
			input.ParentID = &parentID
		}
		acc, err := svc.CreateAccount(ctx, input)
		if errors.Is(err, ledger.ErrDuplicateCode) {
			continue
		}
		if err != nil {
			return fmt.Errorf("account %s: %w", seed.code, err)
		}
		ids[acc.Code] = acc.ID
	}
	return nil
}

func seedMasterData(ctx context.Context, pool *pgxpool.Pool, payablesCode string) error {
	return db.WithWriteTx(ctx, pool, func(tx pgx.Tx) error {
		suppliers := []string{"PT Elektronik Jaya", "CV Kertas Makmur", "PT Baja Sentosa"}
		for _, name := range suppliers {
			_, err := tx.Exec(ctx, `
			INSERT INTO suppliers (name, payable_account_id)
			SELECT $1, a.id FROM ledger_accounts a
			WHERE a.code = $2 AND NOT EXISTS (SELECT 1 FROM suppliers WHERE name = $1)`, name, payablesCode)
			if err != nil {
				return err
			}
		}

		products := []struct {
			sku  string
			name string
		}{
			{"PRD-001", "Laptop ASUS VivoBook 14"},
			{"PRD-002", "Monitor LG 24 inch"},
			{"PRD-003", "Kertas HVS A4 70gr"},
			{"PRD-004", "Keyboard Logitech K120"},
		}
		for _, p := range products {
			_, err := tx.Exec(ctx, `
			INSERT INTO products (sku, name) VALUES ($1, $2)
			ON CONFLICT (sku) DO NOTHING`, p.sku, p.name)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
