package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/ledger"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Service keeps weighted average costs per product and posts the matching
// inventory, payable and COGS entries.
type Service struct {
	repo   RepositoryPort
	ledger *ledger.Service
	cfg    ServiceConfig
	log    *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, ledgerSvc *ledger.Service, cfg ServiceConfig, logger *slog.Logger) *Service {
	return &Service{repo: repo, ledger: ledgerSvc, cfg: cfg, log: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) logger() *slog.Logger {
	if s.log == nil {
		return slog.Default()
	}
	return s.log
}

// CurrentAverageCost returns the weighted mean cost of the product across all
// its locations.
func (s *Service) CurrentAverageCost(ctx context.Context, productID int64) (float64, error) {
	var avg float64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locs, err := tx.ListLocations(ctx, productID)
		if err != nil {
			return err
		}
		avg = AverageCost(locs)
		return nil
	})
	return avg, err
}

// WeightedAverageAfterReceipt previews the average cost after receiving qty at unitCost.
func (s *Service) WeightedAverageAfterReceipt(ctx context.Context, productID int64, qty, unitCost float64) (float64, error) {
	var avg float64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locs, err := tx.ListLocations(ctx, productID)
		if err != nil {
			return err
		}
		avg = WeightedAverage(locs, qty, unitCost)
		return nil
	})
	return avg, err
}

// ReceivePurchase adds received stock at the given rack, moves every location
// of the product to the new weighted average and posts Inventory Asset against
// Trade Payables for the received value.
func (s *Service) ReceivePurchase(ctx context.Context, actorID int64, input ReceiptInput) (StockLocation, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return StockLocation{}, err
	}
	var received StockLocation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockProduct(ctx, input.ProductID); err != nil {
			return err
		}
		locs, err := tx.ListLocations(ctx, input.ProductID)
		if err != nil {
			return err
		}
		avg := WeightedAverage(locs, input.Quantity, input.UnitCost)
		now := s.now()
		target := -1
		for i, loc := range locs {
			if loc.WarehouseID == input.WarehouseID && loc.RackID == input.RackID {
				target = i
				break
			}
		}
		if target < 0 {
			loc, err := tx.InsertLocation(ctx, StockLocation{
				ProductID:   input.ProductID,
				WarehouseID: input.WarehouseID,
				RackID:      input.RackID,
				Quantity:    input.Quantity,
				AvgCost:     avg,
				UpdatedAt:   now,
			})
			if err != nil {
				return err
			}
			received = loc
		} else {
			loc := locs[target]
			loc.PreviousQuantity = loc.Quantity
			loc.Quantity = shared.Sum(loc.Quantity, input.Quantity)
			locs[target] = loc
		}
		if err := s.revalue(ctx, tx, locs, avg, now); err != nil {
			return err
		}
		if target >= 0 {
			received = locs[target]
			received.AvgCost = avg
			received.UpdatedAt = now
		}

		amount := shared.Monetary(input.Quantity, input.UnitCost)
		if amount <= 0 {
			return nil
		}
		inventory, err := s.ledger.ResolveRole(ctx, tx, ledger.RoleInventory)
		if err != nil {
			return err
		}
		payables, err := s.ledger.ResolveRole(ctx, tx, ledger.RoleTradePayables)
		if err != nil {
			return err
		}
		narration := input.Narration
		if narration == "" {
			narration = fmt.Sprintf("Purchase receipt %d", input.ReferenceID)
		}
		_, err = s.ledger.PostEntryTx(ctx, tx, ledger.PostingInput{
			ReferenceType: ledger.RefPurchaseReceipt,
			ReferenceID:   input.ReferenceID,
			EntryDate:     input.ReceivedAt,
			Narration:     narration,
			CreatedBy:     actorID,
			Lines: []ledger.PostingLine{
				ledger.Increase(inventory, amount, narration),
				ledger.Increase(payables, amount, narration),
			},
		})
		return err
	})
	if err != nil {
		return StockLocation{}, err
	}
	return received, nil
}

// RecordPurchaseCharges posts freight and duties billed for a purchase as
// expenses owed to Trade Payables.
func (s *Service) RecordPurchaseCharges(ctx context.Context, actorID int64, input ChargesInput) (ledger.JournalEntry, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return ledger.JournalEntry{}, err
	}
	freight, duties := shared.Round2(input.Freight), shared.Round2(input.Duties)
	if freight == 0 && duties == 0 {
		return ledger.JournalEntry{}, ErrNothingToCharge
	}
	var entry ledger.JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		narration := input.Narration
		if narration == "" {
			narration = fmt.Sprintf("Purchase charges %d", input.ReferenceID)
		}
		var lines []ledger.PostingLine
		if freight > 0 {
			acc, err := s.ledger.ResolveRole(ctx, tx, ledger.RoleFreight)
			if err != nil {
				return err
			}
			lines = append(lines, ledger.Increase(acc, freight, "Freight"))
		}
		if duties > 0 {
			acc, err := s.ledger.ResolveRole(ctx, tx, ledger.RoleDuties)
			if err != nil {
				return err
			}
			lines = append(lines, ledger.Increase(acc, duties, "Duties"))
		}
		payables, err := s.ledger.ResolveRole(ctx, tx, ledger.RoleTradePayables)
		if err != nil {
			return err
		}
		lines = append(lines, ledger.Increase(payables, shared.Sum(freight, duties), narration))
		entry, err = s.ledger.PostEntryTx(ctx, tx, ledger.PostingInput{
			ReferenceType: ledger.RefPurchaseCharges,
			ReferenceID:   input.ReferenceID,
			EntryDate:     input.Date,
			Narration:     narration,
			CreatedBy:     actorID,
			Lines:         lines,
		})
		return err
	})
	return entry, err
}

// ReversePurchaseReceipt takes returned stock out of the rack it was received
// into at its receipt cost. The remaining stock is revalued so the value
// removed matches the Inventory Asset credit.
func (s *Service) ReversePurchaseReceipt(ctx context.Context, actorID int64, input ReturnInput) error {
	if err := shared.ValidateStruct(input); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockProduct(ctx, input.ProductID); err != nil {
			return err
		}
		locs, err := tx.ListLocations(ctx, input.ProductID)
		if err != nil {
			return err
		}
		target := -1
		for i, loc := range locs {
			if loc.WarehouseID == input.WarehouseID && loc.RackID == input.RackID {
				target = i
				break
			}
		}
		if target < 0 {
			return ErrLocationNotFound
		}
		if shared.Exceeds(input.Quantity, locs[target].Quantity) {
			return fmt.Errorf("%w: %.4f requested, %.4f at rack", ErrInsufficientStock, input.Quantity, locs[target].Quantity)
		}
		qty, value := Totals(locs)
		amount := shared.Monetary(input.Quantity, input.UnitCost)
		remainingQty := shared.Sum(qty, -input.Quantity)
		avg := 0.0
		if remainingQty > 0 {
			avg = shared.RoundCost(shared.Sum(value, -amount) / remainingQty)
			if avg < 0 {
				avg = 0
			}
		}
		now := s.now()
		loc := locs[target]
		loc.PreviousQuantity = loc.Quantity
		loc.Quantity = shared.Sum(loc.Quantity, -input.Quantity)
		if loc.Quantity <= 0 {
			if err := tx.DeleteLocation(ctx, loc.ID); err != nil {
				return err
			}
			locs = append(locs[:target], locs[target+1:]...)
		} else {
			locs[target] = loc
		}
		if err := s.revalue(ctx, tx, locs, avg, now); err != nil {
			return err
		}
		if amount <= 0 {
			return nil
		}
		inventory, err := s.ledger.ResolveRole(ctx, tx, ledger.RoleInventory)
		if err != nil {
			return err
		}
		payables, err := s.ledger.ResolveRole(ctx, tx, ledger.RoleTradePayables)
		if err != nil {
			return err
		}
		narration := fmt.Sprintf("Purchase return %d", input.ReferenceID)
		_, err = s.ledger.PostEntryTx(ctx, tx, ledger.PostingInput{
			ReferenceType: ledger.RefPurchaseReversal,
			ReferenceID:   input.ReferenceID,
			EntryDate:     input.ReturnedAt,
			Narration:     narration,
			CreatedBy:     actorID,
			Lines: []ledger.PostingLine{
				ledger.Decrease(payables, amount, narration),
				ledger.Decrease(inventory, amount, narration),
			},
		})
		return err
	})
}

// DeductOnSale removes the order item's quantity from stock and posts COGS at
// the average cost captured before the deduction. A second call for the same
// item is a no-op.
func (s *Service) DeductOnSale(ctx context.Context, actorID, orderItemID int64) error {
	var (
		item      OrderItem
		shortfall float64
		skipped   bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = tx.GetOrderItemForUpdate(ctx, orderItemID)
		if err != nil {
			return err
		}
		if item.InventoryUpdated {
			skipped = true
			return nil
		}
		if err := tx.LockProduct(ctx, item.ProductID); err != nil {
			return err
		}
		locs, err := tx.ListLocations(ctx, item.ProductID)
		if err != nil {
			return err
		}
		avg := AverageCost(locs)
		plan := planDeduction(locs, item.Quantity)
		if plan.shortfall > 0 && s.cfg.StrictStock {
			return fmt.Errorf("%w: product %d short by %.4f", ErrInsufficientStock, item.ProductID, plan.shortfall)
		}
		shortfall = plan.shortfall
		now := s.now()
		for _, id := range plan.removed {
			if err := tx.DeleteLocation(ctx, id); err != nil {
				return err
			}
		}
		// Untouched locations take the captured average too, so the stock
		// value left behind equals the ledger balance after COGS.
		if err := s.revalue(ctx, tx, plan.kept, avg, now); err != nil {
			return err
		}
		item.CostAtSale = &avg
		item.InventoryUpdated = true
		if err := tx.UpdateOrderItem(ctx, item); err != nil {
			return err
		}
		if avg <= 0 {
			return nil
		}
		cogs, err := s.ledger.ResolveRole(ctx, tx, ledger.RoleCOGS)
		if err != nil {
			return err
		}
		inventory, err := s.ledger.ResolveRole(ctx, tx, ledger.RoleInventory)
		if err != nil {
			return err
		}
		amount := shared.Monetary(item.Quantity, avg)
		narration := fmt.Sprintf("COGS order %d item %d", item.OrderID, item.ID)
		_, err = s.ledger.PostEntryTx(ctx, tx, ledger.PostingInput{
			ReferenceType: ledger.RefOrderFulfillment,
			ReferenceID:   item.ID,
			EntryDate:     now,
			Narration:     narration,
			CreatedBy:     actorID,
			Lines: []ledger.PostingLine{
				ledger.Increase(cogs, amount, narration),
				ledger.Decrease(inventory, amount, narration),
			},
		})
		return err
	})
	if err != nil {
		return err
	}
	if skipped {
		s.logger().Debug("stock already deducted", slog.Int64("order_item_id", orderItemID))
		return nil
	}
	if shortfall > 0 {
		s.logger().Warn("sale exceeded stock on hand",
			slog.Int64("order_item_id", item.ID),
			slog.Int64("product_id", item.ProductID),
			slog.Float64("shortfall", shortfall),
		)
	}
	return nil
}

// RestoreOnCancel returns a deducted order item to stock at its recorded cost
// and reverses the COGS posting. Items not deducted are left alone.
func (s *Service) RestoreOnCancel(ctx context.Context, actorID, orderItemID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetOrderItemForUpdate(ctx, orderItemID)
		if err != nil {
			return err
		}
		if !item.InventoryUpdated {
			return nil
		}
		if err := tx.LockProduct(ctx, item.ProductID); err != nil {
			return err
		}
		locs, err := tx.ListLocations(ctx, item.ProductID)
		if err != nil {
			return err
		}
		cost := 0.0
		if item.CostAtSale != nil {
			cost = *item.CostAtSale
		}
		avg := WeightedAverage(locs, item.Quantity, cost)
		now := s.now()
		if len(locs) == 0 {
			if s.cfg.DefaultWarehouseID == 0 || s.cfg.DefaultRackID == 0 {
				return ErrNoDefaultLocation
			}
			if _, err := tx.InsertLocation(ctx, StockLocation{
				ProductID:   item.ProductID,
				WarehouseID: s.cfg.DefaultWarehouseID,
				RackID:      s.cfg.DefaultRackID,
				Quantity:    item.Quantity,
				AvgCost:     avg,
				UpdatedAt:   now,
			}); err != nil {
				return err
			}
		} else {
			locs[0].PreviousQuantity = locs[0].Quantity
			locs[0].Quantity = shared.Sum(locs[0].Quantity, item.Quantity)
			if err := s.revalue(ctx, tx, locs, avg, now); err != nil {
				return err
			}
		}
		item.InventoryUpdated = false
		if err := tx.UpdateOrderItem(ctx, item); err != nil {
			return err
		}
		if cost <= 0 {
			return nil
		}
		cogs, err := s.ledger.ResolveRole(ctx, tx, ledger.RoleCOGS)
		if err != nil {
			return err
		}
		inventory, err := s.ledger.ResolveRole(ctx, tx, ledger.RoleInventory)
		if err != nil {
			return err
		}
		amount := shared.Monetary(item.Quantity, cost)
		narration := fmt.Sprintf("COGS reversal order %d item %d", item.OrderID, item.ID)
		_, err = s.ledger.PostEntryTx(ctx, tx, ledger.PostingInput{
			ReferenceType: ledger.RefOrderCancellation,
			ReferenceID:   item.ID,
			EntryDate:     now,
			Narration:     narration,
			CreatedBy:     actorID,
			Lines: []ledger.PostingLine{
				ledger.Increase(inventory, amount, narration),
				ledger.Decrease(cogs, amount, narration),
			},
		})
		return err
	})
}

// Reconcile compares the value of all stock with the Inventory Asset balance.
func (s *Service) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	err := s.repo.WithSnapshot(ctx, func(ctx context.Context, tx TxRepository) error {
		inventory, err := s.ledger.ResolveRole(ctx, tx, ledger.RoleInventory)
		if err != nil {
			return err
		}
		physical, err := tx.StockValue(ctx)
		if err != nil {
			return err
		}
		bal, err := s.ledger.BalanceTx(ctx, tx, inventory.ID, nil)
		if err != nil {
			return err
		}
		report = ReconcileReport{
			AccountCode:   inventory.Code,
			PhysicalValue: physical,
			LedgerBalance: bal.Amount,
			Variance:      shared.Sum(physical, -bal.Amount),
		}
		return nil
	})
	if err != nil {
		return ReconcileReport{}, err
	}
	if report.Drift() {
		s.logger().Warn("inventory value drift",
			slog.String("account", report.AccountCode),
			slog.Float64("physical", report.PhysicalValue),
			slog.Float64("ledger", report.LedgerBalance),
			slog.Float64("variance", report.Variance),
		)
	}
	return report, nil
}

// revalue writes every location with the product's new average cost.
func (s *Service) revalue(ctx context.Context, tx TxRepository, locs []StockLocation, avg float64, now time.Time) error {
	for _, loc := range locs {
		loc.AvgCost = avg
		loc.UpdatedAt = now
		if err := tx.UpdateLocation(ctx, loc); err != nil {
			return err
		}
	}
	return nil
}
