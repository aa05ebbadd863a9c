package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/repository"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/actor"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/errors"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/messaging"
)

// Allocate satisfies a requested quantity from the product's eligible
// batches, soonest expiry first. The plan is computed read-only; if the
// eligible batches cannot cover the full request nothing is written. The
// commit decrements each planned batch, moves the product aggregate and
// appends one sale movement per batch touched, all in one transaction.
func (s *StockService) Allocate(ctx context.Context, productID string, quantity int, referenceID string) (*AllocationResult, error) {
	if quantity <= 0 {
		return nil, errors.InvalidQuantity("allocation quantity must be positive")
	}

	release, err := s.locks.Acquire(ctx, productID, s.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	act := actor.FromContext(ctx)

	var result *AllocationResult
	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		product, err := s.productRepo.GetByIDTx(ctx, tx, productID)
		if err != nil {
			return err
		}
		if !product.IsActive {
			return errors.NotFound("product")
		}

		candidates, err := s.batchRepo.ListEligibleTx(ctx, tx, productID)
		if err != nil {
			return err
		}

		lines, available := planAllocation(candidates, quantity)
		if lines == nil {
			return errors.InsufficientStock(productID, quantity, available)
		}

		onHand := make(map[string]int, len(candidates))
		for _, b := range candidates {
			onHand[b.ID] = b.QuantityOnHand
		}

		var ref *string
		if referenceID != "" {
			ref = &referenceID
		}

		for _, line := range lines {
			if err := s.batchRepo.ConsumeTx(ctx, tx, line.BatchID, line.QuantityTaken); err != nil {
				return err
			}

			prev := onHand[line.BatchID]
			movement := &repository.Movement{
				ProductID:     productID,
				BatchID:       line.BatchID,
				MovementType:  repository.MovementSale,
				QuantityDelta: -line.QuantityTaken,
				PreviousStock: prev,
				NewStock:      prev - line.QuantityTaken,
				ReferenceID:   ref,
				ActorID:       act.ID,
				ActorName:     act.Name,
			}
			if err := s.movementRepo.AppendTx(ctx, tx, movement); err != nil {
				return err
			}
		}

		if err := s.productRepo.ApplyStockDeltaTx(ctx, tx, productID, -quantity, product.Version); err != nil {
			return err
		}

		result = &AllocationResult{
			ProductID: productID,
			Quantity:  quantity,
			TotalCost: planTotalCost(lines),
			Lines:     lines,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("product_id", productID).
		Int("quantity", quantity).
		Str("reference_id", referenceID).
		Int("batches", len(result.Lines)).
		Msg("stock allocated")

	eventLines := make([]messaging.AllocationLine, len(result.Lines))
	for i, l := range result.Lines {
		eventLines[i] = messaging.AllocationLine{BatchID: l.BatchID, QuantityTaken: l.QuantityTaken}
	}
	s.publisher.PublishAllocated(ctx, messaging.StockAllocatedEvent{
		ProductID:   productID,
		Quantity:    quantity,
		TotalCost:   result.TotalCost.String(),
		ReferenceID: referenceID,
		Lines:       eventLines,
		ActorID:     act.ID,
	})

	return result, nil
}
