package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/repository"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/actor"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/errors"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/messaging"
)

// ReceiveInput describes a new batch arriving into stock
type ReceiveInput struct {
	ProductID    string
	LotNumber    string
	ExpiryDate   time.Time
	ReceivedDate time.Time
	Quantity     int
	UnitCost     decimal.Decimal
	ReferenceID  string
}

// AdjustInput describes a manual correction against one batch
type AdjustInput struct {
	BatchID       string
	MovementType  repository.MovementType
	QuantityDelta int
	Reason        string
	ReferenceID   string
}

// ReconcileResult reports a reconciliation run for one product
type ReconcileResult struct {
	ProductID       string `json:"product_id"`
	PreviousTotal   int    `json:"previous_total"`
	RecomputedTotal int    `json:"recomputed_total"`
	Drift           int    `json:"drift"`
}

// Receive records a new batch and rolls its quantity into the product
// aggregate. The batch starts active even when the expiry date is already in
// the past; flagging it is the expiry scanner's job.
func (s *StockService) Receive(ctx context.Context, in ReceiveInput) (*repository.Batch, error) {
	if in.Quantity <= 0 {
		return nil, errors.InvalidQuantity("received quantity must be positive")
	}
	if in.ReceivedDate.IsZero() {
		in.ReceivedDate = time.Now().UTC()
	}
	if in.ExpiryDate.Before(in.ReceivedDate.Truncate(24 * time.Hour)) {
		return nil, errors.Validation(map[string]string{
			"expiry_date": "expiry date cannot precede the received date",
		})
	}

	release, err := s.locks.Acquire(ctx, in.ProductID, s.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	act := actor.FromContext(ctx)

	var lot *string
	if in.LotNumber != "" {
		lot = &in.LotNumber
	}
	var ref *string
	if in.ReferenceID != "" {
		ref = &in.ReferenceID
	}

	batch := &repository.Batch{
		ProductID:        in.ProductID,
		LotNumber:        lot,
		ExpiryDate:       in.ExpiryDate,
		ReceivedDate:     in.ReceivedDate,
		QuantityReceived: in.Quantity,
		QuantityOnHand:   in.Quantity,
		UnitCost:         in.UnitCost,
		Status:           repository.BatchActive,
	}

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		product, err := s.productRepo.GetByIDTx(ctx, tx, in.ProductID)
		if err != nil {
			return err
		}
		if !product.IsActive {
			return errors.NotFound("product")
		}

		if err := s.batchRepo.CreateTx(ctx, tx, batch); err != nil {
			return err
		}

		movement := &repository.Movement{
			ProductID:     in.ProductID,
			BatchID:       batch.ID,
			MovementType:  repository.MovementReceipt,
			QuantityDelta: in.Quantity,
			PreviousStock: 0,
			NewStock:      in.Quantity,
			ReferenceID:   ref,
			ActorID:       act.ID,
			ActorName:     act.Name,
		}
		if err := s.movementRepo.AppendTx(ctx, tx, movement); err != nil {
			return err
		}

		return s.productRepo.ApplyStockDeltaTx(ctx, tx, in.ProductID, in.Quantity, product.Version)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("product_id", in.ProductID).
		Str("batch_id", batch.ID).
		Int("quantity", in.Quantity).
		Msg("batch received")

	s.publisher.PublishReceived(ctx, messaging.StockReceivedEvent{
		ProductID: in.ProductID,
		BatchID:   batch.ID,
		LotNumber: in.LotNumber,
		Quantity:  in.Quantity,
		ActorID:   act.ID,
	})

	return batch, nil
}

// Adjust applies a signed correction to one batch. The delta may not push
// quantity on hand below zero or above the originally received quantity. A
// batch adjusted back above zero from depleted returns to active; expired
// and recalled batches keep their status.
func (s *StockService) Adjust(ctx context.Context, in AdjustInput) (*repository.Batch, error) {
	if !in.MovementType.AdjustmentType() {
		return nil, errors.InvalidAdjustment(fmt.Sprintf("movement type %q is not an adjustment", in.MovementType))
	}
	if in.QuantityDelta == 0 {
		return nil, errors.InvalidAdjustment("adjustment delta must be non-zero")
	}

	act := actor.FromContext(ctx)

	var ref *string
	if in.ReferenceID != "" {
		ref = &in.ReferenceID
	}
	var reason *string
	if in.Reason != "" {
		reason = &in.Reason
	}

	// The batch has to be read before we know which product to lock.
	pre, err := s.batchRepo.GetByID(ctx, in.BatchID)
	if err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, pre.ProductID, s.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	var batch *repository.Batch
	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		b, err := s.batchRepo.GetByIDTx(ctx, tx, in.BatchID)
		if err != nil {
			return err
		}

		// Capture the product version before any write so the optimistic
		// guard on the aggregate update also covers the batch write.
		product, err := s.productRepo.GetByIDTx(ctx, tx, b.ProductID)
		if err != nil {
			return err
		}

		newQty := b.QuantityOnHand + in.QuantityDelta
		if newQty < 0 {
			return errors.InvalidAdjustment(fmt.Sprintf(
				"adjustment of %d would take batch %s below zero (on hand %d)",
				in.QuantityDelta, b.ID, b.QuantityOnHand,
			))
		}
		if newQty > b.QuantityReceived {
			return errors.InvalidAdjustment(fmt.Sprintf(
				"adjustment of %d would exceed the received quantity %d for batch %s",
				in.QuantityDelta, b.QuantityReceived, b.ID,
			))
		}

		status := b.Status
		switch {
		case newQty == 0 && status == repository.BatchActive:
			status = repository.BatchDepleted
		case newQty > 0 && status == repository.BatchDepleted:
			status = repository.BatchActive
		}

		if err := s.batchRepo.SetQuantityTx(ctx, tx, b.ID, newQty, status); err != nil {
			return err
		}

		movement := &repository.Movement{
			ProductID:     b.ProductID,
			BatchID:       b.ID,
			MovementType:  in.MovementType,
			QuantityDelta: in.QuantityDelta,
			PreviousStock: b.QuantityOnHand,
			NewStock:      newQty,
			ReferenceID:   ref,
			Reason:        reason,
			ActorID:       act.ID,
			ActorName:     act.Name,
		}
		if err := s.movementRepo.AppendTx(ctx, tx, movement); err != nil {
			return err
		}

		if err := s.productRepo.ApplyStockDeltaTx(ctx, tx, b.ProductID, in.QuantityDelta, product.Version); err != nil {
			return err
		}

		b.QuantityOnHand = newQty
		b.Status = status
		batch = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("product_id", batch.ProductID).
		Str("batch_id", batch.ID).
		Str("movement_type", string(in.MovementType)).
		Int("delta", in.QuantityDelta).
		Msg("batch adjusted")

	s.publisher.PublishAdjusted(ctx, messaging.StockAdjustedEvent{
		ProductID:     batch.ProductID,
		BatchID:       batch.ID,
		MovementType:  string(in.MovementType),
		QuantityDelta: in.QuantityDelta,
		NewQuantity:   batch.QuantityOnHand,
		Reason:        in.Reason,
		ActorID:       act.ID,
	})

	return batch, nil
}

// MarkExpired transitions an active batch to expired. The quantity on hand
// is untouched; a zero-delta movement records the transition in the ledger.
func (s *StockService) MarkExpired(ctx context.Context, batchID, reason string) (*repository.Batch, error) {
	return s.transition(ctx, batchID, repository.BatchExpired, reason)
}

// MarkRecalled transitions an active batch to recalled.
func (s *StockService) MarkRecalled(ctx context.Context, batchID, reason string) (*repository.Batch, error) {
	return s.transition(ctx, batchID, repository.BatchRecalled, reason)
}

func (s *StockService) transition(ctx context.Context, batchID string, target repository.BatchStatus, reason string) (*repository.Batch, error) {
	act := actor.FromContext(ctx)

	pre, err := s.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, pre.ProductID, s.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	var batch *repository.Batch
	var oldStatus repository.BatchStatus
	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		b, err := s.batchRepo.GetByIDTx(ctx, tx, batchID)
		if err != nil {
			return err
		}
		if b.Status != repository.BatchActive {
			return errors.Conflict(fmt.Sprintf("batch %s is %s, only active batches can become %s", b.ID, b.Status, target))
		}
		oldStatus = b.Status

		if err := s.batchRepo.SetStatusTx(ctx, tx, b.ID, target); err != nil {
			return err
		}

		var r *string
		if reason != "" {
			r = &reason
		}
		movement := &repository.Movement{
			ProductID:     b.ProductID,
			BatchID:       b.ID,
			MovementType:  repository.MovementAdjustment,
			QuantityDelta: 0,
			PreviousStock: b.QuantityOnHand,
			NewStock:      b.QuantityOnHand,
			Reason:        r,
			ActorID:       act.ID,
			ActorName:     act.Name,
		}
		if err := s.movementRepo.AppendTx(ctx, tx, movement); err != nil {
			return err
		}

		b.Status = target
		batch = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("batch_id", batch.ID).
		Str("old_status", string(oldStatus)).
		Str("new_status", string(target)).
		Msg("batch status changed")

	s.publisher.PublishStatusChanged(ctx, messaging.BatchStatusChangedEvent{
		ProductID: batch.ProductID,
		BatchID:   batch.ID,
		OldStatus: string(oldStatus),
		NewStatus: string(target),
		Reason:    reason,
		ActorID:   act.ID,
	})

	return batch, nil
}

// Reconcile rebuilds a product's aggregate from its batch rows and reports
// any drift it found. The aggregate should never drift under normal
// operation; this exists as an operational repair tool.
func (s *StockService) Reconcile(ctx context.Context, productID string) (*ReconcileResult, error) {
	release, err := s.locks.Acquire(ctx, productID, s.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	var result *ReconcileResult
	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		product, err := s.productRepo.GetByIDTx(ctx, tx, productID)
		if err != nil {
			return err
		}

		total, err := s.productRepo.RecomputeTotalStockTx(ctx, tx, productID)
		if err != nil {
			return err
		}

		result = &ReconcileResult{
			ProductID:       productID,
			PreviousTotal:   product.TotalStock,
			RecomputedTotal: total,
			Drift:           total - product.TotalStock,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Drift != 0 {
		s.logger.Warn().
			Str("product_id", productID).
			Int("drift", result.Drift).
			Msg("aggregate drift repaired during reconciliation")
	}

	return result, nil
}
