package service

import (
	"context"
	"fmt"

	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/repository"
)

// ChainReport is the result of verifying one batch's movement chain
type ChainReport struct {
	BatchID   string   `json:"batch_id"`
	Movements int      `json:"movements"`
	Valid     bool     `json:"valid"`
	Problems  []string `json:"problems,omitempty"`
}

// Movements returns a filtered, paginated page of the movement ledger
func (s *StockService) Movements(ctx context.Context, filter repository.MovementFilter, page, perPage int) ([]*repository.Movement, int64, error) {
	return s.movementRepo.List(ctx, filter, page, perPage)
}

// HasSaleForReference reports whether an allocation already committed for
// this product under the given reference
func (s *StockService) HasSaleForReference(ctx context.Context, productID, referenceID string) (bool, error) {
	return s.movementRepo.HasSaleForReference(ctx, productID, referenceID)
}

// BatchHistory returns the full movement chain for one batch, oldest first
func (s *StockService) BatchHistory(ctx context.Context, batchID string) ([]*repository.Movement, error) {
	if _, err := s.batchRepo.GetByID(ctx, batchID); err != nil {
		return nil, err
	}
	return s.movementRepo.ListByBatch(ctx, batchID)
}

// VerifyChain audits a batch's movement chain: each movement's previous
// snapshot must equal the prior movement's new snapshot, every delta must
// match its snapshots, and the final snapshot must match the batch's current
// on-hand quantity. Problems are collected rather than failing fast so a
// corrupted chain is reported in full.
func (s *StockService) VerifyChain(ctx context.Context, batchID string) (*ChainReport, error) {
	batch, err := s.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	movements, err := s.movementRepo.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	report := &ChainReport{BatchID: batchID, Movements: len(movements)}

	if len(movements) == 0 {
		if batch.QuantityOnHand != 0 {
			report.Problems = append(report.Problems, fmt.Sprintf(
				"batch holds %d units but has no movements", batch.QuantityOnHand))
		}
		report.Valid = len(report.Problems) == 0
		return report, nil
	}

	first := movements[0]
	if first.MovementType != repository.MovementReceipt {
		report.Problems = append(report.Problems, fmt.Sprintf(
			"chain starts with %s, expected %s", first.MovementType, repository.MovementReceipt))
	}
	if first.PreviousStock != 0 {
		report.Problems = append(report.Problems, fmt.Sprintf(
			"first movement %s has previous stock %d, expected 0", first.ID, first.PreviousStock))
	}

	prev := first
	for _, m := range movements {
		if m.NewStock != m.PreviousStock+m.QuantityDelta {
			report.Problems = append(report.Problems, fmt.Sprintf(
				"movement %s: delta %d does not connect %d to %d",
				m.ID, m.QuantityDelta, m.PreviousStock, m.NewStock))
		}
		if m != prev && m.PreviousStock != prev.NewStock {
			report.Problems = append(report.Problems, fmt.Sprintf(
				"movement %s: previous stock %d does not match prior movement's %d",
				m.ID, m.PreviousStock, prev.NewStock))
		}
		prev = m
	}

	last := movements[len(movements)-1]
	if last.NewStock != batch.QuantityOnHand {
		report.Problems = append(report.Problems, fmt.Sprintf(
			"chain ends at %d but batch holds %d", last.NewStock, batch.QuantityOnHand))
	}

	report.Valid = len(report.Problems) == 0
	return report, nil
}
