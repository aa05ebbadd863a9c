package service

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/repository"
)

// AllocationLine is one batch's share of an allocation plan
type AllocationLine struct {
	BatchID       string          `json:"batch_id"`
	LotNumber     *string         `json:"lot_number,omitempty"`
	QuantityTaken int             `json:"quantity_taken"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	LineCost      decimal.Decimal `json:"line_cost"`
}

// AllocationResult is the outcome of a committed allocation. The per-batch
// breakdown is what makes recalls traceable back to the consuming sale.
type AllocationResult struct {
	ProductID string           `json:"product_id"`
	Quantity  int              `json:"quantity"`
	TotalCost decimal.Decimal  `json:"total_cost"`
	Lines     []AllocationLine `json:"lines"`
}

// planAllocation walks candidate batches in FEFO order and greedily assigns
// min(remaining, on-hand) to each until the request is covered. It mutates
// nothing; the commit step applies the returned plan.
//
// Candidates are re-sorted defensively: soonest expiry first, ties broken by
// received date, then batch id, so the plan is deterministic regardless of
// input order. Batches that are not allocatable are skipped even if they
// hold stock.
//
// Returns the plan and the total available quantity. A nil plan means the
// candidates cannot cover the request (all-or-nothing: the caller must not
// apply a partial plan).
func planAllocation(candidates []*repository.Batch, requested int) ([]AllocationLine, int) {
	sorted := make([]*repository.Batch, 0, len(candidates))
	for _, b := range candidates {
		if b.Status.Allocatable() && b.QuantityOnHand > 0 {
			sorted = append(sorted, b)
		}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].ExpiryDate.Equal(sorted[j].ExpiryDate) {
			return sorted[i].ExpiryDate.Before(sorted[j].ExpiryDate)
		}
		if !sorted[i].ReceivedDate.Equal(sorted[j].ReceivedDate) {
			return sorted[i].ReceivedDate.Before(sorted[j].ReceivedDate)
		}
		return sorted[i].ID < sorted[j].ID
	})

	available := 0
	for _, b := range sorted {
		available += b.QuantityOnHand
	}
	if available < requested {
		return nil, available
	}

	var lines []AllocationLine
	remaining := requested
	for _, b := range sorted {
		if remaining == 0 {
			break
		}

		take := b.QuantityOnHand
		if take > remaining {
			take = remaining
		}

		lines = append(lines, AllocationLine{
			BatchID:       b.ID,
			LotNumber:     b.LotNumber,
			QuantityTaken: take,
			UnitCost:      b.UnitCost,
			LineCost:      b.UnitCost.Mul(decimal.NewFromInt(int64(take))),
		})
		remaining -= take
	}

	return lines, available
}

// planTotalCost sums the line costs of a plan
func planTotalCost(lines []AllocationLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineCost)
	}
	return total
}
