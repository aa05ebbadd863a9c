package service

import (
	"context"
	"time"
)

// DashboardStats summarizes the stock position across all active products
type DashboardStats struct {
	TotalProducts   int64                  `json:"total_products"`
	TotalStock      int                    `json:"total_stock"`
	OutOfStockCount int64                  `json:"out_of_stock_count"`
	ExpiryBuckets   map[ExpiryBucket]int64 `json:"expiry_buckets"`
}

// GetDashboardStats aggregates product totals and classifies active batches
// into expiry buckets
func (s *StockService) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	products, err := s.productRepo.ListAllActive(ctx)
	if err != nil {
		return nil, err
	}

	batches, err := s.batchRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		TotalProducts: int64(len(products)),
		ExpiryBuckets: make(map[ExpiryBucket]int64),
	}

	for _, p := range products {
		stats.TotalStock += p.TotalStock
		if p.TotalStock == 0 {
			stats.OutOfStockCount++
		}
	}

	now := time.Now().UTC()
	for _, b := range batches {
		if b.QuantityOnHand == 0 {
			continue
		}
		bucket, _ := ClassifyExpiry(b, now)
		if bucket.Alerting() {
			stats.ExpiryBuckets[bucket]++
		}
	}

	return stats, nil
}
