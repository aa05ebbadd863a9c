package service

import (
	"context"
	"time"

	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/repository"
)

// ExpiryBucket classifies how close a batch is to its expiry date
type ExpiryBucket string

const (
	BucketExpired     ExpiryBucket = "expired"       // expiry date has passed
	BucketDueThisWeek ExpiryBucket = "due_this_week" // 0-7 days out
	BucketDueSoon     ExpiryBucket = "due_soon"      // 8-30 days out
	BucketDueLater    ExpiryBucket = "due_later"     // 31-90 days out
	BucketNoAlert     ExpiryBucket = "none"          // more than 90 days out
)

// Alerting reports whether the bucket warrants an expiry alert
func (b ExpiryBucket) Alerting() bool {
	return b != BucketNoAlert
}

// DaysUntilExpiry counts whole calendar days from asOf to the expiry date.
// Both timestamps are truncated to dates first, so a batch expiring later
// today still counts as day zero, and yesterday's expiry is -1.
func DaysUntilExpiry(expiry, asOf time.Time) int {
	e := time.Date(expiry.Year(), expiry.Month(), expiry.Day(), 0, 0, 0, 0, time.UTC)
	a := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(a).Hours() / 24)
}

// ClassifyExpiry buckets a batch by days until expiry as of the given time
func ClassifyExpiry(b *repository.Batch, asOf time.Time) (ExpiryBucket, int) {
	days := DaysUntilExpiry(b.ExpiryDate, asOf)
	switch {
	case days < 0:
		return BucketExpired, days
	case days <= 7:
		return BucketDueThisWeek, days
	case days <= 30:
		return BucketDueSoon, days
	case days <= 90:
		return BucketDueLater, days
	default:
		return BucketNoAlert, days
	}
}

// ExpiryReportLine is one batch in the expiry report
type ExpiryReportLine struct {
	Batch           *repository.Batch `json:"batch"`
	Bucket          ExpiryBucket      `json:"bucket"`
	DaysUntilExpiry int               `json:"days_until_expiry"`
}

// ExpiryReport groups a product's batches that need expiry attention
type ExpiryReport struct {
	AsOf  time.Time          `json:"as_of"`
	Lines []ExpiryReportLine `json:"lines"`
}

// ExpiryReportAll classifies every active batch with stock on hand across
// all products, skipping batches outside any alert bucket
func (s *StockService) ExpiryReportAll(ctx context.Context, asOf time.Time) (*ExpiryReport, error) {
	batches, err := s.batchRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	report := &ExpiryReport{AsOf: asOf, Lines: []ExpiryReportLine{}}
	for _, b := range batches {
		if b.QuantityOnHand == 0 {
			continue
		}
		bucket, days := ClassifyExpiry(b, asOf)
		if !bucket.Alerting() {
			continue
		}
		report.Lines = append(report.Lines, ExpiryReportLine{
			Batch:           b,
			Bucket:          bucket,
			DaysUntilExpiry: days,
		})
	}
	return report, nil
}

// ExpiryReportForProduct classifies every batch of a product that still has
// stock on hand, skipping batches outside any alert bucket. Batches already
// marked expired or recalled are included so the report shows what is still
// sitting on the shelf.
func (s *StockService) ExpiryReportForProduct(ctx context.Context, productID string, asOf time.Time) (*ExpiryReport, error) {
	if _, err := s.productRepo.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	batches, err := s.batchRepo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	report := &ExpiryReport{AsOf: asOf, Lines: []ExpiryReportLine{}}
	for _, b := range batches {
		if b.QuantityOnHand == 0 {
			continue
		}
		bucket, days := ClassifyExpiry(b, asOf)
		if !bucket.Alerting() {
			continue
		}
		report.Lines = append(report.Lines, ExpiryReportLine{
			Batch:           b,
			Bucket:          bucket,
			DaysUntilExpiry: days,
		})
	}
	return report, nil
}
