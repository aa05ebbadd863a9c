package service

import (
	"context"
	"time"

	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/events"
	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/repository"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/logger"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/messaging"
)

// ExpiryScanner walks active batches and publishes expiring alerts. It has
// no mutation authority: marking a batch expired stays a deliberate call
// through the stock service.
type ExpiryScanner struct {
	batchRepo *repository.BatchRepository
	publisher *events.StockEventPublisher
	logger    *logger.Logger
}

// NewExpiryScanner creates a new expiry scanner
func NewExpiryScanner(batchRepo *repository.BatchRepository, publisher *events.StockEventPublisher, log *logger.Logger) *ExpiryScanner {
	return &ExpiryScanner{
		batchRepo: batchRepo,
		publisher: publisher,
		logger:    log,
	}
}

// ScanAll classifies every active batch with stock on hand, publishes an
// expiring event for each one inside an alert bucket, and returns the number
// of alerts raised
func (s *ExpiryScanner) ScanAll(ctx context.Context) (int, error) {
	batches, err := s.batchRepo.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	alerts := 0
	for _, b := range batches {
		if b.QuantityOnHand == 0 {
			continue
		}
		bucket, days := ClassifyExpiry(b, now)
		if !bucket.Alerting() {
			continue
		}
		alerts++

		lot := ""
		if b.LotNumber != nil {
			lot = *b.LotNumber
		}
		s.publisher.PublishExpiring(ctx, messaging.BatchExpiringEvent{
			ProductID:       b.ProductID,
			BatchID:         b.ID,
			LotNumber:       lot,
			ExpiryDate:      b.ExpiryDate.Format("2006-01-02"),
			DaysUntilExpiry: days,
			Bucket:          string(bucket),
			QuantityOnHand:  b.QuantityOnHand,
		})
	}

	s.logger.Info().
		Int("batches", len(batches)).
		Int("alerts", alerts).
		Msg("expiry scan completed")
	return alerts, nil
}

// ExpiryScheduler runs the scanner on a fixed interval in a background
// goroutine
type ExpiryScheduler struct {
	scanner  *ExpiryScanner
	interval time.Duration
	logger   *logger.Logger
	cancel   context.CancelFunc
}

// NewExpiryScheduler creates a new expiry scheduler
func NewExpiryScheduler(scanner *ExpiryScanner, interval time.Duration, log *logger.Logger) *ExpiryScheduler {
	return &ExpiryScheduler{
		scanner:  scanner,
		interval: interval,
		logger:   log,
	}
}

// Start starts the scheduler in a background goroutine. An initial scan
// runs immediately, then one per interval.
func (s *ExpiryScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info().Dur("interval", s.interval).Msg("expiry scheduler started")

		s.runScan(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("expiry scheduler stopped")
				return
			case <-ticker.C:
				s.runScan(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine
func (s *ExpiryScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *ExpiryScheduler) runScan(ctx context.Context) {
	start := time.Now()
	if _, err := s.scanner.ScanAll(ctx); err != nil {
		s.logger.Error().Err(err).Msg("expiry scan failed")
		return
	}
	s.logger.Debug().Dur("duration", time.Since(start)).Msg("expiry scan cycle completed")
}
