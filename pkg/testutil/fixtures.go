package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/repository"
)

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Product creates a product fixture with defaults
func (f *FixtureFactory) Product(opts ...func(*repository.Product)) *repository.Product {
	seq := f.nextSeq()

	p := &repository.Product{
		ID:        uuid.New().String(),
		Name:      fmt.Sprintf("Amoxicillin %d", seq),
		Unit:      "tablet",
		UnitPrice: decimal.NewFromFloat(4.50),
		IsActive:  true,
	}

	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithProductName sets the product name
func WithProductName(name string) func(*repository.Product) {
	return func(p *repository.Product) {
		p.Name = name
	}
}

// Batch creates a batch fixture against a product. Defaults: 100 units
// received and on hand, active, expiring in 180 days.
func (f *FixtureFactory) Batch(productID string, opts ...func(*repository.Batch)) *repository.Batch {
	seq := f.nextSeq()
	lot := fmt.Sprintf("LOT-%04d", seq)
	now := time.Now().UTC().Truncate(24 * time.Hour)

	b := &repository.Batch{
		ID:               uuid.New().String(),
		ProductID:        productID,
		LotNumber:        &lot,
		ExpiryDate:       now.AddDate(0, 0, 180),
		ReceivedDate:     now,
		QuantityReceived: 100,
		QuantityOnHand:   100,
		UnitCost:         decimal.NewFromFloat(2.25),
		Status:           repository.BatchActive,
	}

	for _, opt := range opts {
		opt(b)
	}
	return b
}

// WithExpiryIn sets the batch expiry to a number of days from today
func WithExpiryIn(days int) func(*repository.Batch) {
	return func(b *repository.Batch) {
		now := time.Now().UTC().Truncate(24 * time.Hour)
		b.ExpiryDate = now.AddDate(0, 0, days)
	}
}

// WithQuantity sets both received and on-hand quantities
func WithQuantity(qty int) func(*repository.Batch) {
	return func(b *repository.Batch) {
		b.QuantityReceived = qty
		b.QuantityOnHand = qty
	}
}

// WithOnHand sets only the on-hand quantity
func WithOnHand(qty int) func(*repository.Batch) {
	return func(b *repository.Batch) {
		b.QuantityOnHand = qty
	}
}

// WithStatus sets the batch status
func WithStatus(status repository.BatchStatus) func(*repository.Batch) {
	return func(b *repository.Batch) {
		b.Status = status
	}
}
