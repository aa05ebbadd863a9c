package service

import (
	"context"

	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/repository"
)

// ProductWithBatches pairs a product with its batches in FEFO order
type ProductWithBatches struct {
	*repository.Product
	Batches []*repository.Batch `json:"batches"`
}

// CreateProduct registers a product row the engine will track stock for.
// The catalog itself lives elsewhere; this row only carries what
// allocation needs.
func (s *StockService) CreateProduct(ctx context.Context, p *repository.Product) error {
	return s.productRepo.Create(ctx, p)
}

// GetProduct gets a product with its batches
func (s *StockService) GetProduct(ctx context.Context, id string) (*ProductWithBatches, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	batches, err := s.batchRepo.ListByProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ProductWithBatches{Product: product, Batches: batches}, nil
}

// ListProducts lists active products with pagination
func (s *StockService) ListProducts(ctx context.Context, page, perPage int) ([]*repository.Product, int64, error) {
	return s.productRepo.List(ctx, page, perPage)
}

// DeactivateProduct soft-deactivates a product. Its batches and ledger
// history stay queryable.
func (s *StockService) DeactivateProduct(ctx context.Context, id string) error {
	return s.productRepo.Deactivate(ctx, id)
}

// GetBatch gets a single batch
func (s *StockService) GetBatch(ctx context.Context, id string) (*repository.Batch, error) {
	return s.batchRepo.GetByID(ctx, id)
}

// ListBatches lists a product's batches, soonest expiry first
func (s *StockService) ListBatches(ctx context.Context, productID string) ([]*repository.Batch, error) {
	if _, err := s.productRepo.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.batchRepo.ListByProduct(ctx, productID)
}
