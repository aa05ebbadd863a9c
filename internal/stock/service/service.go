package service

import (
	"time"

	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/events"
	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/repository"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/database"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/logger"
)

// StockService is the single entry point for every stock mutation. All
// writes to batches, the product aggregate and the movement ledger go
// through its transactional paths; no other code path mutates those fields.
type StockService struct {
	db           *database.DB
	productRepo  *repository.ProductRepository
	batchRepo    *repository.BatchRepository
	movementRepo *repository.MovementRepository
	publisher    *events.StockEventPublisher
	locks        *productLocks
	lockTimeout  time.Duration
	logger       *logger.Logger
}

// NewStockService creates a new stock service
func NewStockService(
	db *database.DB,
	productRepo *repository.ProductRepository,
	batchRepo *repository.BatchRepository,
	movementRepo *repository.MovementRepository,
	publisher *events.StockEventPublisher,
	lockTimeout time.Duration,
	log *logger.Logger,
) *StockService {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &StockService{
		db:           db,
		productRepo:  productRepo,
		batchRepo:    batchRepo,
		movementRepo: movementRepo,
		publisher:    publisher,
		locks:        newProductLocks(),
		lockTimeout:  lockTimeout,
		logger:       log,
	}
}
