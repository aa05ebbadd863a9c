package service_test

import (
	"context"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/repository"
	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/service"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/errors"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/testutil"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}
	defer suite.Cleanup(ctx)
	defer testutil.TerminateContainer(ctx)

	os.Exit(m.Run())
}

func newStockService(t *testing.T) *service.StockService {
	t.Helper()
	suite.ResetStockTables(t, context.Background())

	productRepo := repository.NewProductRepository(suite.DB)
	batchRepo := repository.NewBatchRepository(suite.DB)
	movementRepo := repository.NewMovementRepository(suite.DB)

	return service.NewStockService(suite.DB, productRepo, batchRepo, movementRepo, nil, 3*time.Second, suite.Logger)
}

func createProduct(t *testing.T, svc *service.StockService) *repository.Product {
	t.Helper()
	p := suite.Fixtures.Product()
	require.NoError(t, svc.CreateProduct(context.Background(), p))
	return p
}

func receive(t *testing.T, svc *service.StockService, productID string, qty, expiryDays int) *repository.Batch {
	t.Helper()
	now := time.Now().UTC().Truncate(24 * time.Hour)
	batch, err := svc.Receive(context.Background(), service.ReceiveInput{
		ProductID:    productID,
		ExpiryDate:   now.AddDate(0, 0, expiryDays),
		ReceivedDate: now,
		Quantity:     qty,
		UnitCost:     decimal.NewFromInt(2),
	})
	require.NoError(t, err)
	return batch
}

// assertAggregateInvariant checks that the product aggregate equals the sum
// of on-hand quantities over all its batches, regardless of status.
func assertAggregateInvariant(t *testing.T, svc *service.StockService, productID string) {
	t.Helper()
	ctx := context.Background()

	product, err := svc.GetProduct(ctx, productID)
	require.NoError(t, err)

	sum := 0
	for _, b := range product.Batches {
		sum += b.QuantityOnHand
	}
	assert.Equal(t, sum, product.TotalStock, "aggregate out of sync with batches")
}

func assertChainValid(t *testing.T, svc *service.StockService, batchID string) {
	t.Helper()
	report, err := svc.VerifyChain(context.Background(), batchID)
	require.NoError(t, err)
	assert.True(t, report.Valid, "chain problems: %v", report.Problems)
}

func TestReceive_CreatesBatchAndLedgerEntry(t *testing.T) {
	ctx := context.Background()
	svc := newStockService(t)
	product := createProduct(t, svc)

	batch := receive(t, svc, product.ID, 100, 180)

	assert.Equal(t, repository.BatchActive, batch.Status)
	assert.Equal(t, 100, batch.QuantityReceived)
	assert.Equal(t, 100, batch.QuantityOnHand)

	got, err := svc.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.TotalStock)

	history, err := svc.BatchHistory(ctx, batch.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, repository.MovementReceipt, history[0].MovementType)
	assert.Equal(t, 0, history[0].PreviousStock)
	assert.Equal(t, 100, history[0].NewStock)
	assert.Equal(t, 100, history[0].QuantityDelta)

	assertChainValid(t, svc, batch.ID)
	assertAggregateInvariant(t, svc, product.ID)
}

func TestReceive_RejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	svc := newStockService(t)
	product := createProduct(t, svc)

	now := time.Now().UTC().Truncate(24 * time.Hour)

	_, err := svc.Receive(ctx, service.ReceiveInput{
		ProductID: product.ID, ExpiryDate: now.AddDate(0, 0, 30), Quantity: 0,
	})
	assert.True(t, errors.Is(err, errors.ErrInvalidQuantity))

	_, err = svc.Receive(ctx, service.ReceiveInput{
		ProductID: product.ID, ExpiryDate: now.AddDate(0, 0, -10), ReceivedDate: now, Quantity: 5,
	})
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestAllocate_FEFOAcrossBatches(t *testing.T) {
	ctx := context.Background()
	svc := newStockService(t)
	product := createProduct(t, svc)

	soon := receive(t, svc, product.ID, 50, 10)
	later := receive(t, svc, product.ID, 50, 60)
	mid := receive(t, svc, product.ID, 50, 30)

	result, err := svc.Allocate(ctx, product.ID, 120, "invoice-1")
	require.NoError(t, err)

	require.Len(t, result.Lines, 3)
	assert.Equal(t, soon.ID, result.Lines[0].BatchID)
	assert.Equal(t, 50, result.Lines[0].QuantityTaken)
	assert.Equal(t, mid.ID, result.Lines[1].BatchID)
	assert.Equal(t, 50, result.Lines[1].QuantityTaken)
	assert.Equal(t, later.ID, result.Lines[2].BatchID)
	assert.Equal(t, 20, result.Lines[2].QuantityTaken)
	assert.True(t, result.TotalCost.Equal(decimal.NewFromInt(240)))

	// Fully consumed batches flip to depleted
	gotSoon, err := svc.GetBatch(ctx, soon.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.BatchDepleted, gotSoon.Status)
	assert.Equal(t, 0, gotSoon.QuantityOnHand)

	gotLater, err := svc.GetBatch(ctx, later.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.BatchActive, gotLater.Status)
	assert.Equal(t, 30, gotLater.QuantityOnHand)

	gotProduct, err := svc.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, gotProduct.TotalStock)

	for _, b := range []*repository.Batch{soon, mid, later} {
		assertChainValid(t, svc, b.ID)
	}
	assertAggregateInvariant(t, svc, product.ID)
}

func TestAllocate_InsufficientStockLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	svc := newStockService(t)
	product := createProduct(t, svc)

	batch := receive(t, svc, product.ID, 30, 20)

	_, err := svc.Allocate(ctx, product.ID, 31, "invoice-2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "30", appErr.Details["available"])
	assert.Equal(t, "31", appErr.Details["requested"])

	// No partial consumption, no sale movements
	got, err := svc.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, got.QuantityOnHand)

	history, err := svc.BatchHistory(ctx, batch.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, repository.MovementReceipt, history[0].MovementType)

	assertAggregateInvariant(t, svc, product.ID)
}

func TestAllocate_SkipsRecalledBatches(t *testing.T) {
	ctx := context.Background()
	svc := newStockService(t)
	product := createProduct(t, svc)

	recalled := receive(t, svc, product.ID, 50, 5)
	healthy := receive(t, svc, product.ID, 50, 90)

	_, err := svc.MarkRecalled(ctx, recalled.ID, "supplier recall notice 2026-112")
	require.NoError(t, err)

	// The recalled batch expires sooner but must not be touched
	result, err := svc.Allocate(ctx, product.ID, 40, "")
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, healthy.ID, result.Lines[0].BatchID)

	// Recalled stock does not count toward availability
	_, err = svc.Allocate(ctx, product.ID, 11, "")
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	gotRecalled, err := svc.GetBatch(ctx, recalled.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, gotRecalled.QuantityOnHand)

	assertAggregateInvariant(t, svc, product.ID)
}

func TestAllocate_RejectsNonPositiveQuantity(t *testing.T) {
	svc := newStockService(t)
	product := createProduct(t, svc)

	_, err := svc.Allocate(context.Background(), product.ID, 0, "")
	assert.True(t, errors.Is(err, errors.ErrInvalidQuantity))

	_, err = svc.Allocate(context.Background(), product.ID, -5, "")
	assert.True(t, errors.Is(err, errors.ErrInvalidQuantity))
}

func TestAdjust_BoundsDepletionAndRevival(t *testing.T) {
	ctx := context.Background()
	svc := newStockService(t)
	product := createProduct(t, svc)

	batch := receive(t, svc, product.ID, 10, 60)

	// Draining to zero depletes the batch
	adjusted, err := svc.Adjust(ctx, service.AdjustInput{
		BatchID:       batch.ID,
		MovementType:  repository.MovementAdjustment,
		QuantityDelta: -10,
		Reason:        "annual stocktake correction",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, adjusted.QuantityOnHand)
	assert.Equal(t, repository.BatchDepleted, adjusted.Status)

	// Adjusting back above zero revives it
	adjusted, err = svc.Adjust(ctx, service.AdjustInput{
		BatchID:       batch.ID,
		MovementType:  repository.MovementAdjustment,
		QuantityDelta: 5,
		Reason:        "recount found missing box",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, adjusted.QuantityOnHand)
	assert.Equal(t, repository.BatchActive, adjusted.Status)

	// Bounds: below zero and above received are both rejected
	_, err = svc.Adjust(ctx, service.AdjustInput{
		BatchID: batch.ID, MovementType: repository.MovementAdjustment, QuantityDelta: -6, Reason: "x",
	})
	assert.True(t, errors.Is(err, errors.ErrInvalidAdjustment))

	_, err = svc.Adjust(ctx, service.AdjustInput{
		BatchID: batch.ID, MovementType: repository.MovementAdjustment, QuantityDelta: 6, Reason: "x",
	})
	assert.True(t, errors.Is(err, errors.ErrInvalidAdjustment))

	// Zero delta and non-adjustment types are rejected up front
	_, err = svc.Adjust(ctx, service.AdjustInput{
		BatchID: batch.ID, MovementType: repository.MovementAdjustment, QuantityDelta: 0, Reason: "x",
	})
	assert.True(t, errors.Is(err, errors.ErrInvalidAdjustment))

	_, err = svc.Adjust(ctx, service.AdjustInput{
		BatchID: batch.ID, MovementType: repository.MovementSale, QuantityDelta: -1, Reason: "x",
	})
	assert.True(t, errors.Is(err, errors.ErrInvalidAdjustment))

	assertChainValid(t, svc, batch.ID)
	assertAggregateInvariant(t, svc, product.ID)
}

func TestAdjust_ExpiryWriteoff(t *testing.T) {
	ctx := context.Background()
	svc := newStockService(t)
	product := createProduct(t, svc)

	batch := receive(t, svc, product.ID, 20, 3)

	adjusted, err := svc.Adjust(ctx, service.AdjustInput{
		BatchID:       batch.ID,
		MovementType:  repository.MovementExpiryWriteoff,
		QuantityDelta: -20,
		Reason:        "expired on shelf",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, adjusted.QuantityOnHand)

	history, err := svc.BatchHistory(ctx, batch.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, repository.MovementExpiryWriteoff, history[1].MovementType)

	assertAggregateInvariant(t, svc, product.ID)
}

func TestMarkExpired_StopsAllocationKeepsQuantity(t *testing.T) {
	ctx := context.Background()
	svc := newStockService(t)
	product := createProduct(t, svc)

	batch := receive(t, svc, product.ID, 40, 1)

	marked, err := svc.MarkExpired(ctx, batch.ID, "past shelf date")
	require.NoError(t, err)
	assert.Equal(t, repository.BatchExpired, marked.Status)
	assert.Equal(t, 40, marked.QuantityOnHand)

	// The transition itself is in the ledger as a zero-delta entry
	history, err := svc.BatchHistory(ctx, batch.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 0, history[1].QuantityDelta)
	assert.Equal(t, history[1].PreviousStock, history[1].NewStock)

	_, err = svc.Allocate(ctx, product.ID, 1, "")
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	// Only active batches can transition
	_, err = svc.MarkExpired(ctx, batch.ID, "again")
	assert.True(t, errors.Is(err, errors.ErrConflict))

	assertChainValid(t, svc, batch.ID)
	assertAggregateInvariant(t, svc, product.ID)
}

func TestReconcile_RepairsDrift(t *testing.T) {
	ctx := context.Background()
	svc := newStockService(t)
	product := createProduct(t, svc)

	receive(t, svc, product.ID, 60, 90)

	// Corrupt the aggregate behind the service's back
	_, err := suite.RawDB.ExecContext(ctx, `UPDATE products SET total_stock = 999 WHERE id = $1`, product.ID)
	require.NoError(t, err)

	result, err := svc.Reconcile(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 999, result.PreviousTotal)
	assert.Equal(t, 60, result.RecomputedTotal)
	assert.Equal(t, -939, result.Drift)

	assertAggregateInvariant(t, svc, product.ID)
}

func TestExpiryReport_BucketsOnHandStock(t *testing.T) {
	ctx := context.Background()
	svc := newStockService(t)
	product := createProduct(t, svc)

	receive(t, svc, product.ID, 10, 3)   // due this week
	receive(t, svc, product.ID, 10, 20)  // due soon
	receive(t, svc, product.ID, 10, 200) // no alert

	report, err := svc.ExpiryReportForProduct(ctx, product.ID, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, report.Lines, 2)
	assert.Equal(t, service.BucketDueThisWeek, report.Lines[0].Bucket)
	assert.Equal(t, service.BucketDueSoon, report.Lines[1].Bucket)
}

func TestConcurrentAllocations_AccountExactly(t *testing.T) {
	ctx := context.Background()
	svc := newStockService(t)
	product := createProduct(t, svc)

	b1 := receive(t, svc, product.ID, 100, 10)
	b2 := receive(t, svc, product.ID, 100, 50)

	const workers = 20
	const perWorker = 10

	var wg sync.WaitGroup
	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Contention is a retryable outcome, not a failure
			for attempt := 0; attempt < 50; attempt++ {
				_, err := svc.Allocate(ctx, product.ID, perWorker, "")
				if err == nil {
					return
				}
				if errors.Is(err, errors.ErrContention) {
					time.Sleep(5 * time.Millisecond)
					continue
				}
				errCh <- err
				return
			}
			errCh <- errors.Contention("test gave up retrying")
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Fatalf("allocation failed: %v", err)
	}

	gotProduct, err := svc.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, gotProduct.TotalStock)

	for _, id := range []string{b1.ID, b2.ID} {
		got, err := svc.GetBatch(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 0, got.QuantityOnHand)
		assert.Equal(t, repository.BatchDepleted, got.Status)
		assertChainValid(t, svc, id)
	}

	// Sale movements must account for exactly the allocated quantity
	movements, _, err := svc.Movements(ctx, repository.MovementFilter{
		ProductID:    product.ID,
		MovementType: repository.MovementSale,
	}, 1, 100)
	require.NoError(t, err)

	sold := 0
	for _, m := range movements {
		sold += -m.QuantityDelta
	}
	assert.Equal(t, workers*perWorker, sold)

	assertAggregateInvariant(t, svc, product.ID)
}
