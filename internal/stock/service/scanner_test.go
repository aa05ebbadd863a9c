package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/repository"
	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/service"
)

func TestExpiryScanner_ScanAllAlertsOnlyOnStockAtRisk(t *testing.T) {
	ctx := context.Background()
	svc := newStockService(t)
	product := createProduct(t, svc)

	receive(t, svc, product.ID, 10, 3)   // due this week
	receive(t, svc, product.ID, 10, 20)  // due soon
	receive(t, svc, product.ID, 10, 60)  // due later
	receive(t, svc, product.ID, 10, 200) // outside every alert bucket

	// Drained and recalled batches carry no allocatable stock and must not
	// raise alerts even though they expire soon.
	drained := receive(t, svc, product.ID, 10, 5)
	recalled := receive(t, svc, product.ID, 10, 5)

	_, err := svc.Adjust(ctx, service.AdjustInput{
		BatchID:       drained.ID,
		MovementType:  repository.MovementAdjustment,
		QuantityDelta: -10,
		Reason:        "stocktake correction",
	})
	require.NoError(t, err)

	_, err = svc.MarkRecalled(ctx, recalled.ID, "supplier recall notice")
	require.NoError(t, err)

	batchRepo := repository.NewBatchRepository(suite.DB)
	scanner := service.NewExpiryScanner(batchRepo, nil, suite.Logger)

	alerts, err := scanner.ScanAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, alerts)
}

func TestExpiryScanner_ScanAllEmptyStockIsQuiet(t *testing.T) {
	svc := newStockService(t)
	createProduct(t, svc)

	batchRepo := repository.NewBatchRepository(suite.DB)
	scanner := service.NewExpiryScanner(batchRepo, nil, suite.Logger)

	alerts, err := scanner.ScanAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, alerts)
}
