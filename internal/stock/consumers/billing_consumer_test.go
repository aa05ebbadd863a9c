package consumers

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/repository"
	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/service"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/logger"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/messaging"
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

func newBillingConsumer(t *testing.T) (*BillingConsumer, *service.StockService) {
	t.Helper()
	suite.ResetStockTables(t, context.Background())

	productRepo := repository.NewProductRepository(suite.DB)
	batchRepo := repository.NewBatchRepository(suite.DB)
	movementRepo := repository.NewMovementRepository(suite.DB)
	log := logger.New("test", "test")

	svc := service.NewStockService(suite.DB, productRepo, batchRepo, movementRepo, nil, 3*time.Second, log)
	return &BillingConsumer{service: svc, logger: log}, svc
}

func seedStock(t *testing.T, svc *service.StockService, qty int) *repository.Product {
	t.Helper()
	ctx := context.Background()

	p := suite.Fixtures.Product()
	require.NoError(t, svc.CreateProduct(ctx, p))

	now := time.Now().UTC().Truncate(24 * time.Hour)
	_, err := svc.Receive(ctx, service.ReceiveInput{
		ProductID:    p.ID,
		ExpiryDate:   now.AddDate(0, 0, 90),
		ReceivedDate: now,
		Quantity:     qty,
		UnitCost:     decimal.NewFromInt(2),
	})
	require.NoError(t, err)
	return p
}

func invoicePaidEvent(t *testing.T, invoiceID string, lines ...messaging.InvoiceLineItem) *messaging.Event {
	t.Helper()
	event, err := messaging.NewEvent(messaging.EventInvoicePaid, "billing-service", "", messaging.InvoicePaidEvent{
		InvoiceID: invoiceID,
		StaffID:   "staff-1",
		StaffName: "Dr. Vega",
		LineItems: lines,
	})
	require.NoError(t, err)
	return event
}

func soldQuantity(t *testing.T, svc *service.StockService, productID string) int {
	t.Helper()
	movements, _, err := svc.Movements(context.Background(), repository.MovementFilter{
		ProductID:    productID,
		MovementType: repository.MovementSale,
	}, 1, 100)
	require.NoError(t, err)

	sold := 0
	for _, m := range movements {
		sold += -m.QuantityDelta
	}
	return sold
}

func TestHandleInvoicePaid_AllocatesEachProduct(t *testing.T) {
	ctx := context.Background()
	consumer, svc := newBillingConsumer(t)

	p1 := seedStock(t, svc, 50)
	p2 := seedStock(t, svc, 50)

	event := invoicePaidEvent(t, "invoice-100",
		messaging.InvoiceLineItem{ProductID: p1.ID, Quantity: 10},
		messaging.InvoiceLineItem{ProductID: p2.ID, Quantity: 20},
	)
	require.NoError(t, consumer.handleInvoicePaid(ctx, event))

	got1, err := svc.GetProduct(ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got1.TotalStock)

	got2, err := svc.GetProduct(ctx, p2.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, got2.TotalStock)
}

func TestHandleInvoicePaid_CombinesDuplicateProductLines(t *testing.T) {
	ctx := context.Background()
	consumer, svc := newBillingConsumer(t)

	p := seedStock(t, svc, 30)

	// Two lines for the same product must both be honored, not deduplicated
	// by the per-invoice idempotency check.
	event := invoicePaidEvent(t, "invoice-101",
		messaging.InvoiceLineItem{ProductID: p.ID, Quantity: 10},
		messaging.InvoiceLineItem{ProductID: p.ID, Quantity: 5},
	)
	require.NoError(t, consumer.handleInvoicePaid(ctx, event))

	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, got.TotalStock)
	assert.Equal(t, 15, soldQuantity(t, svc, p.ID))
}

func TestHandleInvoicePaid_RedeliveryAllocatesOnce(t *testing.T) {
	ctx := context.Background()
	consumer, svc := newBillingConsumer(t)

	p := seedStock(t, svc, 30)

	event := invoicePaidEvent(t, "invoice-102",
		messaging.InvoiceLineItem{ProductID: p.ID, Quantity: 10},
		messaging.InvoiceLineItem{ProductID: p.ID, Quantity: 5},
	)
	require.NoError(t, consumer.handleInvoicePaid(ctx, event))
	require.NoError(t, consumer.handleInvoicePaid(ctx, event))

	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, got.TotalStock)
	assert.Equal(t, 15, soldQuantity(t, svc, p.ID))
}

func TestHandleInvoicePaid_InsufficientStockIsAcked(t *testing.T) {
	ctx := context.Background()
	consumer, svc := newBillingConsumer(t)

	p := seedStock(t, svc, 5)

	event := invoicePaidEvent(t, "invoice-103",
		messaging.InvoiceLineItem{ProductID: p.ID, Quantity: 50},
	)
	// A shortage is acked, not requeued: retrying cannot create stock
	require.NoError(t, consumer.handleInvoicePaid(ctx, event))

	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.TotalStock)
	assert.Equal(t, 0, soldQuantity(t, svc, p.ID))
}
