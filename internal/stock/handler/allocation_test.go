package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/handler"
	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/repository"
	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/service"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/httputil"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/logger"
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

func newTestService(t *testing.T) *service.StockService {
	t.Helper()
	suite.ResetStockTables(t, context.Background())

	productRepo := repository.NewProductRepository(suite.DB)
	batchRepo := repository.NewBatchRepository(suite.DB)
	movementRepo := repository.NewMovementRepository(suite.DB)
	log := logger.New("test", "test")

	// No event publisher needed for handler tests
	return service.NewStockService(suite.DB, productRepo, batchRepo, movementRepo, nil, 3*time.Second, log)
}

func newTestRouter(svc *service.StockService) *chi.Mux {
	log := logger.New("test", "test")
	allocationHandler := handler.NewAllocationHandler(svc, log)
	batchHandler := handler.NewBatchHandler(svc, log)

	r := chi.NewRouter()
	r.Use(httputil.ActorMiddleware)
	r.Post("/api/v1/stock/products/{id}/allocate", allocationHandler.Allocate)
	r.Post("/api/v1/stock/products/{id}/batches", batchHandler.Receive)
	return r
}

func seedProductWithStock(t *testing.T, svc *service.StockService, qty int) *repository.Product {
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
		UnitCost:     decimal.NewFromInt(3),
	})
	require.NoError(t, err)
	return p
}

func doJSON(t *testing.T, router *chi.Mux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "7b7e2b44-9c70-4e2f-9f57-2f9f1f0a9a01")
	req.Header.Set("X-User-Name", "Test Vet")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAllocateEndpoint_Success(t *testing.T) {
	svc := newTestService(t)
	router := newTestRouter(svc)
	product := seedProductWithStock(t, svc, 100)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/stock/products/"+product.ID+"/allocate",
		map[string]any{"quantity": 40, "reference_id": "invoice-77"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Success bool                     `json:"success"`
		Data    service.AllocationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 40, resp.Data.Quantity)
	require.Len(t, resp.Data.Lines, 1)
	assert.Equal(t, 40, resp.Data.Lines[0].QuantityTaken)
}

func TestAllocateEndpoint_InsufficientStockIs409(t *testing.T) {
	svc := newTestService(t)
	router := newTestRouter(svc)
	product := seedProductWithStock(t, svc, 10)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/stock/products/"+product.ID+"/allocate",
		map[string]any{"quantity": 11})

	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "INSUFFICIENT_STOCK", resp.Error.Code)
	assert.Equal(t, "10", resp.Error.Details["available"])
}

func TestAllocateEndpoint_ValidationIs400(t *testing.T) {
	svc := newTestService(t)
	router := newTestRouter(svc)
	product := seedProductWithStock(t, svc, 10)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/stock/products/"+product.ID+"/allocate",
		map[string]any{"quantity": -3})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReceiveEndpoint_CreatesBatch(t *testing.T) {
	svc := newTestService(t)
	router := newTestRouter(svc)

	p := suite.Fixtures.Product()
	require.NoError(t, svc.CreateProduct(context.Background(), p))

	expiry := time.Now().UTC().AddDate(0, 0, 120).Format("2006-01-02")
	rec := doJSON(t, router, http.MethodPost, "/api/v1/stock/products/"+p.ID+"/batches",
		map[string]any{
			"lot_number":  "LOT-9001",
			"expiry_date": expiry,
			"quantity":    25,
			"unit_cost":   "1.80",
		})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data repository.Batch `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 25, resp.Data.QuantityOnHand)
	assert.Equal(t, repository.BatchActive, resp.Data.Status)
}

func TestReceiveEndpoint_BadDateIs400(t *testing.T) {
	svc := newTestService(t)
	router := newTestRouter(svc)

	p := suite.Fixtures.Product()
	require.NoError(t, svc.CreateProduct(context.Background(), p))

	rec := doJSON(t, router, http.MethodPost, "/api/v1/stock/products/"+p.ID+"/batches",
		map[string]any{"expiry_date": "31-12-2026", "quantity": 5})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
