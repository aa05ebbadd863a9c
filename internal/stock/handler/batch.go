package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/repository"
	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/service"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/errors"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/httputil"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/logger"
)

// BatchHandler handles batch endpoints: receiving, adjustment and status
// transitions
type BatchHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(svc *service.StockService, log *logger.Logger) *BatchHandler {
	return &BatchHandler{
		service: svc,
		logger:  log,
	}
}

type receiveRequest struct {
	LotNumber    string `json:"lot_number" validate:"max=64"`
	ExpiryDate   string `json:"expiry_date" validate:"required"`
	ReceivedDate string `json:"received_date"`
	Quantity     int    `json:"quantity" validate:"required,gt=0"`
	UnitCost     string `json:"unit_cost"`
	ReferenceID  string `json:"reference_id" validate:"max=128"`
}

// Receive records a new batch against a product
func (h *BatchHandler) Receive(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	var req receiveRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	expiry, err := time.Parse("2006-01-02", req.ExpiryDate)
	if err != nil {
		httputil.Error(w, errors.BadRequest("expiry_date must be YYYY-MM-DD"))
		return
	}

	var received time.Time
	if req.ReceivedDate != "" {
		received, err = time.Parse("2006-01-02", req.ReceivedDate)
		if err != nil {
			httputil.Error(w, errors.BadRequest("received_date must be YYYY-MM-DD"))
			return
		}
	}

	cost := decimal.Zero
	if req.UnitCost != "" {
		cost, err = decimal.NewFromString(req.UnitCost)
		if err != nil || cost.IsNegative() {
			httputil.Error(w, errors.BadRequest("unit_cost must be a non-negative decimal"))
			return
		}
	}

	batch, err := h.service.Receive(r.Context(), service.ReceiveInput{
		ProductID:    productID,
		LotNumber:    req.LotNumber,
		ExpiryDate:   expiry,
		ReceivedDate: received,
		Quantity:     req.Quantity,
		UnitCost:     cost,
		ReferenceID:  req.ReferenceID,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, batch)
}

// ListByProduct lists a product's batches
func (h *BatchHandler) ListByProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	batches, err := h.service.ListBatches(r.Context(), productID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// Get gets a batch by ID
func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	batch, err := h.service.GetBatch(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

// History returns the full movement chain for a batch, oldest first
func (h *BatchHandler) History(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	movements, err := h.service.BatchHistory(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, movements)
}

// VerifyChain audits a batch's movement chain against its current quantity
func (h *BatchHandler) VerifyChain(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	report, err := h.service.VerifyChain(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}

type adjustRequest struct {
	MovementType  string `json:"movement_type" validate:"required,oneof=adjustment expiry_writeoff"`
	QuantityDelta int    `json:"quantity_delta" validate:"required"`
	Reason        string `json:"reason" validate:"required,max=500"`
	ReferenceID   string `json:"reference_id" validate:"max=128"`
}

// Adjust applies a signed correction to a batch
func (h *BatchHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")

	var req adjustRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	batch, err := h.service.Adjust(r.Context(), service.AdjustInput{
		BatchID:       batchID,
		MovementType:  repository.MovementType(req.MovementType),
		QuantityDelta: req.QuantityDelta,
		Reason:        req.Reason,
		ReferenceID:   req.ReferenceID,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=expired recalled"`
	Reason string `json:"reason" validate:"required,max=500"`
}

// SetStatus transitions an active batch to expired or recalled
func (h *BatchHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")

	var req statusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	var batch *repository.Batch
	var err error
	switch repository.BatchStatus(req.Status) {
	case repository.BatchExpired:
		batch, err = h.service.MarkExpired(r.Context(), batchID, req.Reason)
	case repository.BatchRecalled:
		batch, err = h.service.MarkRecalled(r.Context(), batchID, req.Reason)
	}
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}
