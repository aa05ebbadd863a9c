package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/service"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/httputil"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/logger"
)

// AllocationHandler handles stock allocation
type AllocationHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewAllocationHandler creates a new allocation handler
func NewAllocationHandler(svc *service.StockService, log *logger.Logger) *AllocationHandler {
	return &AllocationHandler{
		service: svc,
		logger:  log,
	}
}

type allocateRequest struct {
	Quantity    int    `json:"quantity" validate:"required,gt=0"`
	ReferenceID string `json:"reference_id" validate:"max=128"`
}

// Allocate allocates stock from a product's batches
func (h *AllocationHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	var req allocateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.Allocate(r.Context(), productID, req.Quantity, req.ReferenceID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}
