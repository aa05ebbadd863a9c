package handler

import (
	"net/http"
	"time"

	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/repository"
	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/service"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/errors"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/httputil"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/logger"
)

// MovementHandler handles ledger queries
type MovementHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewMovementHandler creates a new movement handler
func NewMovementHandler(svc *service.StockService, log *logger.Logger) *MovementHandler {
	return &MovementHandler{
		service: svc,
		logger:  log,
	}
}

// List queries the movement ledger with optional filters
func (h *MovementHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := repository.MovementFilter{
		ProductID: q.Get("product_id"),
		BatchID:   q.Get("batch_id"),
	}

	if mt := q.Get("movement_type"); mt != "" {
		movementType := repository.MovementType(mt)
		if !movementType.Valid() {
			httputil.Error(w, errors.BadRequest("unknown movement_type "+mt))
			return
		}
		filter.MovementType = movementType
	}

	if from := q.Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			httputil.Error(w, errors.BadRequest("from must be RFC3339"))
			return
		}
		filter.From = &t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			httputil.Error(w, errors.BadRequest("to must be RFC3339"))
			return
		}
		filter.To = &t
	}

	page, perPage := pagination(r)

	movements, total, err := h.service.Movements(r.Context(), filter, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, movements, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages(total, perPage),
	})
}
