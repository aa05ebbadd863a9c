package handler

import (
	"net/http"
	"time"

	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/service"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/errors"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/httputil"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/logger"
)

// ReportHandler handles read-only reporting endpoints
type ReportHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(svc *service.StockService, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		service: svc,
		logger:  log,
	}
}

// Expiry returns the expiry classification report. An optional product_id
// query parameter narrows it to one product; as_of (YYYY-MM-DD) shifts the
// reference date, defaulting to today.
func (h *ReportHandler) Expiry(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	asOf := time.Now().UTC()
	if s := q.Get("as_of"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			httputil.Error(w, errors.BadRequest("as_of must be YYYY-MM-DD"))
			return
		}
		asOf = t
	}

	var report *service.ExpiryReport
	var err error
	if productID := q.Get("product_id"); productID != "" {
		report, err = h.service.ExpiryReportForProduct(r.Context(), productID, asOf)
	} else {
		report, err = h.service.ExpiryReportAll(r.Context(), asOf)
	}
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}

// DashboardStats returns aggregate stock statistics
func (h *ReportHandler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetDashboardStats(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stats)
}
