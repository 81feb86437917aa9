package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-billing-reminder/internal/domain"
	"github.com/vhvplatform/go-billing-reminder/internal/repository"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/errors"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/logger"
)

// DeliveryHandler exposes the delivery ledger over HTTP
type DeliveryHandler struct {
	deliveries *repository.DeliveryRepository
	log        *logger.Logger
}

// NewDeliveryHandler creates a new delivery handler
func NewDeliveryHandler(deliveries *repository.DeliveryRepository, log *logger.Logger) *DeliveryHandler {
	return &DeliveryHandler{
		deliveries: deliveries,
		log:        log,
	}
}

// ListDeliveries lists a tenant's delivery records
func (h *DeliveryHandler) ListDeliveries(c *gin.Context) {
	var req domain.GetDeliveriesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 200 {
		req.PageSize = 50
	}

	records, total, err := h.deliveries.FindByTenantID(c.Request.Context(), req.TenantID, req.Page, req.PageSize)
	if err != nil {
		h.log.Error("Failed to list deliveries", "error", err, "tenant_id", req.TenantID)
		c.JSON(http.StatusInternalServerError, errors.NewInternalError("Failed to list deliveries", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      records,
		"total":     total,
		"page":      req.Page,
		"page_size": req.PageSize,
	})
}
