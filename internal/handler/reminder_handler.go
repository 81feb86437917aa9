package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-billing-reminder/internal/domain"
	"github.com/vhvplatform/go-billing-reminder/internal/repository"
	"github.com/vhvplatform/go-billing-reminder/internal/scheduler"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/errors"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/logger"
)

// ReminderHandler exposes manual send operations
type ReminderHandler struct {
	scheduler *scheduler.Scheduler
	tenants   *repository.TenantRepository
	log       *logger.Logger
}

// NewReminderHandler creates a new reminder handler
func NewReminderHandler(sched *scheduler.Scheduler, tenants *repository.TenantRepository, log *logger.Logger) *ReminderHandler {
	return &ReminderHandler{
		scheduler: sched,
		tenants:   tenants,
		log:       log,
	}
}

// SendNow sends a message to one customer immediately
func (h *ReminderHandler) SendNow(c *gin.Context) {
	var req domain.SendNowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	record, err := h.scheduler.SendNow(c.Request.Context(), &req)
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			status := http.StatusBadRequest
			if appErr.Code == "NOT_FOUND" {
				status = http.StatusNotFound
			}
			c.JSON(status, appErr)
			return
		}
		h.log.Error("Failed to send message", "error", err, "tenant_id", req.TenantID, "customer_id", req.CustomerID)
		c.JSON(http.StatusBadGateway, errors.NewInternalError("Failed to send message", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Message sent successfully",
		"external_id": record.ExternalID,
	})
}

// ProcessOverdue messages every overdue customer of a tenant
func (h *ReminderHandler) ProcessOverdue(c *gin.Context) {
	var req domain.OverdueSweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	sent, err := h.scheduler.ProcessAllOverdue(c.Request.Context(), &req)
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			c.JSON(http.StatusBadRequest, appErr)
			return
		}
		h.log.Error("Failed to process overdue customers", "error", err, "tenant_id", req.TenantID)
		c.JSON(http.StatusInternalServerError, errors.NewInternalError("Failed to process overdue customers", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Overdue sweep complete",
		"sent":    sent,
	})
}

// SendDigest sends a tenant's daily digest immediately
func (h *ReminderHandler) SendDigest(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("tenant_id is required", nil))
		return
	}

	tenant, err := h.tenants.FindByTenantID(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusNotFound, errors.NewNotFoundError("Tenant not found", err))
		return
	}
	if tenant.NotifyPhone == "" {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Tenant has no notification phone", nil))
		return
	}

	if err := h.scheduler.SendDigest(c.Request.Context(), tenant); err != nil {
		h.log.Error("Failed to send digest", "error", err, "tenant_id", tenantID)
		c.JSON(http.StatusBadGateway, errors.NewInternalError("Failed to send digest", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Digest sent successfully",
	})
}
