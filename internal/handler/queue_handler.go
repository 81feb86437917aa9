package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-billing-reminder/internal/domain"
	"github.com/vhvplatform/go-billing-reminder/internal/repository"
	"github.com/vhvplatform/go-billing-reminder/internal/scheduler"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/errors"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/logger"
	"go.mongodb.org/mongo-driver/mongo"
)

// QueueHandler exposes the reminder queue over HTTP
type QueueHandler struct {
	scheduler *scheduler.Scheduler
	queue     *repository.QueueRepository
	log       *logger.Logger
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(sched *scheduler.Scheduler, queue *repository.QueueRepository, log *logger.Logger) *QueueHandler {
	return &QueueHandler{
		scheduler: sched,
		queue:     queue,
		log:       log,
	}
}

// ListQueue lists a tenant's queue entries
func (h *QueueHandler) ListQueue(c *gin.Context) {
	var req domain.GetQueueRequest
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

	entries, total, err := h.queue.FindByTenantID(c.Request.Context(), req.TenantID, req.CustomerID, req.Processed, req.Page, req.PageSize)
	if err != nil {
		h.log.Error("Failed to list queue", "error", err, "tenant_id", req.TenantID)
		c.JSON(http.StatusInternalServerError, errors.NewInternalError("Failed to list queue", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      entries,
		"total":     total,
		"page":      req.Page,
		"page_size": req.PageSize,
	})
}

// GetEntry retrieves a single queue entry
func (h *QueueHandler) GetEntry(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("tenant_id is required", nil))
		return
	}

	entry, err := h.queue.FindByID(c.Request.Context(), c.Param("id"), tenantID)
	if err != nil {
		c.JSON(http.StatusNotFound, errors.NewNotFoundError("Queue entry not found", err))
		return
	}

	c.JSON(http.StatusOK, entry)
}

// CancelEntry removes one pending queue entry
func (h *QueueHandler) CancelEntry(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("tenant_id is required", nil))
		return
	}

	if err := h.scheduler.CancelOne(c.Request.Context(), tenantID, c.Param("id")); err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, errors.NewNotFoundError("Pending queue entry not found", nil))
			return
		}
		h.log.Error("Failed to cancel queue entry", "error", err, "tenant_id", tenantID, "id", c.Param("id"))
		c.JSON(http.StatusInternalServerError, errors.NewInternalError("Failed to cancel queue entry", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Queue entry cancelled",
	})
}

// SendEntry dispatches one pending queue entry immediately
func (h *QueueHandler) SendEntry(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("tenant_id is required", nil))
		return
	}

	outcome, err := h.scheduler.SendEntryNow(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			status := http.StatusBadRequest
			if appErr.Code == "NOT_FOUND" {
				status = http.StatusNotFound
			}
			c.JSON(status, appErr)
			return
		}
		h.log.Error("Failed to send queue entry", "error", err, "tenant_id", tenantID, "id", c.Param("id"))
		c.JSON(http.StatusInternalServerError, errors.NewInternalError("Failed to send queue entry", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Queue entry dispatched",
		"outcome": outcome,
	})
}

// CancelCustomer removes a customer's pending billing reminders
func (h *QueueHandler) CancelCustomer(c *gin.Context) {
	var req domain.CancelPendingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	removed, err := h.scheduler.CancelPending(c.Request.Context(), req.TenantID, req.CustomerID)
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok && appErr.Code == "NOT_FOUND" {
			c.JSON(http.StatusNotFound, appErr)
			return
		}
		h.log.Error("Failed to cancel pending reminders", "error", err, "tenant_id", req.TenantID)
		c.JSON(http.StatusInternalServerError, errors.NewInternalError("Failed to cancel pending reminders", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Pending reminders cancelled",
		"removed": removed,
	})
}

// Rebuild runs the queue build immediately for one tenant or for all
func (h *QueueHandler) Rebuild(c *gin.Context) {
	tenantID := c.Query("tenant_id")

	if tenantID != "" {
		if err := h.scheduler.BuildTenantQueue(c.Request.Context(), tenantID); err != nil {
			h.log.Error("Failed to rebuild queue", "error", err, "tenant_id", tenantID)
			c.JSON(http.StatusInternalServerError, errors.NewInternalError("Failed to rebuild queue", err))
			return
		}
	} else {
		h.scheduler.BuildAllQueues(c.Request.Context())
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Queue rebuild complete",
	})
}
