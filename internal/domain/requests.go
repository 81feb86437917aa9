package domain

// SendNowRequest represents a request to send a reminder immediately,
// bypassing the queue. When Message is empty the category template is
// rendered for the customer.
type SendNowRequest struct {
	TenantID   string `json:"tenant_id" binding:"required"`
	CustomerID string `json:"customer_id" binding:"required"`
	Message    string `json:"message,omitempty"`
}

// OverdueSweepRequest represents a request to message every overdue
// customer of a tenant. Force bypasses the already-sent-today check.
type OverdueSweepRequest struct {
	TenantID string `json:"tenant_id" binding:"required"`
	Force    bool   `json:"force"`
}

// CancelPendingRequest represents a request to drop a customer's
// pending billing reminders
type CancelPendingRequest struct {
	TenantID   string `json:"tenant_id" binding:"required"`
	CustomerID string `json:"customer_id" binding:"required"`
}

// GetQueueRequest represents a request to list queue entries
type GetQueueRequest struct {
	TenantID   string `form:"tenant_id" binding:"required"`
	CustomerID string `form:"customer_id"`
	Processed  *bool  `form:"processed"`
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
}

// GetDeliveriesRequest represents a request to list delivery records
type GetDeliveriesRequest struct {
	TenantID string `form:"tenant_id" binding:"required"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}
