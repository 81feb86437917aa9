package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Category is the notification kind attached to a template and queue entry
type Category string

const (
	CategoryUpcoming Category = "upcoming"
	CategoryDueToday Category = "due_today"
	CategoryOverdue  Category = "overdue"
	CategoryWelcome  Category = "welcome"
	CategoryManual   Category = "manual"
)

// IsBilling reports whether the category is a payment notice, which is
// gated by the customer's billing opt-out rather than the general one.
func (c Category) IsBilling() bool {
	switch c {
	case CategoryUpcoming, CategoryDueToday, CategoryOverdue, CategoryManual:
		return true
	}
	return false
}

// Outcome is the terminal state of a queue entry
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeFailure          Outcome = "failure"
	OutcomeSkippedInactive  Outcome = "skipped_inactive"
	OutcomeSkippedOptedOut  Outcome = "skipped_opted_out"
	OutcomeSkippedDuplicate Outcome = "skipped_duplicate"
)

// DeliveryKind distinguishes how a message left the system
type DeliveryKind string

const (
	DeliveryAutomatic DeliveryKind = "automatic"
	DeliveryManual    DeliveryKind = "manual"
	DeliveryDigest    DeliveryKind = "digest"
)

// Customer is a subscription customer owned by a tenant
type Customer struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TenantID       string             `json:"tenant_id" bson:"tenant_id"`
	Name           string             `json:"name" bson:"name"`
	Phone          string             `json:"phone" bson:"phone"`
	Package        string             `json:"package" bson:"package"`
	Value          float64            `json:"value" bson:"value"`
	Server         string             `json:"server,omitempty" bson:"server,omitempty"`
	Expiration     time.Time          `json:"expiration" bson:"expiration"`
	Active         bool               `json:"active" bson:"active"`
	ReceiveBilling bool               `json:"receive_billing" bson:"receive_billing"`
	ReceiveNotices bool               `json:"receive_notices" bson:"receive_notices"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" bson:"updated_at"`
}

// AllowsCategory reports whether the customer accepts messages of the
// given category.
func (c *Customer) AllowsCategory(cat Category) bool {
	if cat.IsBilling() {
		return c.ReceiveBilling
	}
	return c.ReceiveNotices
}

// MessageTemplate is a notification template. TenantID "" marks the
// global default; a tenant-specific active template overrides it.
type MessageTemplate struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TenantID   string             `json:"tenant_id" bson:"tenant_id"`
	Category   Category           `json:"category" bson:"category"`
	Name       string             `json:"name" bson:"name"`
	Body       string             `json:"body" bson:"body"`
	Active     bool               `json:"active" bson:"active"`
	UsageCount int64              `json:"usage_count" bson:"usage_count"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at" bson:"updated_at"`
}

// QueueEntry is one scheduled-but-undelivered notification.
// (CustomerID, TemplateID, DayKey) is unique: the same notice is never
// queued twice for the same calendar day.
type QueueEntry struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	CustomerID   primitive.ObjectID `json:"customer_id" bson:"customer_id"`
	TemplateID   primitive.ObjectID `json:"template_id" bson:"template_id"`
	TenantID     string             `json:"tenant_id" bson:"tenant_id"`
	Phone        string             `json:"phone" bson:"phone"`
	Message      string             `json:"message" bson:"message"`
	Category     Category           `json:"category" bson:"category"`
	DayKey       string             `json:"day_key" bson:"day_key"`
	ScheduledFor time.Time          `json:"scheduled_for" bson:"scheduled_for"`
	Processed    bool               `json:"processed" bson:"processed"`
	Outcome      Outcome            `json:"outcome,omitempty" bson:"outcome,omitempty"`
	Error        string             `json:"error,omitempty" bson:"error,omitempty"`
	Attempts     int                `json:"attempts" bson:"attempts"`
	ClaimedAt    *time.Time         `json:"claimed_at,omitempty" bson:"claimed_at,omitempty"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
	ProcessedAt  *time.Time         `json:"processed_at,omitempty" bson:"processed_at,omitempty"`
}

// DeliveryRecord is one row of the append-only delivery ledger
type DeliveryRecord struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	CustomerID primitive.ObjectID `json:"customer_id,omitempty" bson:"customer_id,omitempty"`
	TemplateID primitive.ObjectID `json:"template_id,omitempty" bson:"template_id,omitempty"`
	TenantID   string             `json:"tenant_id" bson:"tenant_id"`
	Phone      string             `json:"phone" bson:"phone"`
	Message    string             `json:"message" bson:"message"`
	Category   Category           `json:"category" bson:"category"`
	Kind       DeliveryKind       `json:"kind" bson:"kind"`
	DayKey     string             `json:"day_key" bson:"day_key"`
	Success    bool               `json:"success" bson:"success"`
	Error      string             `json:"error,omitempty" bson:"error,omitempty"`
	ExternalID string             `json:"external_id,omitempty" bson:"external_id,omitempty"`
	SentAt     time.Time          `json:"sent_at" bson:"sent_at"`
}

// Tenant is an isolated account whose customers, templates and settings
// are never visible to another tenant
type Tenant struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TenantID    string             `json:"tenant_id" bson:"tenant_id"`
	Name        string             `json:"name" bson:"name"`
	NotifyPhone string             `json:"notify_phone" bson:"notify_phone"`
	Active      bool               `json:"active" bson:"active"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}

// Setting is one tenant-scoped configuration value. TenantID "" holds
// the global default.
type Setting struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TenantID  string             `json:"tenant_id" bson:"tenant_id"`
	Key       string             `json:"key" bson:"key"`
	Value     string             `json:"value" bson:"value"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

// Setting keys resolved through the settings store
const (
	SettingSendTime    = "send_time"
	SettingVerifyTime  = "verify_time"
	SettingCleanupTime = "cleanup_time"
	SettingTimezone    = "timezone"
)

// EventType identifies a customer lifecycle event from the CRUD layer
type EventType string

const (
	EventCustomerCreated EventType = "customer.created"
	EventCustomerRenewed EventType = "customer.renewed"
)

// CustomerEvent is the payload published by the CRUD layer on RabbitMQ
type CustomerEvent struct {
	Type       EventType `json:"type"`
	TenantID   string    `json:"tenant_id"`
	CustomerID string    `json:"customer_id"`
	Timestamp  time.Time `json:"timestamp"`
}
