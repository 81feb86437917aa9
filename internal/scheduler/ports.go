package scheduler

import (
	"context"
	"time"

	"github.com/vhvplatform/go-billing-reminder/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// The scheduler depends on narrow store interfaces so its logic can be
// tested against in-memory fakes. The Mongo repositories satisfy them.

// CustomerStore provides customer lookups
type CustomerStore interface {
	FindByID(ctx context.Context, id string, tenantID string) (*domain.Customer, error)
	ListActiveByTenant(ctx context.Context, tenantID string) ([]*domain.Customer, error)
	ListInactiveIDs(ctx context.Context) ([]primitive.ObjectID, error)
}

// TenantStore provides tenant lookups
type TenantStore interface {
	ListActive(ctx context.Context) ([]*domain.Tenant, error)
	FindByTenantID(ctx context.Context, tenantID string) (*domain.Tenant, error)
}

// TemplateStore resolves message templates per tenant and category
type TemplateStore interface {
	FindByCategory(ctx context.Context, tenantID string, category domain.Category) (*domain.MessageTemplate, error)
	IncrementUsage(ctx context.Context, id primitive.ObjectID) error
}

// QueueStore is the durable notification queue
type QueueStore interface {
	InsertIfAbsent(ctx context.Context, entry *domain.QueueEntry) (bool, error)
	FindByID(ctx context.Context, id string, tenantID string) (*domain.QueueEntry, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.QueueEntry, error)
	Claim(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error)
	MarkProcessed(ctx context.Context, id primitive.ObjectID, outcome domain.Outcome, errMsg string, attempts int, now time.Time) error
	DeletePendingForCustomer(ctx context.Context, customerID primitive.ObjectID, categories []domain.Category) (int64, error)
	DeletePendingForCustomers(ctx context.Context, customerIDs []primitive.ObjectID) (int64, error)
	DeleteOnePending(ctx context.Context, id string, tenantID string) error
	PurgeProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// DeliveryStore is the append-only delivery ledger
type DeliveryStore interface {
	Append(ctx context.Context, record *domain.DeliveryRecord) error
	SentToday(ctx context.Context, customerID primitive.ObjectID, dayKey string) (bool, error)
	DigestSentToday(ctx context.Context, tenantID string, dayKey string) (bool, error)
}

// SettingsStore resolves tenant settings with global fallback
type SettingsStore interface {
	Get(ctx context.Context, tenantID, key string) (string, bool, error)
}

// SendGateway delivers one message through the messaging gateway
type SendGateway interface {
	Send(ctx context.Context, session, phone, message string) (string, error)
}

// MessageRenderer fills template placeholders for a customer
type MessageRenderer interface {
	Render(body string, c *domain.Customer, now time.Time) string
}
