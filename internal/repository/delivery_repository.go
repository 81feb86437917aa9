package repository

import (
	"context"
	"time"

	"github.com/vhvplatform/go-billing-reminder/internal/domain"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const deliveriesCollection = "delivery_log"

// DeliveryRepository handles the append-only delivery ledger
type DeliveryRepository struct {
	client *mongodb.MongoClient
}

// NewDeliveryRepository creates a new delivery repository
func NewDeliveryRepository(client *mongodb.MongoClient) *DeliveryRepository {
	return &DeliveryRepository{client: client}
}

// EnsureIndexes creates necessary indexes for optimal query performance
func (r *DeliveryRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "customer_id", Value: 1},
				{Key: "day_key", Value: 1},
			},
			Options: options.Index().SetName("customer_day_idx"),
		},
		{
			Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "sent_at", Value: -1},
			},
			Options: options.Index().SetName("tenant_sent_idx"),
		},
		{
			Keys: bson.D{
				{Key: "kind", Value: 1},
				{Key: "tenant_id", Value: 1},
				{Key: "day_key", Value: 1},
			},
			Options: options.Index().SetName("kind_tenant_day_idx"),
		},
	}

	return r.client.CreateIndexes(ctx, deliveriesCollection, indexes)
}

// Append records one delivery attempt
func (r *DeliveryRepository) Append(ctx context.Context, record *domain.DeliveryRecord) error {
	record.ID = primitive.NewObjectID()
	if record.SentAt.IsZero() {
		record.SentAt = time.Now().UTC()
	}

	_, err := r.client.Collection(deliveriesCollection).InsertOne(ctx, record)
	return err
}

// SentToday reports whether the customer already received a successful
// billing message for the given day. Guards the manual overdue sweep.
func (r *DeliveryRepository) SentToday(ctx context.Context, customerID primitive.ObjectID, dayKey string) (bool, error) {
	filter := bson.M{
		"customer_id": customerID,
		"day_key":     dayKey,
		"success":     true,
		"category": bson.M{"$in": []domain.Category{
			domain.CategoryUpcoming,
			domain.CategoryDueToday,
			domain.CategoryOverdue,
			domain.CategoryManual,
		}},
	}

	count, err := r.client.Collection(deliveriesCollection).CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// DigestSentToday reports whether the tenant's daily digest already went
// out for the given day. Keeps the digest once-per-day across restarts.
func (r *DeliveryRepository) DigestSentToday(ctx context.Context, tenantID string, dayKey string) (bool, error) {
	filter := bson.M{
		"kind":      domain.DeliveryDigest,
		"tenant_id": tenantID,
		"day_key":   dayKey,
		"success":   true,
	}

	count, err := r.client.Collection(deliveriesCollection).CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByTenantID lists a tenant's delivery records with optimized pagination
func (r *DeliveryRepository) FindByTenantID(ctx context.Context, tenantID string, page, pageSize int) ([]*domain.DeliveryRecord, int64, error) {
	filter := bson.M{"tenant_id": tenantID}

	skip := (page - 1) * pageSize

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$facet", Value: bson.M{
			"metadata": bson.A{bson.M{"$count": "total"}},
			"data": bson.A{
				bson.M{"$sort": bson.M{"sent_at": -1}},
				bson.M{"$skip": skip},
				bson.M{"$limit": pageSize},
			},
		}}},
	}

	cursor, err := r.client.Collection(deliveriesCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	type Result struct {
		Metadata []struct {
			Total int64 `bson:"total"`
		} `bson:"metadata"`
		Data []*domain.DeliveryRecord `bson:"data"`
	}

	var results []Result
	if err = cursor.All(ctx, &results); err != nil {
		return nil, 0, err
	}

	if len(results) == 0 || len(results[0].Data) == 0 {
		return []*domain.DeliveryRecord{}, 0, nil
	}

	total := int64(0)
	if len(results[0].Metadata) > 0 {
		total = results[0].Metadata[0].Total
	}

	return results[0].Data, total, nil
}
