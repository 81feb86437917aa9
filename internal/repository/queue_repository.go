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

const queueCollection = "queue_entries"

// QueueRepository handles queue entry data operations
type QueueRepository struct {
	client *mongodb.MongoClient
}

// NewQueueRepository creates a new queue repository
func NewQueueRepository(client *mongodb.MongoClient) *QueueRepository {
	return &QueueRepository{client: client}
}

// EnsureIndexes creates necessary indexes. The unique index over
// (customer_id, template_id, day_key) is what makes the daily build and
// the backfill idempotent.
func (r *QueueRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "customer_id", Value: 1},
				{Key: "template_id", Value: 1},
				{Key: "day_key", Value: 1},
			},
			Options: options.Index().SetName("dedup_idx").SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "processed", Value: 1},
				{Key: "scheduled_for", Value: 1},
			},
			Options: options.Index().SetName("dispatch_idx"),
		},
		{
			Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "processed", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("tenant_processed_idx"),
		},
	}

	return r.client.CreateIndexes(ctx, queueCollection, indexes)
}

// InsertIfAbsent inserts a queue entry unless one already exists for the
// same (customer, template, day). Returns true when the entry was inserted.
func (r *QueueRepository) InsertIfAbsent(ctx context.Context, entry *domain.QueueEntry) (bool, error) {
	entry.CreatedAt = time.Now().UTC()

	filter := bson.M{
		"customer_id": entry.CustomerID,
		"template_id": entry.TemplateID,
		"day_key":     entry.DayKey,
	}
	update := bson.M{"$setOnInsert": bson.M{
		"customer_id":   entry.CustomerID,
		"template_id":   entry.TemplateID,
		"tenant_id":     entry.TenantID,
		"phone":         entry.Phone,
		"message":       entry.Message,
		"category":      entry.Category,
		"day_key":       entry.DayKey,
		"scheduled_for": entry.ScheduledFor,
		"processed":     false,
		"attempts":      0,
		"created_at":    entry.CreatedAt,
	}}

	result, err := r.client.Collection(queueCollection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return false, err
	}
	if result.UpsertedCount == 0 {
		return false, nil
	}
	if id, ok := result.UpsertedID.(primitive.ObjectID); ok {
		entry.ID = id
	}
	return true, nil
}

// FindByID finds a queue entry by ID with tenant isolation
func (r *QueueRepository) FindByID(ctx context.Context, id string, tenantID string) (*domain.QueueEntry, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var entry domain.QueueEntry
	filter := bson.M{
		"_id":       objectID,
		"tenant_id": tenantID,
	}
	err = r.client.Collection(queueCollection).FindOne(ctx, filter).Decode(&entry)
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// ListDue returns unprocessed, unclaimed entries whose send time has
// arrived, oldest first.
func (r *QueueRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.QueueEntry, error) {
	filter := bson.M{
		"processed":     false,
		"claimed_at":    nil,
		"scheduled_for": bson.M{"$lte": now},
	}
	opts := options.Find().
		SetSort(bson.M{"scheduled_for": 1}).
		SetLimit(int64(limit))

	cursor, err := r.client.Collection(queueCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []*domain.QueueEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}

// Claim marks an entry as in-flight. Returns false when another worker
// already claimed or processed it.
func (r *QueueRepository) Claim(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	filter := bson.M{
		"_id":        id,
		"processed":  false,
		"claimed_at": nil,
	}
	update := bson.M{"$set": bson.M{"claimed_at": now}}

	result, err := r.client.Collection(queueCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount == 1, nil
}

// MarkProcessed records the terminal outcome of a claimed entry
func (r *QueueRepository) MarkProcessed(ctx context.Context, id primitive.ObjectID, outcome domain.Outcome, errMsg string, attempts int, now time.Time) error {
	filter := bson.M{"_id": id}
	update := bson.M{"$set": bson.M{
		"processed":    true,
		"outcome":      outcome,
		"error":        errMsg,
		"attempts":     attempts,
		"processed_at": now,
	}}

	_, err := r.client.Collection(queueCollection).UpdateOne(ctx, filter, update)
	return err
}

// FindByTenantID lists a tenant's queue entries with optimized pagination.
// customerID narrows to one customer when non-empty; processed filters by
// state when non-nil.
func (r *QueueRepository) FindByTenantID(ctx context.Context, tenantID, customerID string, processed *bool, page, pageSize int) ([]*domain.QueueEntry, int64, error) {
	filter := bson.M{"tenant_id": tenantID}
	if customerID != "" {
		objectID, err := primitive.ObjectIDFromHex(customerID)
		if err != nil {
			return nil, 0, err
		}
		filter["customer_id"] = objectID
	}
	if processed != nil {
		filter["processed"] = *processed
	}

	skip := (page - 1) * pageSize

	// Use aggregation pipeline for efficient count + results in one query
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$facet", Value: bson.M{
			"metadata": bson.A{bson.M{"$count": "total"}},
			"data": bson.A{
				bson.M{"$sort": bson.M{"created_at": -1}},
				bson.M{"$skip": skip},
				bson.M{"$limit": pageSize},
			},
		}}},
	}

	cursor, err := r.client.Collection(queueCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	type Result struct {
		Metadata []struct {
			Total int64 `bson:"total"`
		} `bson:"metadata"`
		Data []*domain.QueueEntry `bson:"data"`
	}

	var results []Result
	if err = cursor.All(ctx, &results); err != nil {
		return nil, 0, err
	}

	if len(results) == 0 || len(results[0].Data) == 0 {
		return []*domain.QueueEntry{}, 0, nil
	}

	total := int64(0)
	if len(results[0].Metadata) > 0 {
		total = results[0].Metadata[0].Total
	}

	return results[0].Data, total, nil
}

// DeletePendingForCustomer removes a customer's unprocessed entries in
// the given categories. Used when a renewal cancels billing reminders.
func (r *QueueRepository) DeletePendingForCustomer(ctx context.Context, customerID primitive.ObjectID, categories []domain.Category) (int64, error) {
	filter := bson.M{
		"customer_id": customerID,
		"processed":   false,
		"category":    bson.M{"$in": categories},
	}

	result, err := r.client.Collection(queueCollection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// DeleteOnePending removes a single unprocessed entry with tenant isolation
func (r *QueueRepository) DeleteOnePending(ctx context.Context, id string, tenantID string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	filter := bson.M{
		"_id":       objectID,
		"tenant_id": tenantID,
		"processed": false,
	}
	result, err := r.client.Collection(queueCollection).DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// DeletePendingForCustomers removes all unprocessed entries belonging to
// the given customers. Used by cleanup for deactivated customers.
func (r *QueueRepository) DeletePendingForCustomers(ctx context.Context, customerIDs []primitive.ObjectID) (int64, error) {
	if len(customerIDs) == 0 {
		return 0, nil
	}

	filter := bson.M{
		"customer_id": bson.M{"$in": customerIDs},
		"processed":   false,
	}

	result, err := r.client.Collection(queueCollection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// PurgeProcessedBefore removes processed entries older than the cutoff
func (r *QueueRepository) PurgeProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := bson.M{
		"processed":    true,
		"processed_at": bson.M{"$lt": cutoff},
	}

	result, err := r.client.Collection(queueCollection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
