package repository

import (
	"context"

	"github.com/vhvplatform/go-billing-reminder/internal/domain"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const customersCollection = "customers"

// CustomerRepository handles customer data operations
type CustomerRepository struct {
	client *mongodb.MongoClient
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(client *mongodb.MongoClient) *CustomerRepository {
	return &CustomerRepository{client: client}
}

// EnsureIndexes creates necessary indexes for optimal query performance
func (r *CustomerRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "active", Value: 1},
			},
			Options: options.Index().SetName("tenant_active_idx"),
		},
		{
			Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "expiration", Value: 1},
			},
			Options: options.Index().SetName("tenant_expiration_idx"),
		},
	}

	return r.client.CreateIndexes(ctx, customersCollection, indexes)
}

// FindByID finds a customer by ID with tenant isolation
func (r *CustomerRepository) FindByID(ctx context.Context, id string, tenantID string) (*domain.Customer, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var customer domain.Customer
	filter := bson.M{
		"_id":       objectID,
		"tenant_id": tenantID,
	}
	err = r.client.Collection(customersCollection).FindOne(ctx, filter).Decode(&customer)
	if err != nil {
		return nil, err
	}

	return &customer, nil
}

// ListActiveByTenant returns every active customer of a tenant
func (r *CustomerRepository) ListActiveByTenant(ctx context.Context, tenantID string) ([]*domain.Customer, error) {
	filter := bson.M{
		"tenant_id": tenantID,
		"active":    true,
	}
	cursor, err := r.client.Collection(customersCollection).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var customers []*domain.Customer
	if err = cursor.All(ctx, &customers); err != nil {
		return nil, err
	}

	return customers, nil
}

// ListInactiveIDs returns the IDs of every inactive customer across all
// tenants. Used by the nightly cleanup to drop their pending entries.
func (r *CustomerRepository) ListInactiveIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	filter := bson.M{"active": false}
	opts := options.Find().SetProjection(bson.M{"_id": 1})

	cursor, err := r.client.Collection(customersCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}
