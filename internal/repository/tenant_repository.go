package repository

import (
	"context"

	"github.com/vhvplatform/go-billing-reminder/internal/domain"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const tenantsCollection = "tenants"

// TenantRepository handles tenant data operations
type TenantRepository struct {
	client *mongodb.MongoClient
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(client *mongodb.MongoClient) *TenantRepository {
	return &TenantRepository{client: client}
}

// EnsureIndexes creates necessary indexes for optimal query performance
func (r *TenantRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}},
			Options: options.Index().SetName("tenant_id_idx").SetUnique(true),
		},
	}

	return r.client.CreateIndexes(ctx, tenantsCollection, indexes)
}

// FindByTenantID finds a tenant by its identifier
func (r *TenantRepository) FindByTenantID(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	filter := bson.M{"tenant_id": tenantID}
	err := r.client.Collection(tenantsCollection).FindOne(ctx, filter).Decode(&tenant)
	if err != nil {
		return nil, err
	}

	return &tenant, nil
}

// ListActive returns every active tenant
func (r *TenantRepository) ListActive(ctx context.Context) ([]*domain.Tenant, error) {
	filter := bson.M{"active": true}
	cursor, err := r.client.Collection(tenantsCollection).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tenants []*domain.Tenant
	if err = cursor.All(ctx, &tenants); err != nil {
		return nil, err
	}

	return tenants, nil
}
