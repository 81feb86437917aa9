package repository

import (
	"context"
	"time"

	"github.com/vhvplatform/go-billing-reminder/internal/domain"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const settingsCollection = "settings"

// SettingsRepository handles tenant-scoped settings
type SettingsRepository struct {
	client *mongodb.MongoClient
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(client *mongodb.MongoClient) *SettingsRepository {
	return &SettingsRepository{client: client}
}

// EnsureIndexes creates necessary indexes for optimal query performance
func (r *SettingsRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "key", Value: 1},
			},
			Options: options.Index().SetName("tenant_key_idx").SetUnique(true),
		},
	}

	return r.client.CreateIndexes(ctx, settingsCollection, indexes)
}

// Get resolves a setting for a tenant, falling back to the global value
// (tenant_id ""). The second return is false when neither exists.
func (r *SettingsRepository) Get(ctx context.Context, tenantID, key string) (string, bool, error) {
	value, found, err := r.get(ctx, tenantID, key)
	if err != nil || found {
		return value, found, err
	}
	if tenantID == "" {
		return "", false, nil
	}
	return r.get(ctx, "", key)
}

func (r *SettingsRepository) get(ctx context.Context, tenantID, key string) (string, bool, error) {
	var setting domain.Setting
	filter := bson.M{"tenant_id": tenantID, "key": key}
	err := r.client.Collection(settingsCollection).FindOne(ctx, filter).Decode(&setting)
	if err == mongo.ErrNoDocuments {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return setting.Value, true, nil
}

// Set upserts a setting value for a tenant
func (r *SettingsRepository) Set(ctx context.Context, tenantID, key, value string) error {
	filter := bson.M{"tenant_id": tenantID, "key": key}
	update := bson.M{"$set": bson.M{
		"value":      value,
		"updated_at": time.Now().UTC(),
	}}

	_, err := r.client.Collection(settingsCollection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}
