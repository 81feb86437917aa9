package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/vhvplatform/go-billing-reminder/internal/domain"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const templatesCollection = "message_templates"

// Security constants for cache
const (
	maxCacheSize    = 1000        // Maximum number of cached templates
	maxCacheKeyLen  = 512         // Maximum length of cache key
	maxTemplateSize = 1024 * 1024 // Maximum template size: 1MB
)

// TemplateCache holds cached templates with security controls
type TemplateCache struct {
	templates map[string]*domain.MessageTemplate
	mu        sync.RWMutex
	ttl       time.Duration
	entries   map[string]time.Time
	maxSize   int
}

// NewTemplateCache creates a new template cache with size limits
func NewTemplateCache(ttl time.Duration) *TemplateCache {
	return &TemplateCache{
		templates: make(map[string]*domain.MessageTemplate),
		entries:   make(map[string]time.Time),
		ttl:       ttl,
		maxSize:   maxCacheSize,
	}
}

// validateCacheKey validates cache key to prevent injection attacks
func validateCacheKey(key string) error {
	if len(key) == 0 {
		return errors.New("cache key cannot be empty")
	}
	if len(key) > maxCacheKeyLen {
		return errors.New("cache key exceeds maximum length")
	}
	if strings.ContainsAny(key, "\x00\n\r") {
		return errors.New("cache key contains invalid characters")
	}
	return nil
}

// Get retrieves a template from cache with security validation
func (c *TemplateCache) Get(key string) (*domain.MessageTemplate, bool) {
	if err := validateCacheKey(key); err != nil {
		return nil, false
	}

	c.mu.RLock()
	template, exists := c.templates[key]
	entryTime, hasEntry := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if !hasEntry || time.Since(entryTime) > c.ttl {
		c.mu.Lock()
		delete(c.templates, key)
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}

	return template, true
}

// Set stores a template in cache with security validation
func (c *TemplateCache) Set(key string, template *domain.MessageTemplate) error {
	if err := validateCacheKey(key); err != nil {
		return err
	}

	// Validate template size to prevent memory exhaustion
	if template != nil && len(template.Body) > maxTemplateSize {
		return errors.New("template size exceeds maximum allowed size")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.templates) >= c.maxSize && c.templates[key] == nil {
		c.evictOldest()
	}

	c.templates[key] = template
	c.entries[key] = time.Now()
	return nil
}

// evictOldest removes the oldest entry from cache (must be called with lock held)
func (c *TemplateCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	first := true

	for key, entryTime := range c.entries {
		if first || entryTime.Before(oldestTime) {
			oldestKey = key
			oldestTime = entryTime
			first = false
		}
	}

	if oldestKey != "" {
		delete(c.templates, oldestKey)
		delete(c.entries, oldestKey)
	}
}

// Invalidate removes a template from cache
func (c *TemplateCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.templates, key)
	delete(c.entries, key)
}

// TemplateRepository handles template data operations
type TemplateRepository struct {
	client *mongodb.MongoClient
	cache  *TemplateCache
}

// NewTemplateRepository creates a new template repository with caching
func NewTemplateRepository(client *mongodb.MongoClient) *TemplateRepository {
	return &TemplateRepository{
		client: client,
		cache:  NewTemplateCache(5 * time.Minute), // 5 minute cache TTL
	}
}

// EnsureIndexes creates necessary indexes for optimal query performance
func (r *TemplateRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "category", Value: 1},
				{Key: "active", Value: 1},
			},
			Options: options.Index().SetName("tenant_category_active_idx"),
		},
		{
			Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "name", Value: 1},
			},
			Options: options.Index().SetName("tenant_name_idx").SetUnique(true),
		},
	}

	return r.client.CreateIndexes(ctx, templatesCollection, indexes)
}

// Create creates a new template
func (r *TemplateRepository) Create(ctx context.Context, template *domain.MessageTemplate) error {
	template.ID = primitive.NewObjectID()
	template.CreatedAt = time.Now().UTC()
	template.UpdatedAt = template.CreatedAt

	_, err := r.client.Collection(templatesCollection).InsertOne(ctx, template)
	return err
}

// FindByID finds a template by ID with tenant isolation. Global templates
// (tenant_id "") are visible to every tenant.
func (r *TemplateRepository) FindByID(ctx context.Context, id string, tenantID string) (*domain.MessageTemplate, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var template domain.MessageTemplate
	filter := bson.M{
		"_id":       objectID,
		"tenant_id": bson.M{"$in": bson.A{tenantID, ""}},
	}
	err = r.client.Collection(templatesCollection).FindOne(ctx, filter).Decode(&template)
	if err != nil {
		return nil, err
	}

	return &template, nil
}

// FindByCategory resolves the active template for a category, preferring
// the tenant's own template over the global default. Results are cached.
func (r *TemplateRepository) FindByCategory(ctx context.Context, tenantID string, category domain.Category) (*domain.MessageTemplate, error) {
	cacheKey := "tenant:" + tenantID + ":category:" + string(category)
	if template, found := r.cache.Get(cacheKey); found {
		return template, nil
	}

	template, err := r.findActive(ctx, tenantID, category)
	if err == mongo.ErrNoDocuments && tenantID != "" {
		template, err = r.findActive(ctx, "", category)
	}
	if err != nil {
		return nil, err
	}

	// Cache the result (ignore error as caching is not critical)
	_ = r.cache.Set(cacheKey, template)

	return template, nil
}

func (r *TemplateRepository) findActive(ctx context.Context, tenantID string, category domain.Category) (*domain.MessageTemplate, error) {
	var template domain.MessageTemplate
	filter := bson.M{
		"tenant_id": tenantID,
		"category":  category,
		"active":    true,
	}
	err := r.client.Collection(templatesCollection).FindOne(ctx, filter).Decode(&template)
	if err != nil {
		return nil, err
	}
	return &template, nil
}

// IncrementUsage bumps the usage counter after a successful send
func (r *TemplateRepository) IncrementUsage(ctx context.Context, id primitive.ObjectID) error {
	filter := bson.M{"_id": id}
	update := bson.M{"$inc": bson.M{"usage_count": 1}}

	_, err := r.client.Collection(templatesCollection).UpdateOne(ctx, filter, update)
	return err
}

// Update updates a template and invalidates its cache entry
func (r *TemplateRepository) Update(ctx context.Context, template *domain.MessageTemplate) error {
	template.UpdatedAt = time.Now().UTC()

	filter := bson.M{
		"_id":       template.ID,
		"tenant_id": template.TenantID,
	}
	update := bson.M{"$set": template}

	result, err := r.client.Collection(templatesCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}

	r.cache.Invalidate("tenant:" + template.TenantID + ":category:" + string(template.Category))

	return nil
}
