package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vhvplatform/go-billing-reminder/internal/domain"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/config"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/logger"
	"github.com/vhvplatform/go-billing-reminder/internal/template"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// In-memory store fakes mirroring the Mongo repositories.

type fakeCustomers struct {
	customers []*domain.Customer
}

func (f *fakeCustomers) FindByID(_ context.Context, id string, tenantID string) (*domain.Customer, error) {
	for _, c := range f.customers {
		if c.ID.Hex() == id && c.TenantID == tenantID {
			return c, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeCustomers) ListActiveByTenant(_ context.Context, tenantID string) ([]*domain.Customer, error) {
	var out []*domain.Customer
	for _, c := range f.customers {
		if c.TenantID == tenantID && c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCustomers) ListInactiveIDs(_ context.Context) ([]primitive.ObjectID, error) {
	var out []primitive.ObjectID
	for _, c := range f.customers {
		if !c.Active {
			out = append(out, c.ID)
		}
	}
	return out, nil
}

type fakeTenants struct {
	tenants []*domain.Tenant
}

func (f *fakeTenants) ListActive(_ context.Context) ([]*domain.Tenant, error) {
	var out []*domain.Tenant
	for _, t := range f.tenants {
		if t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTenants) FindByTenantID(_ context.Context, tenantID string) (*domain.Tenant, error) {
	for _, t := range f.tenants {
		if t.TenantID == tenantID {
			return t, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

type fakeTemplates struct {
	templates []*domain.MessageTemplate
	usage     map[primitive.ObjectID]int
}

func (f *fakeTemplates) FindByCategory(_ context.Context, tenantID string, category domain.Category) (*domain.MessageTemplate, error) {
	for _, tpl := range f.templates {
		if tpl.TenantID == tenantID && tpl.Category == category && tpl.Active {
			return tpl, nil
		}
	}
	for _, tpl := range f.templates {
		if tpl.TenantID == "" && tpl.Category == category && tpl.Active {
			return tpl, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeTemplates) IncrementUsage(_ context.Context, id primitive.ObjectID) error {
	if f.usage == nil {
		f.usage = map[primitive.ObjectID]int{}
	}
	f.usage[id]++
	return nil
}

type fakeQueue struct {
	mu      sync.Mutex
	entries []*domain.QueueEntry
}

func (f *fakeQueue) InsertIfAbsent(_ context.Context, entry *domain.QueueEntry) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.CustomerID == entry.CustomerID && e.TemplateID == entry.TemplateID && e.DayKey == entry.DayKey {
			return false, nil
		}
	}
	entry.ID = primitive.NewObjectID()
	f.entries = append(f.entries, entry)
	return true, nil
}

func (f *fakeQueue) FindByID(_ context.Context, id string, tenantID string) (*domain.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ID.Hex() == id && e.TenantID == tenantID {
			return e, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeQueue) ListDue(_ context.Context, now time.Time, limit int) ([]*domain.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.QueueEntry
	for _, e := range f.entries {
		if !e.Processed && e.ClaimedAt == nil && !e.ScheduledFor.After(now) {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeQueue) Claim(_ context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ID == id {
			if e.Processed || e.ClaimedAt != nil {
				return false, nil
			}
			t := now
			e.ClaimedAt = &t
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeQueue) MarkProcessed(_ context.Context, id primitive.ObjectID, outcome domain.Outcome, errMsg string, attempts int, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ID == id {
			e.Processed = true
			e.Outcome = outcome
			e.Error = errMsg
			e.Attempts = attempts
			t := now
			e.ProcessedAt = &t
		}
	}
	return nil
}

func (f *fakeQueue) DeletePendingForCustomer(_ context.Context, customerID primitive.ObjectID, categories []domain.Category) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	match := func(c domain.Category) bool {
		for _, want := range categories {
			if c == want {
				return true
			}
		}
		return false
	}
	var kept []*domain.QueueEntry
	var removed int64
	for _, e := range f.entries {
		if e.CustomerID == customerID && !e.Processed && match(e.Category) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	f.entries = kept
	return removed, nil
}

func (f *fakeQueue) DeletePendingForCustomers(_ context.Context, customerIDs []primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := map[primitive.ObjectID]bool{}
	for _, id := range customerIDs {
		ids[id] = true
	}
	var kept []*domain.QueueEntry
	var removed int64
	for _, e := range f.entries {
		if ids[e.CustomerID] && !e.Processed {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	f.entries = kept
	return removed, nil
}

func (f *fakeQueue) DeleteOnePending(_ context.Context, id string, tenantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.entries {
		if e.ID.Hex() == id && e.TenantID == tenantID && !e.Processed {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

func (f *fakeQueue) PurgeProcessedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*domain.QueueEntry
	var removed int64
	for _, e := range f.entries {
		if e.Processed && e.ProcessedAt != nil && e.ProcessedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	f.entries = kept
	return removed, nil
}

func (f *fakeQueue) pending() []*domain.QueueEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.QueueEntry
	for _, e := range f.entries {
		if !e.Processed {
			out = append(out, e)
		}
	}
	return out
}

type fakeDeliveries struct {
	records []*domain.DeliveryRecord
}

func (f *fakeDeliveries) Append(_ context.Context, record *domain.DeliveryRecord) error {
	record.ID = primitive.NewObjectID()
	f.records = append(f.records, record)
	return nil
}

func (f *fakeDeliveries) SentToday(_ context.Context, customerID primitive.ObjectID, day string) (bool, error) {
	for _, r := range f.records {
		if r.CustomerID == customerID && r.DayKey == day && r.Success && r.Category.IsBilling() {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDeliveries) DigestSentToday(_ context.Context, tenantID string, day string) (bool, error) {
	for _, r := range f.records {
		if r.Kind == domain.DeliveryDigest && r.TenantID == tenantID && r.DayKey == day && r.Success {
			return true, nil
		}
	}
	return false, nil
}

type fakeSettings struct {
	values map[string]string // "tenant/key"
}

func (f *fakeSettings) Get(_ context.Context, tenantID, key string) (string, bool, error) {
	if v, ok := f.values[tenantID+"/"+key]; ok {
		return v, true, nil
	}
	if tenantID != "" {
		if v, ok := f.values["/"+key]; ok {
			return v, true, nil
		}
	}
	return "", false, nil
}

type sentMessage struct {
	session string
	phone   string
	message string
}

type fakeGateway struct {
	sent    []sentMessage
	failFor map[string]error // phone -> error
}

func (f *fakeGateway) Send(_ context.Context, session, phone, message string) (string, error) {
	if err, ok := f.failFor[phone]; ok {
		return "", err
	}
	f.sent = append(f.sent, sentMessage{session: session, phone: phone, message: message})
	return fmt.Sprintf("ext-%d", len(f.sent)), nil
}

// env bundles a scheduler wired to fakes with a controllable clock
type env struct {
	s          *Scheduler
	customers  *fakeCustomers
	tenants    *fakeTenants
	templates  *fakeTemplates
	queue      *fakeQueue
	deliveries *fakeDeliveries
	settings   *fakeSettings
	gateway    *fakeGateway
}

func newTestEnv(now time.Time) *env {
	e := &env{
		customers:  &fakeCustomers{},
		tenants:    &fakeTenants{},
		templates:  &fakeTemplates{},
		queue:      &fakeQueue{},
		deliveries: &fakeDeliveries{},
		settings:   &fakeSettings{values: map[string]string{}},
		gateway:    &fakeGateway{failFor: map[string]error{}},
	}

	cfg := &config.SchedulerConfig{
		BuildTime:          "05:00",
		BackfillInterval:   30 * time.Minute,
		DispatchInterval:   time.Minute,
		DigestInterval:     time.Minute,
		BootstrapDelay:     time.Second,
		DefaultSendTime:    "09:00",
		DefaultVerifyTime:  "09:00",
		DefaultCleanupTime: "02:00",
		DefaultTimezone:    "UTC",
		RetentionDays:      7,
		DispatchBatchLimit: 50,
		SendsPerSecond:     1000,
	}

	e.s = NewScheduler(Deps{
		Customers:  e.customers,
		Tenants:    e.tenants,
		Templates:  e.templates,
		Queue:      e.queue,
		Deliveries: e.deliveries,
		Settings:   e.settings,
		Gateway:    e.gateway,
		Renderer:   template.NewRenderer(nil),
	}, cfg, logger.NewLogger("error"))
	e.s.clock = func() time.Time { return now }
	return e
}

func (e *env) setClock(now time.Time) {
	e.s.clock = func() time.Time { return now }
}

func (e *env) addTenant(tenantID, notifyPhone string) *domain.Tenant {
	t := &domain.Tenant{
		ID:          primitive.NewObjectID(),
		TenantID:    tenantID,
		Name:        tenantID,
		NotifyPhone: notifyPhone,
		Active:      true,
	}
	e.tenants.tenants = append(e.tenants.tenants, t)
	return t
}

func (e *env) addCustomer(tenantID, name string, expiration time.Time) *domain.Customer {
	c := &domain.Customer{
		ID:             primitive.NewObjectID(),
		TenantID:       tenantID,
		Name:           name,
		Phone:          fmt.Sprintf("55119%08d", len(e.customers.customers)),
		Package:        "Premium",
		Value:          49.9,
		Expiration:     expiration,
		Active:         true,
		ReceiveBilling: true,
		ReceiveNotices: true,
	}
	e.customers.customers = append(e.customers.customers, c)
	return c
}

func (e *env) addTemplate(tenantID string, category domain.Category, body string) *domain.MessageTemplate {
	tpl := &domain.MessageTemplate{
		ID:       primitive.NewObjectID(),
		TenantID: tenantID,
		Category: category,
		Name:     tenantID + "-" + string(category),
		Body:     body,
		Active:   true,
	}
	e.templates.templates = append(e.templates.templates, tpl)
	return tpl
}
