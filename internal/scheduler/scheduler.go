package scheduler

import (
	"context"
	"time"

	"github.com/vhvplatform/go-billing-reminder/internal/domain"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/config"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/errors"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/logger"
	"github.com/vhvplatform/go-billing-reminder/internal/trigger"
	"golang.org/x/time/rate"
)

// billingCategories are the queue categories cancelled by a renewal
var billingCategories = []domain.Category{
	domain.CategoryUpcoming,
	domain.CategoryDueToday,
	domain.CategoryOverdue,
}

// Scheduler owns the reminder pipeline: the daily queue build, the
// per-minute dispatcher, the digest sweep and the nightly cleanup. One
// instance is created at startup and injected where needed; there is no
// package-level state.
type Scheduler struct {
	customers  CustomerStore
	tenants    TenantStore
	templates  TemplateStore
	queue      QueueStore
	deliveries DeliveryStore
	settings   SettingsStore
	gateway    SendGateway
	renderer   MessageRenderer

	driver  *trigger.Driver
	limiter *rate.Limiter
	cfg     *config.SchedulerConfig
	log     *logger.Logger
	clock   func() time.Time
}

// Deps bundles the scheduler's collaborators
type Deps struct {
	Customers  CustomerStore
	Tenants    TenantStore
	Templates  TemplateStore
	Queue      QueueStore
	Deliveries DeliveryStore
	Settings   SettingsStore
	Gateway    SendGateway
	Renderer   MessageRenderer
}

// NewScheduler creates a scheduler instance
func NewScheduler(deps Deps, cfg *config.SchedulerConfig, log *logger.Logger) *Scheduler {
	return &Scheduler{
		customers:  deps.Customers,
		tenants:    deps.Tenants,
		templates:  deps.Templates,
		queue:      deps.Queue,
		deliveries: deps.Deliveries,
		settings:   deps.Settings,
		gateway:    deps.Gateway,
		renderer:   deps.Renderer,
		driver:     trigger.NewDriver(log),
		limiter:    rate.NewLimiter(rate.Limit(cfg.SendsPerSecond), 1),
		cfg:        cfg,
		log:        log,
		clock:      time.Now,
	}
}

// Start registers all triggers and launches them. The daily build fires
// at the configured build time; a bootstrap build runs shortly after
// startup so a restart never loses the day's queue.
func (s *Scheduler) Start(ctx context.Context) error {
	loc := s.location(ctx, "")

	if err := s.driver.Daily("queue_build", s.cfg.BuildTime, loc, func(ctx context.Context) {
		s.BuildAllQueues(ctx)
	}); err != nil {
		return err
	}

	cleanupTime := s.setting(ctx, "", domain.SettingCleanupTime, s.cfg.DefaultCleanupTime)
	if err := s.driver.Daily("cleanup", cleanupTime, loc, func(ctx context.Context) {
		s.RunCleanup(ctx)
	}); err != nil {
		return err
	}

	s.driver.Once("bootstrap_build", s.cfg.BootstrapDelay, func(ctx context.Context) {
		s.BuildAllQueues(ctx)
	})
	s.driver.Every("backfill", s.cfg.BackfillInterval, func(ctx context.Context) {
		s.BuildAllQueues(ctx)
	})
	s.driver.Every("dispatch", s.cfg.DispatchInterval, func(ctx context.Context) {
		s.RunDispatchTick(ctx)
	})
	s.driver.Every("digest", s.cfg.DigestInterval, func(ctx context.Context) {
		s.RunDigestSweep(ctx)
	})

	s.driver.Start(ctx)
	s.log.Info("scheduler started",
		"build_time", s.cfg.BuildTime,
		"cleanup_time", cleanupTime,
		"dispatch_interval", s.cfg.DispatchInterval,
		"timezone", loc.String())
	return nil
}

// Stop halts all triggers and waits for in-flight work
func (s *Scheduler) Stop() {
	s.log.Info("stopping scheduler")
	s.driver.Stop()
}

// CancelPending drops a customer's unprocessed billing reminders. Called
// on renewal so a customer who just paid is not dunned.
func (s *Scheduler) CancelPending(ctx context.Context, tenantID, customerID string) (int64, error) {
	customer, err := s.customers.FindByID(ctx, customerID, tenantID)
	if err != nil {
		return 0, errors.NewNotFoundError("customer not found", err)
	}

	removed, err := s.queue.DeletePendingForCustomer(ctx, customer.ID, billingCategories)
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		s.log.Info("cancelled pending reminders", "tenant_id", tenantID, "customer_id", customerID, "removed", removed)
	}
	return removed, nil
}

// CancelOne drops a single unprocessed queue entry
func (s *Scheduler) CancelOne(ctx context.Context, tenantID, entryID string) error {
	return s.queue.DeleteOnePending(ctx, entryID, tenantID)
}

// setting resolves a settings-store value with a config default
func (s *Scheduler) setting(ctx context.Context, tenantID, key, fallback string) string {
	value, found, err := s.settings.Get(ctx, tenantID, key)
	if err != nil {
		s.log.Error("failed to read setting", "tenant_id", tenantID, "key", key, "error", err)
		return fallback
	}
	if !found || value == "" {
		return fallback
	}
	return value
}

// location resolves a tenant's timezone, falling back to the default
func (s *Scheduler) location(ctx context.Context, tenantID string) *time.Location {
	name := s.setting(ctx, tenantID, domain.SettingTimezone, s.cfg.DefaultTimezone)
	loc, err := time.LoadLocation(name)
	if err != nil {
		s.log.Error("invalid timezone setting, using UTC", "tenant_id", tenantID, "timezone", name)
		return time.UTC
	}
	return loc
}

// dayKey is the calendar day in the tenant's local time
func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
