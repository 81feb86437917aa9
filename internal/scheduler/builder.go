package scheduler

import (
	"context"
	"time"

	"github.com/vhvplatform/go-billing-reminder/internal/domain"
	"github.com/vhvplatform/go-billing-reminder/internal/metrics"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/errors"
	"github.com/vhvplatform/go-billing-reminder/internal/trigger"
	"go.mongodb.org/mongo-driver/mongo"
)

// BuildAllQueues builds today's queue for every active tenant. Safe to
// run repeatedly: the dedup index turns re-runs into backfills that only
// add what is missing.
func (s *Scheduler) BuildAllQueues(ctx context.Context) {
	tenants, err := s.tenants.ListActive(ctx)
	if err != nil {
		s.log.Error("failed to list tenants for queue build", "error", err)
		return
	}

	for _, tenant := range tenants {
		if err := s.BuildTenantQueue(ctx, tenant.TenantID); err != nil {
			s.log.Error("queue build failed", "tenant_id", tenant.TenantID, "error", err)
		}
	}
}

// BuildTenantQueue classifies every active customer of a tenant and
// queues the reminders that apply today.
func (s *Scheduler) BuildTenantQueue(ctx context.Context, tenantID string) error {
	loc := s.location(ctx, tenantID)
	now := s.clock().In(loc)
	sendTime := s.setting(ctx, tenantID, domain.SettingSendTime, s.cfg.DefaultSendTime)

	customers, err := s.customers.ListActiveByTenant(ctx, tenantID)
	if err != nil {
		return err
	}

	queued := 0
	for _, customer := range customers {
		category, ok := domain.Classify(customer.Expiration.In(loc), now).Category()
		if !ok {
			continue
		}
		if !customer.AllowsCategory(category) {
			continue
		}

		inserted, err := s.enqueue(ctx, customer, category, s.sendInstant(now, sendTime), now)
		if err != nil {
			s.log.Error("failed to queue reminder",
				"tenant_id", tenantID, "customer_id", customer.ID.Hex(), "category", category, "error", err)
			continue
		}
		if inserted {
			queued++
		}
	}

	if queued > 0 {
		s.log.Info("queue build complete", "tenant_id", tenantID, "queued", queued, "customers", len(customers))
	}
	return nil
}

// EnqueueWelcome queues a welcome message a few minutes after a customer
// is created.
func (s *Scheduler) EnqueueWelcome(ctx context.Context, tenantID, customerID string) error {
	customer, err := s.customers.FindByID(ctx, customerID, tenantID)
	if err != nil {
		return errors.NewNotFoundError("customer not found", err)
	}
	if !customer.Active || !customer.AllowsCategory(domain.CategoryWelcome) {
		return nil
	}

	loc := s.location(ctx, tenantID)
	now := s.clock().In(loc)

	_, err = s.enqueue(ctx, customer, domain.CategoryWelcome, now.Add(5*time.Minute).UTC(), now)
	return err
}

// enqueue renders the category template and inserts the entry unless the
// same reminder is already queued for today.
func (s *Scheduler) enqueue(ctx context.Context, customer *domain.Customer, category domain.Category, scheduledFor time.Time, now time.Time) (bool, error) {
	tpl, err := s.templates.FindByCategory(ctx, customer.TenantID, category)
	if err == mongo.ErrNoDocuments {
		s.log.Warn("no active template for category", "tenant_id", customer.TenantID, "category", category)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	entry := &domain.QueueEntry{
		CustomerID:   customer.ID,
		TemplateID:   tpl.ID,
		TenantID:     customer.TenantID,
		Phone:        customer.Phone,
		Message:      s.renderer.Render(tpl.Body, customer, now),
		Category:     category,
		DayKey:       dayKey(now),
		ScheduledFor: scheduledFor,
	}

	inserted, err := s.queue.InsertIfAbsent(ctx, entry)
	if err != nil {
		return false, err
	}
	if inserted {
		metrics.QueueEntriesBuilt.WithLabelValues(string(category)).Inc()
	}
	return inserted, nil
}

// sendInstant computes today's send instant in UTC. A send time already
// in the past moves to ten minutes from now, capped at 23:59 local so a
// late build never spills into tomorrow.
func (s *Scheduler) sendInstant(now time.Time, sendTime string) time.Time {
	hour, min := 9, 0
	if h, m, err := trigger.ParseClock(sendTime); err == nil {
		hour, min = h, m
	} else {
		s.log.Warn("invalid send time setting, using 09:00", "send_time", sendTime)
	}

	target := time.Date(now.Year(), now.Month(), now.Day(), hour, min, 0, 0, now.Location())
	if target.Before(now) {
		target = now.Add(10 * time.Minute)
		endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 0, 0, now.Location())
		if target.After(endOfDay) {
			target = endOfDay
		}
	}
	return target.UTC()
}
