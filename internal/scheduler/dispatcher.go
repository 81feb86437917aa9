package scheduler

import (
	"context"

	"github.com/vhvplatform/go-billing-reminder/internal/domain"
	"github.com/vhvplatform/go-billing-reminder/internal/metrics"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// RunDispatchTick sends every queue entry whose time has arrived. Sends
// are paced by the rate limiter so a large batch does not flood the
// gateway.
func (s *Scheduler) RunDispatchTick(ctx context.Context) {
	entries, err := s.queue.ListDue(ctx, s.clock().UTC(), s.cfg.DispatchBatchLimit)
	if err != nil {
		s.log.Error("failed to list due queue entries", "error", err)
		return
	}

	for _, entry := range entries {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		s.dispatch(ctx, entry)
	}
}

// SendEntryNow dispatches one pending queue entry immediately, ignoring
// its scheduled time.
func (s *Scheduler) SendEntryNow(ctx context.Context, tenantID, entryID string) (domain.Outcome, error) {
	entry, err := s.queue.FindByID(ctx, entryID, tenantID)
	if err != nil {
		return "", errors.NewNotFoundError("queue entry not found", err)
	}
	if entry.Processed {
		return "", errors.NewValidationError("queue entry already processed", nil)
	}

	outcome, ok := s.dispatch(ctx, entry)
	if !ok {
		return "", errors.NewValidationError("queue entry is already being dispatched", nil)
	}
	return outcome, nil
}

// dispatch delivers one queue entry. The claim guarantees at most one
// worker sends it even if a tick overlaps a slow predecessor. The bool
// reports whether this call won the claim.
func (s *Scheduler) dispatch(ctx context.Context, entry *domain.QueueEntry) (domain.Outcome, bool) {
	now := s.clock().UTC()

	claimed, err := s.queue.Claim(ctx, entry.ID, now)
	if err != nil {
		s.log.Error("failed to claim queue entry", "entry_id", entry.ID.Hex(), "error", err)
		return "", false
	}
	if !claimed {
		return "", false
	}

	outcome, errMsg, externalID := s.deliver(ctx, entry)

	if err := s.queue.MarkProcessed(ctx, entry.ID, outcome, errMsg, entry.Attempts+1, s.clock().UTC()); err != nil {
		s.log.Error("failed to mark queue entry processed", "entry_id", entry.ID.Hex(), "error", err)
	}
	metrics.DispatchOutcomes.WithLabelValues(string(outcome)).Inc()

	// Skipped entries never reached the gateway, so they leave no
	// ledger row.
	if outcome == domain.OutcomeSkippedInactive || outcome == domain.OutcomeSkippedOptedOut {
		return outcome, true
	}

	record := &domain.DeliveryRecord{
		CustomerID: entry.CustomerID,
		TemplateID: entry.TemplateID,
		TenantID:   entry.TenantID,
		Phone:      entry.Phone,
		Message:    entry.Message,
		Category:   entry.Category,
		Kind:       domain.DeliveryAutomatic,
		DayKey:     entry.DayKey,
		Success:    outcome == domain.OutcomeSuccess,
		Error:      errMsg,
		ExternalID: externalID,
		SentAt:     s.clock().UTC(),
	}
	if err := s.deliveries.Append(ctx, record); err != nil {
		s.log.Error("failed to append delivery record", "entry_id", entry.ID.Hex(), "error", err)
	}

	if outcome == domain.OutcomeSuccess {
		if err := s.templates.IncrementUsage(ctx, entry.TemplateID); err != nil {
			s.log.Error("failed to bump template usage", "template_id", entry.TemplateID.Hex(), "error", err)
		}
	}
	return outcome, true
}

// deliver re-checks the customer at send time and pushes the message
// through the gateway.
func (s *Scheduler) deliver(ctx context.Context, entry *domain.QueueEntry) (domain.Outcome, string, string) {
	customer, err := s.customers.FindByID(ctx, entry.CustomerID.Hex(), entry.TenantID)
	if err != nil {
		return domain.OutcomeSkippedInactive, "customer no longer exists", ""
	}
	if !customer.Active {
		return domain.OutcomeSkippedInactive, "", ""
	}
	if !customer.AllowsCategory(entry.Category) {
		return domain.OutcomeSkippedOptedOut, "", ""
	}

	timer := metrics.NewDispatchTimer()
	externalID, err := s.gateway.Send(ctx, entry.TenantID, entry.Phone, entry.Message)
	timer.ObserveDuration()
	if err != nil {
		s.log.Error("gateway send failed",
			"entry_id", entry.ID.Hex(), "tenant_id", entry.TenantID, "category", entry.Category, "error", err)
		return domain.OutcomeFailure, err.Error(), ""
	}

	s.log.Info("reminder sent",
		"entry_id", entry.ID.Hex(), "tenant_id", entry.TenantID, "category", entry.Category, "external_id", externalID)
	return domain.OutcomeSuccess, "", externalID
}

// SendNow sends a manual message to one customer immediately, bypassing
// the queue. An empty message renders the manual template.
func (s *Scheduler) SendNow(ctx context.Context, req *domain.SendNowRequest) (*domain.DeliveryRecord, error) {
	customer, err := s.customers.FindByID(ctx, req.CustomerID, req.TenantID)
	if err != nil {
		return nil, errors.NewNotFoundError("customer not found", err)
	}
	if !customer.Active {
		return nil, errors.NewValidationError("customer is inactive", nil)
	}
	if !customer.AllowsCategory(domain.CategoryManual) {
		return nil, errors.NewValidationError("customer opted out of billing messages", nil)
	}

	loc := s.location(ctx, req.TenantID)
	now := s.clock().In(loc)

	message := req.Message
	var templateID primitive.ObjectID
	templateUsed := false
	if message == "" {
		tpl, err := s.templates.FindByCategory(ctx, req.TenantID, domain.CategoryManual)
		if err == mongo.ErrNoDocuments {
			return nil, errors.NewValidationError("no manual template configured and no message given", nil)
		}
		if err != nil {
			return nil, err
		}
		message = s.renderer.Render(tpl.Body, customer, now)
		templateID = tpl.ID
		templateUsed = true
	}

	externalID, sendErr := s.gateway.Send(ctx, req.TenantID, customer.Phone, message)

	record := &domain.DeliveryRecord{
		CustomerID: customer.ID,
		TemplateID: templateID,
		TenantID:   req.TenantID,
		Phone:      customer.Phone,
		Message:    message,
		Category:   domain.CategoryManual,
		Kind:       domain.DeliveryManual,
		DayKey:     dayKey(now),
		Success:    sendErr == nil,
		ExternalID: externalID,
		SentAt:     s.clock().UTC(),
	}
	if sendErr != nil {
		record.Error = sendErr.Error()
	}
	if err := s.deliveries.Append(ctx, record); err != nil {
		s.log.Error("failed to append delivery record", "customer_id", req.CustomerID, "error", err)
	}

	if sendErr != nil {
		return nil, sendErr
	}
	if templateUsed {
		if err := s.templates.IncrementUsage(ctx, templateID); err != nil {
			s.log.Error("failed to bump template usage", "template_id", templateID.Hex(), "error", err)
		}
	}
	return record, nil
}

// ProcessAllOverdue messages every overdue customer of a tenant, however
// old the debt. Customers already messaged today are skipped unless the
// sweep is forced.
func (s *Scheduler) ProcessAllOverdue(ctx context.Context, req *domain.OverdueSweepRequest) (int, error) {
	loc := s.location(ctx, req.TenantID)
	now := s.clock().In(loc)
	day := dayKey(now)

	customers, err := s.customers.ListActiveByTenant(ctx, req.TenantID)
	if err != nil {
		return 0, err
	}

	tpl, err := s.templates.FindByCategory(ctx, req.TenantID, domain.CategoryOverdue)
	if err == mongo.ErrNoDocuments {
		return 0, errors.NewValidationError("no overdue template configured", nil)
	}
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, customer := range customers {
		if domain.DaysUntil(customer.Expiration.In(loc), now) >= 0 {
			continue
		}
		if !customer.AllowsCategory(domain.CategoryOverdue) {
			continue
		}
		if !req.Force {
			already, err := s.deliveries.SentToday(ctx, customer.ID, day)
			if err != nil {
				s.log.Error("failed to check delivery ledger", "customer_id", customer.ID.Hex(), "error", err)
				continue
			}
			if already {
				continue
			}
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return sent, err
		}

		message := s.renderer.Render(tpl.Body, customer, now)
		externalID, sendErr := s.gateway.Send(ctx, req.TenantID, customer.Phone, message)

		record := &domain.DeliveryRecord{
			CustomerID: customer.ID,
			TemplateID: tpl.ID,
			TenantID:   req.TenantID,
			Phone:      customer.Phone,
			Message:    message,
			Category:   domain.CategoryOverdue,
			Kind:       domain.DeliveryManual,
			DayKey:     day,
			Success:    sendErr == nil,
			ExternalID: externalID,
			SentAt:     s.clock().UTC(),
		}
		if sendErr != nil {
			record.Error = sendErr.Error()
			s.log.Error("overdue sweep send failed", "customer_id", customer.ID.Hex(), "error", sendErr)
		} else {
			sent++
		}
		if err := s.deliveries.Append(ctx, record); err != nil {
			s.log.Error("failed to append delivery record", "customer_id", customer.ID.Hex(), "error", err)
		}
	}

	s.log.Info("overdue sweep complete", "tenant_id", req.TenantID, "sent", sent, "forced", req.Force)
	return sent, nil
}
