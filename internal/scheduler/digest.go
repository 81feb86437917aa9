package scheduler

import (
	"context"
	"fmt"

	"github.com/vhvplatform/go-billing-reminder/internal/domain"
	"github.com/vhvplatform/go-billing-reminder/internal/metrics"
	"github.com/vhvplatform/go-billing-reminder/internal/trigger"
)

// RunDigestSweep checks every tenant and sends its daily digest once the
// tenant's verify time has passed. The ledger keeps the digest at one
// per day even across restarts.
func (s *Scheduler) RunDigestSweep(ctx context.Context) {
	tenants, err := s.tenants.ListActive(ctx)
	if err != nil {
		s.log.Error("failed to list tenants for digest sweep", "error", err)
		return
	}

	for _, tenant := range tenants {
		if tenant.NotifyPhone == "" {
			continue
		}

		loc := s.location(ctx, tenant.TenantID)
		now := s.clock().In(loc)

		verifyTime := s.setting(ctx, tenant.TenantID, domain.SettingVerifyTime, s.cfg.DefaultVerifyTime)
		hour, min, err := trigger.ParseClock(verifyTime)
		if err != nil {
			s.log.Warn("invalid verify time setting", "tenant_id", tenant.TenantID, "verify_time", verifyTime)
			continue
		}
		if now.Hour() < hour || (now.Hour() == hour && now.Minute() < min) {
			continue
		}

		already, err := s.deliveries.DigestSentToday(ctx, tenant.TenantID, dayKey(now))
		if err != nil {
			s.log.Error("failed to check digest ledger", "tenant_id", tenant.TenantID, "error", err)
			continue
		}
		if already {
			continue
		}

		if err := s.SendDigest(ctx, tenant); err != nil {
			s.log.Error("digest send failed", "tenant_id", tenant.TenantID, "error", err)
		}
	}
}

// SendDigest counts the tenant's expirations and sends the summary to
// the tenant's notification phone.
func (s *Scheduler) SendDigest(ctx context.Context, tenant *domain.Tenant) error {
	loc := s.location(ctx, tenant.TenantID)
	now := s.clock().In(loc)

	customers, err := s.customers.ListActiveByTenant(ctx, tenant.TenantID)
	if err != nil {
		return err
	}

	var overdue, today, dueSoon int
	for _, customer := range customers {
		days := domain.DaysUntil(customer.Expiration.In(loc), now)
		switch {
		case days < 0:
			overdue++
		case days == 0:
			today++
		case days <= 7:
			dueSoon++
		}
	}

	message := digestMessage(now.Format("02/01/2006"), overdue, today, dueSoon)
	externalID, sendErr := s.gateway.Send(ctx, tenant.TenantID, tenant.NotifyPhone, message)

	record := &domain.DeliveryRecord{
		TenantID:   tenant.TenantID,
		Phone:      tenant.NotifyPhone,
		Message:    message,
		Category:   domain.CategoryManual,
		Kind:       domain.DeliveryDigest,
		DayKey:     dayKey(now),
		Success:    sendErr == nil,
		ExternalID: externalID,
		SentAt:     s.clock().UTC(),
	}
	if sendErr != nil {
		record.Error = sendErr.Error()
		metrics.DigestsSent.WithLabelValues("failure").Inc()
	} else {
		metrics.DigestsSent.WithLabelValues("success").Inc()
	}
	if err := s.deliveries.Append(ctx, record); err != nil {
		s.log.Error("failed to append digest record", "tenant_id", tenant.TenantID, "error", err)
	}

	if sendErr != nil {
		return sendErr
	}
	s.log.Info("digest sent", "tenant_id", tenant.TenantID, "overdue", overdue, "today", today, "due_soon", dueSoon)
	return nil
}

func digestMessage(date string, overdue, today, dueSoon int) string {
	if overdue == 0 && today == 0 && dueSoon == 0 {
		return fmt.Sprintf("Daily summary %s: no expirations overdue, today or in the next 7 days.", date)
	}
	return fmt.Sprintf(
		"Daily summary %s:\n- overdue: %d\n- expiring today: %d\n- expiring in the next 7 days: %d",
		date, overdue, today, dueSoon)
}
