package scheduler

import (
	"context"
	"time"

	"github.com/vhvplatform/go-billing-reminder/internal/metrics"
)

// RunCleanup purges processed queue entries older than the retention
// window and drops pending entries for customers that were deactivated
// after their reminders were queued.
func (s *Scheduler) RunCleanup(ctx context.Context) {
	cutoff := s.clock().UTC().AddDate(0, 0, -s.cfg.RetentionDays)

	purged, err := s.queue.PurgeProcessedBefore(ctx, cutoff)
	if err != nil {
		s.log.Error("failed to purge processed queue entries", "error", err)
	} else if purged > 0 {
		metrics.CleanupRemoved.Add(float64(purged))
	}

	inactive, err := s.customers.ListInactiveIDs(ctx)
	if err != nil {
		s.log.Error("failed to list inactive customers", "error", err)
		return
	}

	dropped, err := s.queue.DeletePendingForCustomers(ctx, inactive)
	if err != nil {
		s.log.Error("failed to drop pending entries for inactive customers", "error", err)
		return
	}
	if dropped > 0 {
		metrics.CleanupRemoved.Add(float64(dropped))
	}

	s.log.Info("cleanup complete", "purged", purged, "dropped_inactive", dropped, "cutoff", cutoff.Format(time.RFC3339))
}
