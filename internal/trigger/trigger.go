package trigger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vhvplatform/go-billing-reminder/internal/metrics"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/logger"
)

// Task is one unit of scheduled work. The context is cancelled when the
// driver stops.
type Task func(ctx context.Context)

type spec struct {
	name    string
	fn      Task
	run     func(ctx context.Context, t *spec)
	running atomic.Bool
}

// Driver owns the timer goroutines behind the scheduler. Each task runs
// at most once concurrently: a tick that lands while the previous run is
// still going is skipped, not queued.
type Driver struct {
	log   *logger.Logger
	now   func() time.Time
	specs []*spec

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewDriver creates an empty driver. Register tasks, then Start.
func NewDriver(log *logger.Logger) *Driver {
	return &Driver{
		log: log,
		now: time.Now,
	}
}

// Daily registers a task that fires once a day at the given wall clock
// time in loc.
func (d *Driver) Daily(name, at string, loc *time.Location, fn Task) error {
	hour, min, err := ParseClock(at)
	if err != nil {
		return err
	}

	d.register(name, fn, func(ctx context.Context, t *spec) {
		for {
			next := NextDaily(d.now().In(loc), hour, min)
			timer := time.NewTimer(next.Sub(d.now()))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				d.fire(ctx, t)
			}
		}
	})
	return nil
}

// Every registers a task that fires on a fixed interval
func (d *Driver) Every(name string, interval time.Duration, fn Task) {
	d.register(name, fn, func(ctx context.Context, t *spec) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.fire(ctx, t)
			}
		}
	})
}

// Once registers a task that fires a single time after a delay
func (d *Driver) Once(name string, delay time.Duration, fn Task) {
	d.register(name, fn, func(ctx context.Context, t *spec) {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			d.fire(ctx, t)
		}
	})
}

func (d *Driver) register(name string, fn Task, run func(ctx context.Context, t *spec)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.specs = append(d.specs, &spec{name: name, fn: fn, run: run})
}

// Start launches every registered task goroutine
func (d *Driver) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	for _, t := range d.specs {
		t := t
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			t.run(runCtx, t)
		}()
	}
}

// Stop cancels all tasks and waits for in-flight runs to finish
func (d *Driver) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
}

func (d *Driver) fire(ctx context.Context, t *spec) {
	if !t.running.CompareAndSwap(false, true) {
		metrics.TriggerSkipped.WithLabelValues(t.name).Inc()
		d.log.Warn("trigger still running, skipping tick", "task", t.name)
		return
	}
	defer t.running.Store(false)

	metrics.TriggerRuns.WithLabelValues(t.name).Inc()
	start := d.now()
	t.fn(ctx)
	metrics.TriggerDuration.WithLabelValues(t.name).Observe(d.now().Sub(start).Seconds())
}

// ParseClock parses an HH:MM wall clock string
func ParseClock(at string) (hour, min int, err error) {
	parts := strings.Split(at, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock time %q, want HH:MM", at)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid clock time %q, want HH:MM", at)
	}
	min, err = strconv.Atoi(parts[1])
	if err != nil || min < 0 || min > 59 {
		return 0, 0, fmt.Errorf("invalid clock time %q, want HH:MM", at)
	}
	return hour, min, nil
}

// NextDaily returns the next occurrence of hour:min strictly after now,
// in now's location.
func NextDaily(now time.Time, hour, min int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, min, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
