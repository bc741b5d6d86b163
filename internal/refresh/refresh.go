// Package refresh periodically drops the event cache and re-fetches the
// upcoming days so interactive requests hit warm entries.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "mealcal/internal/log"
	"mealcal/internal/model"
	"mealcal/internal/tz"
)

// Target is the part of the aggregator the job drives.
type Target interface {
	ClearCache()
	FetchCalendarEvents(ctx context.Context, start, end time.Time, zone string) []model.CalendarEvent
}

// Options configures a Scheduler.
type Options struct {
	// Schedule is a five-field cron expression.
	Schedule string
	// Zone is both the cron location and the zone whose days are warmed.
	Zone        string
	HorizonDays int
	// JobTimeout bounds one run; zero means one minute.
	JobTimeout time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Scheduler runs the refresh job on a cron schedule. Runs never overlap.
type Scheduler struct {
	cron    *cron.Cron
	target  Target
	zone    string
	horizon int
	timeout time.Duration
	now     func() time.Time

	// running serializes RunOnce between cron ticks and direct callers.
	running sync.Mutex

	mu      sync.Mutex
	lastRun time.Time
}

// New validates the schedule and registers the job. The scheduler does not
// run until Start is called.
func New(target Target, opts Options) (*Scheduler, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = 1
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = time.Minute
	}
	zone := tz.ResolveTimezone(opts.Zone, "")

	s := &Scheduler{
		target:  target,
		zone:    zone,
		horizon: opts.HorizonDays,
		timeout: opts.JobTimeout,
		now:     opts.Now,
	}

	s.cron = cron.New(
		cron.WithLocation(tz.Location(zone)),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := s.cron.AddFunc(opts.Schedule, s.run); err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", opts.Schedule, err)
	}
	return s, nil
}

// Start launches the cron goroutine.
func (s *Scheduler) Start() {
	appLog.Info("refresh: scheduler started", "zone", s.zone, "horizon_days", s.horizon)
	s.cron.Start()
}

// Stop halts the schedule and waits for a running job, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		appLog.Warn("refresh: stop timed out with a job still running")
	}
}

// Next returns the next scheduled run, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// LastRun returns when RunOnce last completed.
func (s *Scheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.RunOnce(ctx)
}

// RunOnce clears the cache and warms one window per local day, starting
// with today, for the configured horizon. It returns the number of events
// seen across all windows. Concurrent calls wait for the running one.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	s.running.Lock()
	defer s.running.Unlock()

	started := s.now()
	s.target.ClearCache()

	total := 0
	day := started
	for i := 0; i < s.horizon; i++ {
		if ctx.Err() != nil {
			appLog.Warn("refresh: run cut short", "days_warmed", i, "reason", ctx.Err().Error())
			break
		}
		start, end := tz.DayBounds(day, s.zone)
		total += len(s.target.FetchCalendarEvents(ctx, start, end, s.zone))
		day = end.Add(time.Millisecond)
	}

	s.mu.Lock()
	s.lastRun = s.now()
	s.mu.Unlock()

	appLog.Info("refresh: cache warmed", "days", s.horizon, "events", total, "took", s.now().Sub(started).String())
	return total
}
