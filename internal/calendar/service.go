// Package calendar merges the events of all enabled sources for a query
// window, caching each source's contribution.
package calendar

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"mealcal/internal/ics"
	appLog "mealcal/internal/log"
	"mealcal/internal/model"
	"mealcal/internal/tz"
)

// DefaultConcurrency is the number of sources fetched at once.
const DefaultConcurrency = 8

// SourceLister yields the sources taking part in aggregation.
type SourceLister interface {
	ListEnabled() []model.CalendarSource
}

// Feed fetches and parses one source.
type Feed interface {
	Fetch(ctx context.Context, src model.CalendarSource) ([]byte, error)
	FetchAndParse(ctx context.Context, src model.CalendarSource) ([]ics.VEvent, error)
	Location() *time.Location
}

// Options configures a Service.
type Options struct {
	// DefaultZone is used when a caller does not supply a zone.
	DefaultZone string
	// FilterHour hides timed events starting before this local hour.
	// Nil disables the filter.
	FilterHour  *int
	Concurrency int
	CacheSize   int
	// Now is the clock used for cache freshness; nil means time.Now.
	Now func() time.Time
}

// Service is the event aggregator. One instance is shared per process.
type Service struct {
	sources     SourceLister
	feed        Feed
	cache       *eventCache
	defaultZone string
	filterHour  *int
	concurrency int
}

// NewService wires the aggregator to its registry and feed.
func NewService(sources SourceLister, feed Feed, opts Options) (*Service, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	cache, err := newEventCache(opts.CacheSize, CacheTTL, opts.Now)
	if err != nil {
		return nil, fmt.Errorf("event cache: %w", err)
	}
	var filterHour *int
	if opts.FilterHour != nil {
		h := *opts.FilterHour
		filterHour = &h
	}
	return &Service{
		sources:     sources,
		feed:        feed,
		cache:       cache,
		defaultZone: tz.ResolveTimezone(opts.DefaultZone, ""),
		filterHour:  filterHour,
		concurrency: opts.Concurrency,
	}, nil
}

// ResolveZone returns the zone to use for a caller-supplied candidate.
func (s *Service) ResolveZone(candidate string) string {
	return tz.ResolveTimezone(candidate, s.defaultZone)
}

// FetchCalendarEvents returns the merged, filtered events of all enabled
// sources intersecting [start, end], sorted by start. A failing source
// contributes nothing; it never fails the call.
func (s *Service) FetchCalendarEvents(ctx context.Context, start, end time.Time, zone string) []model.CalendarEvent {
	srcs := s.sources.ListEnabled()
	if len(srcs) == 0 {
		return []model.CalendarEvent{}
	}
	zone = s.ResolveZone(zone)

	perSource := make([][]model.CalendarEvent, len(srcs))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, src := range srcs {
		g.Go(func() error {
			perSource[i] = s.sourceEvents(ctx, src, start, end)
			return nil
		})
	}
	_ = g.Wait()

	merged := make([]model.CalendarEvent, 0)
	for _, events := range perSource {
		for _, ev := range events {
			if tz.ShouldShowEvent(ev, s.filterHour, zone) {
				merged = append(merged, ev)
			}
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Start.Before(merged[j].Start)
	})
	return merged
}

// sourceEvents returns the cached events of src for the window, fetching
// them on a miss.
func (s *Service) sourceEvents(ctx context.Context, src model.CalendarSource, start, end time.Time) []model.CalendarEvent {
	key := newCacheKey(src.ID, start, end)
	if events, ok := s.cache.get(key); ok {
		return events
	}

	vevents, err := s.feed.FetchAndParse(ctx, src)
	if err != nil {
		appLog.Error("calendar: source failed, skipping", err, "id", src.ID, "name", src.Name)
		return nil
	}

	events := buildEvents(src, vevents, start, end)
	s.cache.put(key, events)
	appLog.Debug("calendar: source refreshed", "id", src.ID, "events", len(events))
	return events
}

// buildEvents expands vevents into CalendarEvents for the window. Events
// sharing an id keep the first one.
func buildEvents(src model.CalendarSource, vevents []ics.VEvent, start, end time.Time) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(vevents))
	seen := make(map[string]struct{}, len(vevents))

	for _, ve := range vevents {
		occs, err := ics.Occurrences(ve, start, end)
		if err != nil {
			appLog.Warn("calendar: skipping event with bad recurrence", "id", src.ID, "uid", ve.UID, "reason", err.Error())
			continue
		}
		for _, occ := range occs {
			id := src.ID + "-" + ve.UID
			if ve.Recurring() {
				id = fmt.Sprintf("%s-%d", id, occ.Start.UnixMilli())
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			out = append(out, model.CalendarEvent{
				ID:     id,
				Title:  ve.Title,
				Start:  occ.Start.UTC(),
				End:    occ.End.UTC(),
				AllDay: ve.AllDay,
				Source: src.Name,
				Color:  src.Color,
			})
		}
	}
	return out
}

// GetEventsForDate returns the events falling on the local calendar day of
// date in zone. All-day events match when the day lies in their
// [first day, day after last day) range; timed events match on the local
// date of their start.
func (s *Service) GetEventsForDate(ctx context.Context, date time.Time, zone string) []model.CalendarEvent {
	zone = s.ResolveZone(zone)
	dayStart, dayEnd := tz.DayBounds(date, zone)
	target := tz.ToZone(date, zone)

	events := s.FetchCalendarEvents(ctx, dayStart, dayEnd, zone)
	out := make([]model.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if onDate(ev, target, zone) {
			out = append(out, ev)
		}
	}
	return out
}

func onDate(ev model.CalendarEvent, target tz.WallClock, zone string) bool {
	if !ev.AllDay {
		return tz.ToZone(ev.Start, zone).SameDate(target)
	}
	day := target.Date()
	first := tz.ToZone(ev.Start, tz.FallbackZone).Date()
	last := tz.ToZone(ev.End, tz.FallbackZone).Date()
	if !last.After(first) {
		return day.Equal(first)
	}
	return !day.Before(first) && day.Before(last)
}

// ClearCache drops every cached window for every source.
func (s *Service) ClearCache() {
	s.cache.clear()
	appLog.Info("calendar: cache cleared")
}
