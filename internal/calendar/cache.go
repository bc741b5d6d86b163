package calendar

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"mealcal/internal/model"
)

// CacheTTL is how long a source's events for one window are reused.
const CacheTTL = 15 * time.Minute

// DefaultCacheSize bounds the number of (source, window) entries kept.
const DefaultCacheSize = 512

// cacheKey matches windows by exact instant, not by overlap.
type cacheKey struct {
	sourceID string
	start    int64
	end      int64
}

func newCacheKey(sourceID string, start, end time.Time) cacheKey {
	return cacheKey{sourceID: sourceID, start: start.UnixNano(), end: end.UnixNano()}
}

type cacheEntry struct {
	events    []model.CalendarEvent
	fetchedAt time.Time
}

// eventCache is safe for concurrent use; a put for an existing key replaces
// the previous entry.
type eventCache struct {
	store *lru.Cache[cacheKey, cacheEntry]
	ttl   time.Duration
	now   func() time.Time
}

func newEventCache(size int, ttl time.Duration, now func() time.Time) (*eventCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	store, err := lru.New[cacheKey, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &eventCache{store: store, ttl: ttl, now: now}, nil
}

func (c *eventCache) get(key cacheKey) ([]model.CalendarEvent, bool) {
	entry, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.fetchedAt) >= c.ttl {
		return nil, false
	}
	return entry.events, true
}

func (c *eventCache) put(key cacheKey, events []model.CalendarEvent) {
	c.store.Add(key, cacheEntry{events: events, fetchedAt: c.now()})
}

func (c *eventCache) clear() {
	c.store.Purge()
}

func (c *eventCache) size() int {
	return c.store.Len()
}
