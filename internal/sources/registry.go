// Package sources holds the in-memory list of calendar feeds that take part
// in aggregation. It is seeded from configuration and resets on restart.
package sources

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	appLog "mealcal/internal/log"
	"mealcal/internal/model"
)

// NewSource is the input for Add.
type NewSource struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Color string `json:"color"`
}

// Patch carries the fields to change in Update; nil fields are left alone.
type Patch struct {
	Name    *string `json:"name,omitempty"`
	URL     *string `json:"url,omitempty"`
	Color   *string `json:"color,omitempty"`
	Enabled *bool   `json:"enabled,omitempty"`
}

// Registry is safe for concurrent use. Names and URLs are not required to
// be unique.
type Registry struct {
	mu      sync.RWMutex
	sources []model.CalendarSource
	newID   func() string
}

// NewRegistry returns a registry seeded with a copy of defaults. Defaults
// without an ID get one.
func NewRegistry(defaults []model.CalendarSource) *Registry {
	r := &Registry{newID: newID}
	r.sources = make([]model.CalendarSource, 0, len(defaults))
	for _, src := range defaults {
		if src.ID == "" {
			src.ID = r.newID()
		}
		r.sources = append(r.sources, src)
	}
	return r
}

func newID() string {
	// V7 keeps ids ordered by creation time.
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// List returns all sources, enabled or not, in insertion order.
func (r *Registry) List() []model.CalendarSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.sources)
}

// ListEnabled returns only the enabled sources.
func (r *Registry) ListEnabled() []model.CalendarSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.CalendarSource, 0, len(r.sources))
	for _, src := range r.sources {
		if src.Enabled {
			out = append(out, src)
		}
	}
	return out
}

// Get returns the source with the given id.
func (r *Registry) Get(id string) (model.CalendarSource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexOf(id)
	if i < 0 {
		return model.CalendarSource{}, false
	}
	return r.sources[i], true
}

// Add appends a new enabled source with a generated id.
func (r *Registry) Add(in NewSource) model.CalendarSource {
	src := model.CalendarSource{
		ID:      r.newID(),
		Name:    in.Name,
		URL:     in.URL,
		Color:   in.Color,
		Enabled: true,
	}

	r.mu.Lock()
	r.sources = append(r.sources, src)
	r.mu.Unlock()

	appLog.Info("source added", "id", src.ID, "name", src.Name)
	return src
}

// Update applies p to the source with the given id. Unknown ids are a
// no-op. It reports whether a source was found.
func (r *Registry) Update(id string, p Patch) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return false
	}
	src := &r.sources[i]
	if p.Name != nil {
		src.Name = *p.Name
	}
	if p.URL != nil {
		src.URL = *p.URL
	}
	if p.Color != nil {
		src.Color = *p.Color
	}
	if p.Enabled != nil {
		src.Enabled = *p.Enabled
	}
	return true
}

// Remove deletes the source with the given id. Unknown ids are a no-op.
// It reports whether a source was removed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return false
	}
	r.sources = slices.Delete(r.sources, i, i+1)
	return true
}

func (r *Registry) indexOf(id string) int {
	return slices.IndexFunc(r.sources, func(s model.CalendarSource) bool {
		return s.ID == id
	})
}
