package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/justinas/alice"
	"golang.org/x/time/rate"

	"mealcal/internal/calendar"
	"mealcal/internal/config"
	appLog "mealcal/internal/log"
	"mealcal/internal/model"
	"mealcal/internal/sources"
	"mealcal/internal/tz"
)

// Cache-bypassing requests are allowed in a burst, then one per interval.
const (
	forcedFetchInterval = 10 * time.Second
	forcedFetchBurst    = 3
)

// Events is the aggregator surface exposed over HTTP.
type Events interface {
	ResolveZone(candidate string) string
	FetchCalendarEvents(ctx context.Context, start, end time.Time, zone string) []model.CalendarEvent
	GetEventsForDate(ctx context.Context, date time.Time, zone string) []model.CalendarEvent
	ClearCache()
	TestSources(ctx context.Context) map[string]calendar.SourceReport
}

// Sources is the registry surface exposed over HTTP.
type Sources interface {
	List() []model.CalendarSource
	Get(id string) (model.CalendarSource, bool)
	Add(in sources.NewSource) model.CalendarSource
	Update(id string, p sources.Patch) bool
	Remove(id string) bool
}

// Server provides the JSON API over the aggregator and registry.
type Server struct {
	cfg     *config.Config
	events  Events
	sources Sources
	mux     *http.ServeMux
	now     func() time.Time
	// fetches throttles the endpoints that bypass the cache.
	fetches *rate.Limiter
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, events Events, srcs Sources) *Server {
	s := &Server{
		cfg:     cfg,
		events:  events,
		sources: srcs,
		mux:     http.NewServeMux(),
		now:     time.Now,
		fetches: rate.NewLimiter(rate.Every(forcedFetchInterval), forcedFetchBurst),
	}
	s.registerRoutes()
	return s
}

// Handler returns the API wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	chain := alice.New(recoverer, requestLogger, securityHeaders)
	if s.cfg != nil && len(s.cfg.CORSOrigins) > 0 {
		chain = chain.Append(corsHandler(s.cfg.CORSOrigins))
	}
	if s.cfg != nil && s.cfg.BasicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		chain = chain.Append(basicAuth(s.cfg.BasicAuth.Username, s.cfg.BasicAuth.Password))
	}
	return chain.Then(s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/events/day", s.handleDay)
	s.mux.Handle("POST /api/events/refresh", s.limit(http.HandlerFunc(s.handleRefresh)))

	s.mux.HandleFunc("GET /api/sources", s.handleListSources)
	s.mux.HandleFunc("POST /api/sources", s.handleAddSource)
	s.mux.Handle("GET /api/sources/test", s.limit(http.HandlerFunc(s.handleTestSources)))
	s.mux.HandleFunc("GET /api/sources/{id}", s.handleGetSource)
	s.mux.HandleFunc("PATCH /api/sources/{id}", s.handleUpdateSource)
	s.mux.HandleFunc("DELETE /api/sources/{id}", s.handleRemoveSource)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventsResponse is the JSON response shape for /api/events and
// /api/events/day.
type eventsResponse struct {
	Events     []model.CalendarEvent `json:"events"`
	RangeStart time.Time             `json:"range_start"`
	RangeEnd   time.Time             `json:"range_end"`
	TimeZone   string                `json:"timezone"`
}

// handleEvents returns merged events for a window.
//
// GET /api/events?start=...&end=...&tz=...
//   - start: RFC3339 instant or YYYY-MM-DD (local midnight); default today
//   - end:   RFC3339 instant or YYYY-MM-DD (end of that local day);
//     default start plus horizon_days
//   - tz:    IANA zone, else the X-Timezone header, else the configured zone
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	zone := s.requestZone(r)
	q := r.URL.Query()

	start, err := tz.ParseBound(q.Get("start"), zone, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start: "+err.Error())
		return
	}
	if start.IsZero() {
		start, _ = tz.DayBounds(s.now(), zone)
	}
	end, err := tz.ParseBound(q.Get("end"), zone, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end: "+err.Error())
		return
	}
	if end.IsZero() {
		end = start.AddDate(0, 0, s.horizonDays())
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end is before start")
		return
	}

	appLog.Debug("api events request",
		"range_start", start.Format(time.RFC3339),
		"range_end", end.Format(time.RFC3339),
		"timezone", zone,
	)

	writeJSON(w, http.StatusOK, eventsResponse{
		Events:     s.events.FetchCalendarEvents(r.Context(), start, end, zone),
		RangeStart: start,
		RangeEnd:   end,
		TimeZone:   zone,
	})
}

// handleDay returns the events on one local calendar day.
//
// GET /api/events/day?date=YYYY-MM-DD&tz=...
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	zone := s.requestZone(r)

	instant := s.now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date: want YYYY-MM-DD")
			return
		}
		instant = tz.LocalNoon(d, zone)
	}
	start, end := tz.DayBounds(instant, zone)

	writeJSON(w, http.StatusOK, eventsResponse{
		Events:     s.events.GetEventsForDate(r.Context(), instant, zone),
		RangeStart: start,
		RangeEnd:   end,
		TimeZone:   zone,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	s.events.ClearCache()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleListSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sources.List())
}

func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	src, ok := s.sources.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}
	writeJSON(w, http.StatusOK, src)
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var in sources.NewSource
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.Name = strings.TrimSpace(in.Name)
	in.URL = strings.TrimSpace(in.URL)
	if in.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := validateFeedURL(in.URL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	src := s.sources.Add(in)
	s.events.ClearCache()
	writeJSON(w, http.StatusCreated, src)
}

func (s *Server) handleUpdateSource(w http.ResponseWriter, r *http.Request) {
	var p sources.Patch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if p.URL != nil {
		u := strings.TrimSpace(*p.URL)
		if err := validateFeedURL(u); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		p.URL = &u
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, "name must not be empty")
			return
		}
		p.Name = &name
	}

	id := r.PathValue("id")
	if !s.sources.Update(id, p) {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}
	s.events.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveSource(w http.ResponseWriter, r *http.Request) {
	if !s.sources.Remove(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}
	s.events.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTestSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.events.TestSources(r.Context()))
}

// requestZone picks the viewer's zone from ?tz= or X-Timezone.
func (s *Server) requestZone(r *http.Request) string {
	candidate := r.URL.Query().Get("tz")
	if candidate == "" {
		candidate = r.Header.Get("X-Timezone")
	}
	return s.events.ResolveZone(candidate)
}

func (s *Server) horizonDays() int {
	if s.cfg == nil || s.cfg.HorizonDays <= 0 {
		return config.DefaultHorizonDays
	}
	return s.cfg.HorizonDays
}

func validateFeedURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return errors.New("url must be an absolute http(s) URL")
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "webcal":
		return nil
	}
	return fmt.Errorf("unsupported url scheme %q", u.Scheme)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
