package calendar

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"mealcal/internal/ics"
	appLog "mealcal/internal/log"
)

// SourceReport is the health of one source as seen by TestSources.
type SourceReport struct {
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	EventCount   int    `json:"event_count,omitempty"`
	ResponseSize int    `json:"response_size,omitempty"`
}

// TestSources fetches and parses every enabled source without touching
// the cache or expanding recurrences. Reports are keyed by source name;
// a repeated name gets the source id appended.
func (s *Service) TestSources(ctx context.Context) map[string]SourceReport {
	srcs := s.sources.ListEnabled()
	reports := make(map[string]SourceReport, len(srcs))

	keys := make([]string, len(srcs))
	for i, src := range srcs {
		key := src.Name
		if _, taken := reports[key]; taken {
			key = fmt.Sprintf("%s (%s)", src.Name, src.ID)
		}
		reports[key] = SourceReport{}
		keys[i] = key
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.concurrency)
	for i, src := range srcs {
		g.Go(func() error {
			var rep SourceReport
			body, err := s.feed.Fetch(ctx, src)
			if err == nil {
				rep.ResponseSize = len(body)
				var events []ics.VEvent
				events, err = ics.Parse(src, body, s.feed.Location())
				rep.EventCount = len(events)
			}
			if err != nil {
				rep.Error = err.Error()
				appLog.Info("diagnostics: source unhealthy", "id", src.ID, "name", src.Name, "error", err.Error())
			} else {
				rep.Success = true
			}

			mu.Lock()
			reports[keys[i]] = rep
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return reports
}
