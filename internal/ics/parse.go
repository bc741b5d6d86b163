package ics

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	appLog "mealcal/internal/log"
	"mealcal/internal/model"
)

// DefaultTitle is used for events without a SUMMARY.
const DefaultTitle = "Untitled Event"

// VEvent is the part of a VEVENT the aggregator needs.
type VEvent struct {
	UID   string
	Title string

	// Start/End are instants. For all-day events they are UTC midnights and
	// End is exclusive.
	Start  time.Time
	End    time.Time
	AllDay bool

	// rule is the raw RRULE value; only the expander interprets it.
	rule string
}

// Recurring reports whether the event carries an RRULE.
func (e VEvent) Recurring() bool { return e.rule != "" }

// Duration is End - Start.
func (e VEvent) Duration() time.Duration { return e.End.Sub(e.Start) }

// Parse parses body and extracts its VEVENTs. Floating date-times and
// unknown TZIDs are read in floating; nil means UTC.
func Parse(src model.CalendarSource, body []byte, floating *time.Location) ([]VEvent, error) {
	if len(body) == 0 {
		return nil, &ParseError{SourceID: src.ID, Err: ErrEmptyBody}
	}
	root, err := ParseCalendar(body)
	if err != nil {
		return nil, &ParseError{SourceID: src.ID, Err: err}
	}
	if floating == nil {
		floating = time.UTC
	}

	vevents := root.Children("VEVENT")
	events := make([]VEvent, 0, len(vevents))
	skipped := 0
	for _, c := range vevents {
		ev, err := eventFromComponent(c, floating)
		if err != nil {
			skipped++
			appLog.Warn("ics: skipping vevent", "id", src.ID, "reason", err.Error())
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics: parse completed", "id", src.ID, "event_count", len(events), "skipped", skipped)
	return events, nil
}

var errNoStart = errors.New("missing DTSTART")

func eventFromComponent(c Component, floating *time.Location) (VEvent, error) {
	var ev VEvent

	dtstart, ok := c.Property("DTSTART")
	if !ok || strings.TrimSpace(dtstart.Value) == "" {
		return ev, errNoStart
	}
	start, allDay, err := parseDateTime(dtstart, floating)
	if err != nil {
		return ev, fmt.Errorf("DTSTART: %w", err)
	}
	ev.Start = start
	ev.AllDay = allDay

	switch {
	case hasProperty(c, "DTEND"):
		p, _ := c.Property("DTEND")
		end, _, err := parseDateTime(p, floating)
		if err != nil {
			return ev, fmt.Errorf("DTEND: %w", err)
		}
		ev.End = end
	case hasProperty(c, "DURATION"):
		p, _ := c.Property("DURATION")
		d, err := parseDuration(p.Value)
		if err != nil {
			return ev, fmt.Errorf("DURATION: %w", err)
		}
		ev.End = start.Add(d)
	case allDay:
		ev.End = start.AddDate(0, 0, 1)
	default:
		ev.End = start
	}
	if ev.End.Before(ev.Start) {
		ev.End = ev.Start
	}

	ev.Title = DefaultTitle
	if p, ok := c.Property("SUMMARY"); ok {
		if s := strings.TrimSpace(p.Value); s != "" {
			ev.Title = s
		}
	}

	if p, ok := c.Property("UID"); ok && strings.TrimSpace(p.Value) != "" {
		ev.UID = strings.TrimSpace(p.Value)
	} else {
		ev.UID = syntheticUID(dtstart.Value, ev.Title)
	}

	if p, ok := c.Property("RRULE"); ok {
		ev.rule = strings.TrimSpace(p.Value)
	}
	return ev, nil
}

func hasProperty(c Component, name string) bool {
	_, ok := c.Property(name)
	return ok
}

// parseDateTime reads a DATE or DATE-TIME property. The bool result is true
// for DATE values, which come back as UTC midnight.
func parseDateTime(p Property, floating *time.Location) (time.Time, bool, error) {
	v := strings.TrimSpace(p.Value)
	kind, _ := p.Param("VALUE")

	if strings.EqualFold(kind, "DATE") || !strings.Contains(v, "T") {
		t, err := time.ParseInLocation("20060102", v, time.UTC)
		return t, true, err
	}

	if strings.HasSuffix(v, "Z") {
		t, err := time.ParseInLocation("20060102T150405Z", v, time.UTC)
		return t, false, err
	}

	loc := floating
	if tzid, ok := p.Param("TZID"); ok {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		} else {
			appLog.Debug("ics: unknown TZID, using default zone", "tzid", tzid, "zone", floating.String())
		}
	}
	t, err := time.ParseInLocation("20060102T150405", v, loc)
	return t, false, err
}

var durationRe = regexp.MustCompile(`^([+-])?P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseDuration parses an RFC 5545 DURATION value such as PT1H30M or P1D.
func parseDuration(v string) (time.Duration, error) {
	m := durationRe.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil || v == "P" || v == "PT" {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	units := []time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, unit := range units {
		if m[i+2] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+2])
		if err != nil {
			return 0, err
		}
		d += time.Duration(n) * unit
	}
	if m[1] == "-" {
		d = -d
	}
	return d, nil
}

// syntheticUID derives a stable id for events that omit UID.
func syntheticUID(dtstart, title string) string {
	sum := sha256.Sum256([]byte(dtstart + "\x00" + title))
	return "nouid-" + hex.EncodeToString(sum[:8])
}
