package ics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealcal/internal/model"
)

var testSource = model.CalendarSource{ID: "src", Name: "Test", URL: "https://example.com/feed.ics", Enabled: true}

func calendar(body ...string) []byte {
	lines := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN"}, body...)
	lines = append(lines, "END:VCALENDAR")
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestParseAllDayEvent(t *testing.T) {
	body := calendar(
		"BEGIN:VEVENT",
		"UID:allday-1",
		"SUMMARY:Farmers market",
		"DTSTART;VALUE=DATE:20250708",
		"END:VEVENT",
	)

	events, err := Parse(testSource, body, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.True(t, ev.AllDay)
	assert.Equal(t, "allday-1", ev.UID)
	assert.Equal(t, "Farmers market", ev.Title)
	assert.Equal(t, time.Date(2025, 7, 8, 0, 0, 0, 0, time.UTC), ev.Start)
	assert.Equal(t, time.Date(2025, 7, 9, 0, 0, 0, 0, time.UTC), ev.End)
	assert.False(t, ev.Recurring())
}

func TestParseDateWithoutValueParamIsAllDay(t *testing.T) {
	body := calendar(
		"BEGIN:VEVENT",
		"UID:a",
		"DTSTART:20250708",
		"DTEND:20250710",
		"END:VEVENT",
	)

	events, err := Parse(testSource, body, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].AllDay)
	assert.Equal(t, 48*time.Hour, events[0].Duration())
}

func TestParseTimedEventZones(t *testing.T) {
	la := mustLoad(t, "America/Los_Angeles")
	body := calendar(
		"BEGIN:VEVENT",
		"UID:utc",
		"DTSTART:20250708T150000Z",
		"DTEND:20250708T160000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:tzid",
		"DTSTART;TZID=Europe/Berlin:20250708T150000",
		"DURATION:PT1H30M",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:floating",
		"DTSTART:20250708T150000",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:unknown-zone",
		"DTSTART;TZID=Custom/Nowhere:20250708T150000",
		"END:VEVENT",
	)

	events, err := Parse(testSource, body, la)
	require.NoError(t, err)
	require.Len(t, events, 4)

	byUID := map[string]VEvent{}
	for _, ev := range events {
		assert.False(t, ev.AllDay, ev.UID)
		byUID[ev.UID] = ev
	}

	assert.True(t, byUID["utc"].Start.Equal(time.Date(2025, 7, 8, 15, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Hour, byUID["utc"].Duration())

	assert.True(t, byUID["tzid"].Start.Equal(time.Date(2025, 7, 8, 13, 0, 0, 0, time.UTC)))
	assert.Equal(t, 90*time.Minute, byUID["tzid"].Duration())

	// Floating and unknown zones are read in the default zone.
	want := time.Date(2025, 7, 8, 22, 0, 0, 0, time.UTC)
	assert.True(t, byUID["floating"].Start.Equal(want))
	assert.True(t, byUID["floating"].End.Equal(want))
	assert.True(t, byUID["unknown-zone"].Start.Equal(want))
}

func TestParseDefaultsAndSkips(t *testing.T) {
	body := calendar(
		"BEGIN:VEVENT",
		"UID:no-start",
		"SUMMARY:Nowhere",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:bad-start",
		"DTSTART:not-a-date",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:untitled",
		"DTSTART:20250708T090000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"SUMMARY:Pasta night\\, with friends",
		"DTSTART:20250709T180000Z",
		"END:VEVENT",
		"BEGIN:VTODO",
		"UID:todo",
		"DTSTART:20250708T090000Z",
		"END:VTODO",
	)

	events, err := Parse(testSource, body, nil)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "untitled", events[0].UID)
	assert.Equal(t, DefaultTitle, events[0].Title)

	assert.Equal(t, "Pasta night, with friends", events[1].Title)
	assert.True(t, strings.HasPrefix(events[1].UID, "nouid-"))

	// The synthesised UID is stable across parses.
	again, err := Parse(testSource, body, nil)
	require.NoError(t, err)
	assert.Equal(t, events[1].UID, again[1].UID)
}

func TestParseSummaryEscapes(t *testing.T) {
	body := calendar(
		"BEGIN:VEVENT",
		"UID:escapes",
		"SUMMARY:Pasta\\, salad\\nline \\\\n lit",
		"DTSTART:20250709T180000Z",
		"END:VEVENT",
	)

	events, err := Parse(testSource, body, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	// An escaped backslash stays a backslash and is not read as a newline.
	assert.Equal(t, "Pasta, salad\nline \\n lit", events[0].Title)
}

func TestParseEndBeforeStartIsClamped(t *testing.T) {
	body := calendar(
		"BEGIN:VEVENT",
		"UID:x",
		"DTSTART:20250708T100000Z",
		"DTEND:20250708T090000Z",
		"END:VEVENT",
	)
	events, err := Parse(testSource, body, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, events[0].Start, events[0].End)
}

func TestParseKeepsRRule(t *testing.T) {
	body := calendar(
		"BEGIN:VEVENT",
		"UID:weekly",
		"DTSTART:20250708T150000Z",
		"RRULE:FREQ=WEEKLY;COUNT=3",
		"END:VEVENT",
	)
	events, err := Parse(testSource, body, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Recurring())
}

func TestParseRejectsNonCalendar(t *testing.T) {
	_, err := Parse(testSource, []byte("<html><body>Sign in</body></html>"), nil)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "src", perr.SourceID)

	_, err = Parse(testSource, nil, nil)
	require.True(t, errors.As(err, &perr))
	assert.ErrorIs(t, err, ErrEmptyBody)
}

func TestParseCalendarTree(t *testing.T) {
	root, err := ParseCalendar(calendar(
		"BEGIN:VEVENT",
		"UID:e1",
		"DTSTART;TZID=Europe/Paris:20250708T090000",
		"BEGIN:VALARM",
		"ACTION:DISPLAY",
		"END:VALARM",
		"END:VEVENT",
	))
	require.NoError(t, err)

	assert.Equal(t, "VCALENDAR", root.Name)
	v, ok := root.Property("version")
	require.True(t, ok)
	assert.Equal(t, "2.0", v.Value)

	events := root.Children("VEVENT")
	require.Len(t, events, 1)
	start, ok := events[0].Property("DTSTART")
	require.True(t, ok)
	tzid, ok := start.Param("tzid")
	require.True(t, ok)
	assert.Equal(t, "Europe/Paris", tzid)
	assert.Len(t, events[0].Children("VALARM"), 1)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"PT1H", time.Hour, true},
		{"PT1H30M", 90 * time.Minute, true},
		{"P1D", 24 * time.Hour, true},
		{"P1W", 7 * 24 * time.Hour, true},
		{"P1DT2H", 26 * time.Hour, true},
		{"-PT15M", -15 * time.Minute, true},
		{"PT", 0, false},
		{"1H", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDuration(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
