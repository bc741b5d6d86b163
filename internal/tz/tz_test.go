package tz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealcal/internal/model"
)

const la = "America/Los_Angeles"

func intPtr(v int) *int { return &v }

func TestResolveTimezone(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		fallback  string
		want      string
	}{
		{name: "candidate wins", candidate: "Europe/Berlin", fallback: la, want: "Europe/Berlin"},
		{name: "empty candidate", candidate: "", fallback: la, want: la},
		{name: "unknown candidate", candidate: "Mars/Olympus", fallback: la, want: la},
		{name: "nothing usable", candidate: "Nope/Nope", fallback: "", want: FallbackZone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveTimezone(tt.candidate, tt.fallback))
		})
	}
}

func TestToZoneAcrossDST(t *testing.T) {
	winter := ToZone(time.Date(2025, 1, 15, 20, 0, 0, 0, time.UTC), la)
	assert.Equal(t, 12, winter.Hour)

	summer := ToZone(time.Date(2025, 7, 15, 20, 0, 0, 0, time.UTC), la)
	assert.Equal(t, 13, summer.Hour)
	assert.Equal(t, 15, summer.Day)
}

func TestFromZoneRoundTrip(t *testing.T) {
	zones := []string{la, "Europe/London", "Asia/Kolkata", "Australia/Lord_Howe", "UTC"}
	base := time.Date(2024, 1, 1, 0, 17, 3, 250, time.UTC)

	for _, zone := range zones {
		for i := 0; i < 24*400; i += 7 {
			instant := base.Add(time.Duration(i) * time.Hour)
			got := FromZone(ToZone(instant, zone), zone)
			if got.Equal(instant) {
				continue
			}
			// Only a fold may map back to a different instant, and then
			// it must be the earlier reading of the same wall clock.
			require.True(t, got.Before(instant), "zone %s instant %s got %s", zone, instant, got)
			require.Equal(t, ToZone(instant, zone), ToZone(got, zone))
		}
	}
}

func TestFromZoneFoldPrefersEarlier(t *testing.T) {
	w := WallClock{Year: 2025, Month: time.November, Day: 2, Hour: 1, Minute: 30}

	first := FromZone(w, la)
	assert.Equal(t, time.Date(2025, 11, 2, 8, 30, 0, 0, time.UTC), first)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, FromZone(w, la))
	}
}

func TestFromZoneGapMovesForward(t *testing.T) {
	w := WallClock{Year: 2025, Month: time.March, Day: 9, Hour: 2, Minute: 30}

	got := FromZone(w, la)
	assert.Equal(t, time.Date(2025, 3, 9, 10, 30, 0, 0, time.UTC), got)
	assert.Equal(t, 3, ToZone(got, la).Hour)
}

func TestDayBounds(t *testing.T) {
	instant := time.Date(2025, 7, 9, 3, 0, 0, 0, time.UTC) // 8 July, 20:00 in LA

	start, end := DayBounds(instant, la)
	assert.Equal(t, time.Date(2025, 7, 8, 7, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 7, 9, 6, 59, 59, int(999*time.Millisecond), time.UTC), end)

	// Spring-forward day is 23 hours long.
	start, end = DayBounds(time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC), la)
	assert.Equal(t, 23*time.Hour, end.Sub(start)+time.Millisecond)
}

func TestShouldShowEventAllDayAlwaysPasses(t *testing.T) {
	ev := model.CalendarEvent{
		Start:  time.Date(2025, 7, 8, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2025, 7, 9, 0, 0, 0, 0, time.UTC),
		AllDay: true,
	}
	for h := 0; h <= 23; h++ {
		assert.True(t, ShouldShowEvent(ev, intPtr(h), la), "hour %d", h)
	}
}

func TestShouldShowEventThreshold(t *testing.T) {
	at := func(hour, minute int) model.CalendarEvent {
		start := FromZone(WallClock{Year: 2025, Month: time.July, Day: 8, Hour: hour, Minute: minute}, la)
		return model.CalendarEvent{Start: start, End: start.Add(time.Hour)}
	}

	assert.True(t, ShouldShowEvent(at(15, 59), nil, la))
	assert.False(t, ShouldShowEvent(at(15, 59), intPtr(16), la))
	assert.True(t, ShouldShowEvent(at(16, 0), intPtr(16), la))
	assert.True(t, ShouldShowEvent(at(0, 0), intPtr(0), la))

	// The same instant is evaluated in the viewer's zone.
	assert.True(t, ShouldShowEvent(at(15, 0), intPtr(16), "America/New_York"))
}

func TestParseBound(t *testing.T) {
	got, err := ParseBound("", la, false)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = ParseBound("2025-07-08T10:00:00+02:00", la, true)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 7, 8, 8, 0, 0, 0, time.UTC)))

	got, err = ParseBound("2025-11-02", la, false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 11, 2, 7, 0, 0, 0, time.UTC), got)

	got, err = ParseBound("2025-11-02", la, true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 11, 3, 7, 59, 59, int(999*time.Millisecond), time.UTC), got, "25 hour day")

	_, err = ParseBound("11/02/2025", la, false)
	assert.ErrorIs(t, err, ErrBadBound)
}
