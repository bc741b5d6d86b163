package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recurring(start time.Time, dur time.Duration, rule string) VEvent {
	return VEvent{UID: "series", Title: "Series", Start: start, End: start.Add(dur), rule: rule}
}

func TestExpandWeeklyCount(t *testing.T) {
	la := mustLoad(t, "America/Los_Angeles")
	start := time.Date(2025, 7, 8, 15, 0, 0, 0, la)
	ev := recurring(start, 45*time.Minute, "FREQ=WEEKLY;COUNT=3")

	occ, err := Expand(ev, start.Add(-time.Hour), start.AddDate(0, 0, 21))
	require.NoError(t, err)
	require.Len(t, occ, 3)

	for i, o := range occ {
		assert.True(t, o.Start.Equal(start.AddDate(0, 0, 7*i)), "occurrence %d", i)
		assert.Equal(t, 45*time.Minute, o.End.Sub(o.Start))
	}
}

func TestExpandKeepsWallClockAcrossDST(t *testing.T) {
	la := mustLoad(t, "America/Los_Angeles")
	start := time.Date(2025, 10, 28, 9, 0, 0, 0, la)
	ev := recurring(start, time.Hour, "FREQ=WEEKLY;COUNT=2")

	occ, err := Expand(ev, start, start.AddDate(0, 0, 14))
	require.NoError(t, err)
	require.Len(t, occ, 2)
	assert.Equal(t, 9, occ[1].Start.In(la).Hour())
	assert.Equal(t, 7*24*time.Hour+time.Hour, occ[1].Start.Sub(occ[0].Start))
}

func TestExpandStopsAtRangeEnd(t *testing.T) {
	start := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	ev := recurring(start, time.Hour, "FREQ=DAILY")

	occ, err := Expand(ev, start, start.AddDate(0, 0, 4))
	require.NoError(t, err)
	assert.Len(t, occ, 5)
}

func TestExpandDropsOccurrencesBeforeRange(t *testing.T) {
	start := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	ev := recurring(start, time.Hour, "FREQ=DAILY;COUNT=10")

	rangeStart := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	occ, err := Expand(ev, rangeStart, rangeStart.AddDate(0, 0, 2))
	require.NoError(t, err)
	require.Len(t, occ, 2)
	assert.True(t, occ[0].Start.Equal(time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC)))
}

func TestExpandCapsUnboundedRules(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ev := recurring(start, time.Minute, "FREQ=MINUTELY;INTERVAL=5")

	occ, err := Expand(ev, start, start.AddDate(10, 0, 0))
	require.NoError(t, err)
	assert.Len(t, occ, MaxOccurrences)
}

func TestExpandCapCountsSkippedOccurrences(t *testing.T) {
	start := time.Date(2020, 1, 1, 9, 0, 0, 0, time.UTC)
	ev := recurring(start, time.Hour, "FREQ=DAILY")

	// The first 100 days are all before the window.
	rangeStart := start.AddDate(1, 0, 0)
	occ, err := Expand(ev, rangeStart, rangeStart.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Empty(t, occ)
}

func TestExpandAllDay(t *testing.T) {
	start := time.Date(2025, 7, 7, 0, 0, 0, 0, time.UTC)
	ev := VEvent{UID: "bins", Start: start, End: start.AddDate(0, 0, 1), AllDay: true, rule: "FREQ=WEEKLY;BYDAY=MO"}

	occ, err := Expand(ev, start, start.AddDate(0, 0, 20))
	require.NoError(t, err)
	require.Len(t, occ, 3)
	for _, o := range occ {
		assert.Equal(t, time.Monday, o.Start.Weekday())
		assert.Equal(t, 24*time.Hour, o.End.Sub(o.Start))
	}
}

func TestExpandInvalidRule(t *testing.T) {
	ev := recurring(time.Now(), time.Hour, "FREQ=SOMETIMES")
	_, err := Expand(ev, time.Now(), time.Now().Add(time.Hour))
	assert.Error(t, err)
}

func TestOccurrencesSingleEvent(t *testing.T) {
	start := time.Date(2025, 7, 8, 15, 0, 0, 0, time.UTC)
	ev := VEvent{UID: "one", Start: start, End: start.Add(time.Hour)}

	occ, err := Occurrences(ev, start.Add(-24*time.Hour), start)
	require.NoError(t, err)
	require.Len(t, occ, 1)

	occ, err = Occurrences(ev, start.Add(2*time.Hour), start.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, occ)

	occ, err = Occurrences(ev, start.Add(-48*time.Hour), start.Add(-time.Second))
	require.NoError(t, err)
	assert.Empty(t, occ)
}
