// Package tz keeps all instant <-> wall clock arithmetic in one place so the
// rest of the code only deals with UTC instants plus an IANA zone name.
package tz

import (
	"errors"
	"time"

	appLog "mealcal/internal/log"
	"mealcal/internal/model"
)

// FallbackZone is used when neither the caller nor the configuration
// provides a loadable zone.
const FallbackZone = "UTC"

// WallClock is what a person in a given zone reads off the clock.
type WallClock struct {
	Year       int
	Month      time.Month
	Day        int
	Hour       int
	Minute     int
	Second     int
	Nanosecond int
}

// ResolveTimezone returns candidate when it names a loadable zone, otherwise
// fallback, otherwise FallbackZone. It never fails.
func ResolveTimezone(candidate, fallback string) string {
	for _, name := range []string{candidate, fallback} {
		if name == "" {
			continue
		}
		if _, err := time.LoadLocation(name); err == nil {
			return name
		}
		appLog.Debug("tz: ignoring unknown zone", "zone", name)
	}
	return FallbackZone
}

// Location loads zone, falling back to UTC for unknown names.
func Location(zone string) *time.Location {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ToZone projects instant onto the wall clock of zone.
func ToZone(instant time.Time, zone string) WallClock {
	t := instant.In(Location(zone))
	return WallClock{
		Year:       t.Year(),
		Month:      t.Month(),
		Day:        t.Day(),
		Hour:       t.Hour(),
		Minute:     t.Minute(),
		Second:     t.Second(),
		Nanosecond: t.Nanosecond(),
	}
}

// FromZone interprets w as local time in zone and returns the instant.
//
// When w occurs twice (DST fold) the earlier instant wins. When w does not
// exist (DST gap) it is read with the offset in effect before the
// transition, which moves it forward by the size of the gap.
func FromZone(w WallClock, zone string) time.Time {
	loc := Location(zone)
	naive := time.Date(w.Year, w.Month, w.Day, w.Hour, w.Minute, w.Second, w.Nanosecond, time.UTC)

	// Offsets a day and a half either side cover any single transition.
	_, before := naive.Add(-36 * time.Hour).In(loc).Zone()
	_, after := naive.Add(36 * time.Hour).In(loc).Zone()

	var (
		best  time.Time
		found bool
	)
	for _, off := range []int{before, after} {
		inst := naive.Add(-time.Duration(off) * time.Second)
		if ToZone(inst, zone) != w {
			continue
		}
		if !found || inst.Before(best) {
			best, found = inst, true
		}
	}
	if !found {
		best = naive.Add(-time.Duration(before) * time.Second)
	}
	return best.UTC()
}

// DayBounds returns the first and last millisecond of the local calendar
// day containing instant.
func DayBounds(instant time.Time, zone string) (start, end time.Time) {
	w := ToZone(instant, zone)
	start = FromZone(WallClock{Year: w.Year, Month: w.Month, Day: w.Day}, zone)
	end = FromZone(WallClock{
		Year: w.Year, Month: w.Month, Day: w.Day,
		Hour: 23, Minute: 59, Second: 59, Nanosecond: int(999 * time.Millisecond),
	}, zone)
	return start, end
}

// ShouldShowEvent applies the hour filter. A nil filterHour disables it and
// all-day events always pass; otherwise the event's local start hour in
// zone must be at least *filterHour.
func ShouldShowEvent(ev model.CalendarEvent, filterHour *int, zone string) bool {
	if filterHour == nil || ev.AllDay {
		return true
	}
	return ToZone(ev.Start, zone).Hour >= *filterHour
}

// SameDate reports whether w and o fall on the same calendar date.
func (w WallClock) SameDate(o WallClock) bool {
	return w.Year == o.Year && w.Month == o.Month && w.Day == o.Day
}

// Date returns the calendar date of w as a UTC midnight, handy for
// comparing dates across zones.
func (w WallClock) Date() time.Time {
	return time.Date(w.Year, w.Month, w.Day, 0, 0, 0, 0, time.UTC)
}

// ErrBadBound is returned by ParseBound for values that are neither RFC3339
// nor YYYY-MM-DD.
var ErrBadBound = errors.New("want RFC3339 or YYYY-MM-DD")

// ParseBound reads an RFC3339 instant, or a YYYY-MM-DD date taken as the
// first millisecond of that local day in zone (the last one when endOfDay
// is set). An empty value yields the zero time.
func ParseBound(raw, zone string, endOfDay bool) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, ErrBadBound
	}
	start, end := DayBounds(LocalNoon(d, zone), zone)
	if endOfDay {
		return end, nil
	}
	return start, nil
}

// LocalNoon is 12:00 on the calendar date of d in zone. Noon is never
// inside a DST transition, so it names the day unambiguously.
func LocalNoon(d time.Time, zone string) time.Time {
	return FromZone(WallClock{Year: d.Year(), Month: d.Month(), Day: d.Day(), Hour: 12}, zone)
}
