package ics

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	appLog "mealcal/internal/log"
)

// MaxOccurrences bounds how many occurrences of one RRULE are enumerated,
// counting those that fall before the query window.
const MaxOccurrences = 100

// Occurrence is one concrete instance of an event.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// Occurrences returns the instances of ev intersecting [rangeStart,
// rangeEnd]. Non-recurring events yield at most one occurrence.
func Occurrences(ev VEvent, rangeStart, rangeEnd time.Time) ([]Occurrence, error) {
	if !ev.Recurring() {
		if ev.End.Before(rangeStart) || ev.Start.After(rangeEnd) {
			return nil, nil
		}
		return []Occurrence{{Start: ev.Start, End: ev.End}}, nil
	}
	return Expand(ev, rangeStart, rangeEnd)
}

// Expand walks the RRULE of ev from its DTSTART and returns the occurrences
// intersecting the window. Every occurrence keeps the original duration.
//
// Iteration ends at the first occurrence starting after rangeEnd, when the
// rule runs out, or after MaxOccurrences occurrences, whichever is first.
// Occurrences ending before rangeStart are counted but not returned.
func Expand(ev VEvent, rangeStart, rangeEnd time.Time) ([]Occurrence, error) {
	next, err := iterator(ev)
	if err != nil {
		return nil, err
	}

	dur := ev.Duration()
	var out []Occurrence
	n := 0
	for ; n < MaxOccurrences; n++ {
		start, ok := next()
		if !ok || start.After(rangeEnd) {
			break
		}
		end := start.Add(dur)
		if end.Before(rangeStart) {
			continue
		}
		out = append(out, Occurrence{Start: start, End: end})
	}
	if n == MaxOccurrences {
		appLog.Debug("ics: recurrence cap reached", "uid", ev.UID, "cap", MaxOccurrences)
	}
	return out, nil
}

// iterator builds the occurrence generator for ev's RRULE, anchored at
// DTSTART in DTSTART's own zone so wall-clock times survive DST changes.
func iterator(ev VEvent) (rrule.Next, error) {
	loc := ev.Start.Location()
	opt, err := rrule.StrToROptionInLocation(ev.rule, loc)
	if err != nil {
		return nil, fmt.Errorf("rrule %q: %w", ev.rule, err)
	}
	opt.Dtstart = ev.Start
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("rrule %q: %w", ev.rule, err)
	}
	return r.Iterator(), nil
}
