package model

import "time"

// CalendarSource is one configured ICS feed.
type CalendarSource struct {
	// ID is assigned when the source is added and never changes.
	ID string `json:"id" yaml:"id"`
	// Name is the display name shown next to the source's events.
	Name string `json:"name" yaml:"name"`
	// URL is the ICS endpoint.
	URL string `json:"url" yaml:"url"`
	// Color is a display hint; core logic never interprets it.
	Color   string `json:"color" yaml:"color"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// CalendarEvent is a single concrete event (or recurrence occurrence)
// produced for one query window. It is rebuilt on every fetch.
type CalendarEvent struct {
	// ID is "<source id>-<uid>" for single events and
	// "<source id>-<uid>-<start unix ms>" for expanded occurrences.
	ID    string `json:"id"`
	Title string `json:"title"`

	// For all-day events Start and End are UTC midnights of the first day
	// and of the day after the last day.
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	AllDay bool      `json:"all_day"`

	// Source is the display name of the originating CalendarSource.
	Source string `json:"source"`
	Color  string `json:"color"`
}
