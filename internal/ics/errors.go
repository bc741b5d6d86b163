package ics

import (
	"errors"
	"fmt"
)

// ErrEmptyBody is wrapped in a FetchError when a feed answers with no content.
var ErrEmptyBody = errors.New("empty ICS body")

// FetchError reports a transport failure, a non-2xx status or an empty body
// for one source.
type FetchError struct {
	SourceID string
	URL      string // already redacted
	// StatusCode is zero when no response was received.
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s (%s): status %d", e.SourceID, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s (%s): %v", e.SourceID, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a body that is not iCalendar.
type ParseError struct {
	SourceID string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.SourceID, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
