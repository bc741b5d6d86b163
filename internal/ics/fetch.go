package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	appLog "mealcal/internal/log"
	"mealcal/internal/model"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultUserAgent    = "mealcal/1.0 (+calendar fetcher)"
	DefaultMaxBodyBytes = 10 << 20
)

// FetcherOptions configures a Fetcher. Zero values pick the defaults.
type FetcherOptions struct {
	// Timeout bounds one attempt, including redirects and reading the body.
	Timeout time.Duration
	// Retries is the number of extra attempts after a transport error or
	// 5xx response. Zero disables retrying.
	Retries   int
	UserAgent string
	// MaxBodyBytes caps how much of a feed is read.
	MaxBodyBytes int64
	// Location is used for floating date-times and unknown TZIDs.
	Location *time.Location
}

// Fetcher retrieves ICS feeds over HTTP.
type Fetcher struct {
	client    *retryablehttp.Client
	userAgent string
	maxBody   int64
	location  *time.Location
}

// NewFetcher creates a Fetcher. Redirects are followed by the underlying
// http.Client.
func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{Timeout: opts.Timeout}
	client.RetryMax = opts.Retries
	client.RetryWaitMin = 250 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = nil
	// Hand the last response back so status codes end up in FetchError.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Fetcher{
		client:    client,
		userAgent: opts.UserAgent,
		maxBody:   opts.MaxBodyBytes,
		location:  opts.Location,
	}
}

// Fetch downloads the raw feed of src. Any failure is a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, src model.CalendarSource) ([]byte, error) {
	redacted := redactURL(src.URL)
	fail := func(status int, err error) error {
		return &FetchError{SourceID: src.ID, URL: redacted, StatusCode: status, Err: err}
	}

	if src.URL == "" {
		return nil, fail(0, errors.New("source URL is empty"))
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, feedURL(src.URL), nil)
	if err != nil {
		return nil, fail(0, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")

	appLog.Debug("ics fetch start", "id", src.ID, "url", redacted)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fail(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fail(resp.StatusCode, errors.New(resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, fail(0, fmt.Errorf("read body: %w", err))
	}
	if int64(len(body)) > f.maxBody {
		return nil, fail(0, fmt.Errorf("body exceeds %d bytes", f.maxBody))
	}
	if len(body) == 0 {
		return nil, fail(0, ErrEmptyBody)
	}

	appLog.Debug("ics fetch success", "id", src.ID, "url", redacted, "status", resp.StatusCode, "bytes", len(body))
	return body, nil
}

// FetchAndParse downloads and parses the VEVENTs of src.
func (f *Fetcher) FetchAndParse(ctx context.Context, src model.CalendarSource) ([]VEvent, error) {
	body, err := f.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	return Parse(src, body, f.location)
}

// Location is the zone used for floating times.
func (f *Fetcher) Location() *time.Location { return f.location }

// feedURL maps the webcal scheme used by calendar apps onto https.
func feedURL(raw string) string {
	if len(raw) > len("webcal://") && strings.EqualFold(raw[:len("webcal://")], "webcal://") {
		return "https://" + raw[len("webcal://"):]
	}
	return raw
}

// redactURL keeps scheme and host only; private feed URLs carry their
// secret in the path or query.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
