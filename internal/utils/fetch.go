// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const (
	defaultAccept       = "application/json"
	defaultPerPage      = "100"
	defaultFetchTimeout = time.Minute
	instrumentationName = "github.com/andrewkroh/github-org-explorer/internal/utils"
)

// Sentinel errors for fetch operations.
var (
	ErrUnauthorized = errors.New("utils: unauthorized (invalid or revoked token)")
	ErrNotFound     = errors.New("utils: resource not found")
	ErrRateLimited  = errors.New("utils: API rate limit exceeded")
)

// StatusError is returned for responses with an unexpected status code.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("utils: unexpected status %d: %s", e.StatusCode, e.Body)
}

// linkNextRE matches the "next" relation in a Link header value.
var linkNextRE = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// Cache stores fetched responses by URL.
//
// Positive hit: (value, nil, true)
// Negative hit: (nil, err, true)
// Miss:         (nil, nil, false)
type Cache interface {
	Get(key string) (any, error, bool)
	Set(key string, value any, err error)
	Delete(key string)
}

// page is one decoded response and the URL of the page after it, if any.
type page struct {
	body any
	next string
}

// Fetcher retrieves and decodes JSON documents over HTTP.
type Fetcher struct {
	httpClient    *http.Client
	log           *slog.Logger
	token         string
	accept        string
	userAgent     string
	cache         Cache
	maxTries      uint
	retryInterval time.Duration
	fetchTimeout  time.Duration

	group    singleflight.Group
	tracer   trace.Tracer
	requests metric.Int64Counter
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient = hc
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.log = l
	}
}

// WithToken sends the token as a Bearer Authorization header.
func WithToken(token string) FetcherOption {
	return func(f *Fetcher) {
		f.token = token
	}
}

// WithAccept sets the Accept header.
func WithAccept(accept string) FetcherOption {
	return func(f *Fetcher) {
		f.accept = accept
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithCache caches responses by URL.
func WithCache(c Cache) FetcherOption {
	return func(f *Fetcher) {
		f.cache = c
	}
}

// WithMaxTries sets how many times a request is attempted when it fails
// with a transport error or a 5xx status. Values below 1 are treated as 1.
func WithMaxTries(n uint) FetcherOption {
	return func(f *Fetcher) {
		f.maxTries = max(n, 1)
	}
}

// WithRetryInterval sets the initial back-off between attempts.
func WithRetryInterval(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.retryInterval = d
	}
}

// WithFetchTimeout bounds a shared upstream fetch, retries included.
// Callers waiting on the fetch give up earlier when their own context ends.
func WithFetchTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.fetchTimeout = d
	}
}

// NewFetcher creates a Fetcher. By default it uses http.DefaultClient,
// slog.Default(), no cache and a single attempt per request.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	meter := otel.Meter(instrumentationName)
	requests, _ := meter.Int64Counter("github_explorer.fetch.requests",
		metric.WithDescription("Number of HTTP requests made by the JSON fetcher"),
	)

	f := &Fetcher{
		httpClient:    http.DefaultClient,
		log:           slog.Default(),
		accept:        defaultAccept,
		maxTries:      1,
		retryInterval: 500 * time.Millisecond,
		fetchTimeout:  defaultFetchTimeout,
		tracer:        otel.Tracer(instrumentationName),
		requests:      requests,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var defaultFetcher = NewFetcher()

// GetJSON fetches rawURL with the default Fetcher.
func GetJSON(ctx context.Context, rawURL string) (any, error) {
	return defaultFetcher.GetJSON(ctx, rawURL)
}

// GetJSON fetches rawURL and returns the decoded JSON body. Objects decode
// to map[string]any and arrays to []any. The returned value may be shared
// with other callers and must not be modified.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string) (any, error) {
	p, err := f.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return p.body, nil
}

// GetJSONList fetches a JSON array, following Link rel="next" pagination
// and concatenating the pages. When rawURL carries no per_page parameter,
// per_page=100 is added.
func (f *Fetcher) GetJSONList(ctx context.Context, rawURL string) ([]any, error) {
	ctx, span := f.tracer.Start(ctx, "fetch.get_json_list")
	defer span.End()

	var all []any
	next := withPerPage(rawURL)
	pages := 0

	for next != "" {
		p, err := f.fetch(ctx, next)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		items, ok := p.body.([]any)
		if !ok {
			err := fmt.Errorf("utils: expected JSON array from %s, got %T", next, p.body)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		all = append(all, items...)
		next = p.next
		pages++
	}

	span.SetAttributes(attribute.Int("fetch.pages", pages))
	f.log.DebugContext(ctx, "fetched JSON list",
		slog.String("url", rawURL),
		slog.Int("pages", pages),
		slog.Int("items", len(all)),
	)

	if all == nil {
		all = []any{}
	}
	return all, nil
}

// fetch returns the page for rawURL from the cache, or performs the
// request. Concurrent fetches of the same URL share a single request. The
// shared request is detached from the caller that started it, so one
// caller giving up does not fail the others.
func (f *Fetcher) fetch(ctx context.Context, rawURL string) (page, error) {
	if err := ctx.Err(); err != nil {
		return page{}, err
	}

	if f.cache != nil {
		if v, cachedErr, ok := f.cache.Get(rawURL); ok {
			if cachedErr != nil {
				return page{}, cachedErr
			}
			if p, ok := v.(page); ok {
				return p, nil
			}
		}
	}

	ch := f.group.DoChan(rawURL, func() (any, error) {
		sharedCtx := context.WithoutCancel(ctx)
		if f.fetchTimeout > 0 {
			var cancel context.CancelFunc
			sharedCtx, cancel = context.WithTimeout(sharedCtx, f.fetchTimeout)
			defer cancel()
		}

		p, err := f.fetchWithRetry(sharedCtx, rawURL)
		if f.cache != nil {
			switch {
			case err == nil:
				f.cache.Set(rawURL, p, nil)
			case errors.Is(err, ErrNotFound):
				f.cache.Set(rawURL, nil, ErrNotFound)
			}
		}
		return p, err
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return page{}, res.Err
		}
		return res.Val.(page), nil
	case <-ctx.Done():
		return page{}, ctx.Err()
	}
}

// fetchWithRetry performs the request, retrying transport errors and 5xx
// responses with exponential back-off.
func (f *Fetcher) fetchWithRetry(ctx context.Context, rawURL string) (page, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.retryInterval

	p, err := backoff.Retry(ctx,
		func() (page, error) {
			p, err := f.do(ctx, rawURL)
			if err != nil && !retryable(err) {
				return p, backoff.Permanent(err)
			}
			return p, err
		},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(f.maxTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			f.log.WarnContext(ctx, "retrying request",
				slog.String("url", rawURL),
				slog.Duration("wait", wait),
				slog.String("error", err.Error()),
			)
		}),
	)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	return p, err
}

// retryable reports whether err is worth another attempt.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	// Malformed URLs surface as *url.Error with Op "parse".
	var ue *url.Error
	return errors.As(err, &ue) && ue.Op != "parse"
}

// do performs a single GET request and decodes the response.
func (f *Fetcher) do(ctx context.Context, rawURL string) (page, error) {
	ctx, span := f.tracer.Start(ctx, "fetch.get_json")
	defer span.End()

	span.SetAttributes(
		attribute.String("http.request.method", http.MethodGet),
		attribute.String("url.full", rawURL),
	)

	fail := func(err error) (page, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return page{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		f.log.ErrorContext(ctx, "failed to create request", slog.String("url", rawURL), slog.String("error", err.Error()))
		return fail(fmt.Errorf("utils: creating request: %w", err))
	}
	f.setHeaders(req)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		f.log.ErrorContext(ctx, "request failed", slog.String("url", rawURL), slog.String("error", err.Error()))
		f.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "error")))
		return fail(fmt.Errorf("utils: executing request: %w", err))
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.log.WarnContext(ctx, "failed to close response body", slog.String("url", rawURL), slog.String("error", closeErr.Error()))
		}
	}()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	f.requests.Add(ctx, 1, metric.WithAttributes(attribute.Int("http.response.status_code", resp.StatusCode)))

	// Check for rate limiting before other status checks.
	if err := checkRateLimit(resp); err != nil {
		f.log.WarnContext(ctx, "rate limited", slog.String("url", rawURL), slog.String("reset", resp.Header.Get("X-RateLimit-Reset")))
		return fail(err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		f.log.WarnContext(ctx, "unauthorized token", slog.String("url", rawURL))
		return fail(ErrUnauthorized)

	case resp.StatusCode == http.StatusNotFound:
		f.log.InfoContext(ctx, "resource not found", slog.String("url", rawURL))
		return fail(ErrNotFound)

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		f.log.ErrorContext(ctx, "unexpected response", slog.String("url", rawURL), slog.Int("status", resp.StatusCode))
		return fail(&StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))})
	}

	var body any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		f.log.ErrorContext(ctx, "failed to decode response", slog.String("url", rawURL), slog.String("error", err.Error()))
		return fail(fmt.Errorf("utils: decoding response from %s: %w", rawURL, err))
	}

	return page{body: body, next: parseLinkNext(resp.Header.Get("Link"))}, nil
}

// setHeaders sets the configured headers on a request.
func (f *Fetcher) setHeaders(req *http.Request) {
	req.Header.Set("Accept", f.accept)
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
}

// checkRateLimit inspects the response for rate limit exhaustion.
// Returns ErrRateLimited for HTTP 429, or for any other non-2xx status
// when X-RateLimit-Remaining is "0". A successful response that used the
// last request of the window is still returned to the caller.
func checkRateLimit(resp *http.Response) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return nil
	}
	n, err := strconv.Atoi(remaining)
	if err != nil {
		return nil
	}
	if n == 0 {
		return ErrRateLimited
	}
	return nil
}

// parseLinkNext extracts the URL for the "next" relation from a Link header.
// Returns "" if no "next" relation is found.
func parseLinkNext(header string) string {
	if header == "" {
		return ""
	}
	matches := linkNextRE.FindStringSubmatch(header)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

// withPerPage adds per_page=100 to rawURL unless it already sets per_page.
func withPerPage(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if q.Get("per_page") != "" {
		return rawURL
	}
	q.Set("per_page", defaultPerPage)
	u.RawQuery = q.Encode()
	return u.String()
}
