// backend/scraper/fetcher.go
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultMaxRetries is the total number of attempts made by Fetch when the caller passes 0.
	DefaultMaxRetries = 3
	// DefaultTimeout bounds a single attempt.
	DefaultTimeout = 30 * time.Second
	// MaxRetryAfter caps how long a 429 Retry-After header can make us wait.
	MaxRetryAfter = 60 * time.Second

	maxBodyBytes = 10 << 20
)

// DefaultBackoffSchedule is indexed by attempt and capped at its last entry.
var DefaultBackoffSchedule = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

var retryableStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// URL is the final URL after redirects.
	URL string
}

// ContentType returns the media type without parameters, lowercased.
func (r *Response) ContentType() string {
	ct := r.Header.Get("Content-Type")
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// FetchError is returned when a URL could not be fetched. StatusCode is 0 for transport errors.
type FetchError struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d after %d attempt(s)", e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("fetch %s after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RetryObserver is notified of every retry decision with a short reason ("status_503", "timeout").
type RetryObserver func(reason string)

// Fetcher issues GET requests and retries transient failures with a fixed backoff schedule.
type Fetcher struct {
	client   *http.Client
	logger   *log.Logger
	schedule []time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	observer RetryObserver
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = client }
}

// WithFetcherLogger sets the logger used for retry diagnostics.
func WithFetcherLogger(logger *log.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = logger }
}

// WithSleeper replaces the backoff sleep (tests use this to record delays).
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) FetcherOption {
	return func(f *Fetcher) { f.sleep = sleep }
}

// WithBackoffSchedule overrides DefaultBackoffSchedule.
func WithBackoffSchedule(schedule []time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if len(schedule) > 0 {
			f.schedule = schedule
		}
	}
}

// WithRetryObserver registers a hook called on every retry.
func WithRetryObserver(observer RetryObserver) FetcherOption {
	return func(f *Fetcher) { f.observer = observer }
}

// NewFetcher creates a Fetcher. Redirects are followed by the default http.Client policy.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{},
		logger:   log.Default(),
		schedule: DefaultBackoffSchedule,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch GETs rawURL, making at most maxRetries attempts. Retryable statuses and transport errors
// are retried on the backoff schedule; 429 honors Retry-After. Other 4xx fail on the first attempt.
// The returned error is always a *FetchError carrying the last failure.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, timeout time.Duration, headers map[string]string, maxRetries int) (*Response, error) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var lastErr *FetchError
	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err := f.do(ctx, rawURL, timeout, headers)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &FetchError{URL: rawURL, Attempts: attempt + 1, Err: err}
			}
			lastErr = &FetchError{URL: rawURL, Attempts: attempt + 1, Err: err}
			if attempt == maxRetries-1 {
				break
			}
			delay := f.backoff(attempt)
			reason := "connection_error"
			if isTimeout(err) {
				reason = "timeout"
			}
			f.logger.Warn("Request failed, retrying", "url", rawURL, "reason", reason, "error", err,
				"attempt", attempt+1, "max_attempts", maxRetries, "backoff", delay)
			if err := f.wait(ctx, delay, reason); err != nil {
				return nil, &FetchError{URL: rawURL, Attempts: attempt + 1, Err: err}
			}
			continue
		}

		if resp.StatusCode < 400 {
			return resp, nil
		}

		lastErr = &FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Attempts:   attempt + 1,
			Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
		}
		if !retryableStatuses[resp.StatusCode] {
			f.logger.Warn("Non-retryable status", "url", rawURL, "status", resp.StatusCode)
			return nil, lastErr
		}
		if attempt == maxRetries-1 {
			break
		}

		delay := f.backoff(attempt)
		if resp.StatusCode == http.StatusTooManyRequests {
			if d, ok := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
				delay = d
			}
		}
		f.logger.Warn("Retryable status, retrying", "url", rawURL, "status", resp.StatusCode,
			"attempt", attempt+1, "max_attempts", maxRetries, "backoff", delay)
		if err := f.wait(ctx, delay, "status_"+strconv.Itoa(resp.StatusCode)); err != nil {
			return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Attempts: attempt + 1, Err: err}
		}
	}

	f.logger.Error("Giving up after retries", "url", rawURL, "attempts", maxRetries, "error", lastErr.Err)
	return nil, lastErr
}

func (f *Fetcher) do(ctx context.Context, rawURL string, timeout time.Duration, headers map[string]string) (*Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	finalURL := rawURL
	if res.Request != nil && res.Request.URL != nil {
		finalURL = res.Request.URL.String()
	}
	return &Response{StatusCode: res.StatusCode, Header: res.Header, Body: body, URL: finalURL}, nil
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	if attempt >= len(f.schedule) {
		return f.schedule[len(f.schedule)-1]
	}
	return f.schedule[attempt]
}

func (f *Fetcher) wait(ctx context.Context, d time.Duration, reason string) error {
	if f.observer != nil {
		f.observer(reason)
	}
	return f.sleep(ctx, d)
}

// parseRetryAfter accepts delta-seconds or an HTTP date, capped at MaxRetryAfter.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	var d time.Duration
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		d = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(value); err == nil {
		d = at.Sub(now)
		if d < 0 {
			d = 0
		}
	} else {
		return 0, false
	}
	if d > MaxRetryAfter {
		d = MaxRetryAfter
	}
	return d, true
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
