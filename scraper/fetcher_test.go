package scraper

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSleeper captures backoff delays instead of sleeping.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

// sequenceServer answers with the given statuses in order, repeating the last one.
func sequenceServer(t *testing.T, statuses []int, header http.Header) (*httptest.Server, *int) {
	t.Helper()
	var mu sync.Mutex
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		idx := hits
		hits++
		mu.Unlock()
		if idx >= len(statuses) {
			idx = len(statuses) - 1
		}
		for k, vs := range header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(statuses[idx])
		_, _ = io.WriteString(w, "<html><body>ok</body></html>")
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestFetcher(s *recordingSleeper, opts ...FetcherOption) *Fetcher {
	base := []FetcherOption{WithSleeper(s.sleep), WithFetcherLogger(log.New(io.Discard))}
	return NewFetcher(append(base, opts...)...)
}

func TestFetch_RetriesServiceUnavailable(t *testing.T) {
	srv, hits := sequenceServer(t, []int{503, 503, 200}, nil)
	sleeper := &recordingSleeper{}
	var reasons []string
	f := newTestFetcher(sleeper, WithRetryObserver(func(reason string) { reasons = append(reasons, reason) }))

	resp, err := f.Fetch(context.Background(), srv.URL, time.Second, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html", resp.ContentType())
	assert.Contains(t, string(resp.Body), "ok")
	assert.Equal(t, 3, *hits)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, sleeper.delays)
	assert.Equal(t, []string{"status_503", "status_503"}, reasons)
}

func TestFetch_HonorsRetryAfter(t *testing.T) {
	srv, hits := sequenceServer(t, []int{429, 200}, http.Header{"Retry-After": []string{"5"}})
	sleeper := &recordingSleeper{}

	resp, err := newTestFetcher(sleeper).Fetch(context.Background(), srv.URL, time.Second, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, *hits)
	assert.Equal(t, []time.Duration{5 * time.Second}, sleeper.delays)
}

func TestFetch_NotFoundFailsImmediately(t *testing.T) {
	srv, hits := sequenceServer(t, []int{404}, nil)
	sleeper := &recordingSleeper{}

	resp, err := newTestFetcher(sleeper).Fetch(context.Background(), srv.URL, time.Second, nil, 3)
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, 1, *hits)
	assert.Empty(t, sleeper.delays)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Equal(t, 1, fe.Attempts)
}

func TestFetch_ExhaustsRetries(t *testing.T) {
	srv, hits := sequenceServer(t, []int{502}, nil)
	sleeper := &recordingSleeper{}

	_, err := newTestFetcher(sleeper).Fetch(context.Background(), srv.URL, time.Second, nil, 3)
	require.Error(t, err)
	assert.Equal(t, 3, *hits)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, sleeper.delays)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusBadGateway, fe.StatusCode)
	assert.Equal(t, 3, fe.Attempts)
}

func TestFetch_BackoffCapsAtLastEntry(t *testing.T) {
	srv, _ := sequenceServer(t, []int{500}, nil)
	sleeper := &recordingSleeper{}

	_, err := newTestFetcher(sleeper).Fetch(context.Background(), srv.URL, time.Second, nil, 5)
	require.Error(t, err)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}, sleeper.delays)
}

func TestFetch_ConnectionErrorRetried(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	sleeper := &recordingSleeper{}
	var reasons []string
	f := newTestFetcher(sleeper, WithRetryObserver(func(reason string) { reasons = append(reasons, reason) }))

	_, err := f.Fetch(context.Background(), url, time.Second, nil, 2)
	require.Error(t, err)
	assert.Equal(t, []time.Duration{1 * time.Second}, sleeper.delays)
	assert.Equal(t, []string{"connection_error"}, reasons)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Zero(t, fe.StatusCode)
	assert.Equal(t, 2, fe.Attempts)
}

func TestFetch_SendsHeaders(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	_, err := newTestFetcher(&recordingSleeper{}).Fetch(context.Background(), srv.URL, time.Second,
		map[string]string{"User-Agent": DefaultUserAgent}, 1)
	require.NoError(t, err)
	assert.Equal(t, DefaultUserAgent, gotUA)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	d, ok := parseRetryAfter("5", now)
	assert.True(t, ok)
	assert.Equal(t, 5*time.Second, d)

	d, ok = parseRetryAfter("600", now)
	assert.True(t, ok)
	assert.Equal(t, MaxRetryAfter, d)

	d, ok = parseRetryAfter(now.Add(10*time.Second).Format(http.TimeFormat), now)
	assert.True(t, ok)
	assert.Equal(t, 10*time.Second, d)

	_, ok = parseRetryAfter("soon", now)
	assert.False(t, ok)
	_, ok = parseRetryAfter("", now)
	assert.False(t, ok)
}
