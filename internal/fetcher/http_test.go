package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/wikicat/internal/config"
	"github.com/IshaanNene/wikicat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func newTestFetcher(t *testing.T) *HTTPFetcher {
	t.Helper()
	cfg := config.DefaultConfig().Fetcher
	cfg.RateLimit = 0
	f := NewHTTPFetcher(&cfg, nil, testLogger)
	f.sleep = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(func() { f.Close() })
	return f
}

func mustRequest(t *testing.T, rawURL string) *types.Request {
	t.Helper()
	req, err := types.NewRequest(rawURL, nil)
	require.NoError(t, err)
	req.Endpoint = "test"
	return req
}

func TestFetchBrotli(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		bw.Write([]byte(`{"ok":true}`))
		bw.Close()
	}))
	defer srv.Close()

	resp, err := newTestFetcher(t).Fetch(context.Background(), mustRequest(t, srv.URL))
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(resp.Body))
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("fine"))
	}))
	defer srv.Close()

	req := mustRequest(t, srv.URL)
	resp, err := newTestFetcher(t).Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "fine", string(resp.Body))
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1, req.RetryCount)
}

func TestFetchGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestFetcher(t).Fetch(context.Background(), mustRequest(t, srv.URL))
	require.ErrorIs(t, err, types.ErrMaxRetries)
	assert.Equal(t, int32(4), calls.Load(), "one attempt plus three retries")
}

func TestFetchReturnsClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := newTestFetcher(t).Fetch(context.Background(), mustRequest(t, srv.URL))
	require.NoError(t, err, "4xx is not a transport error")
	assert.True(t, resp.IsClientError(), "status %d", resp.StatusCode)
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"", 5 * time.Second},
		{"3", 3 * time.Second},
		{"600", 120 * time.Second},
		{"garbage", 5 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseRetryAfter(tt.header), "header %q", tt.header)
	}
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(context.Canceled))
	assert.True(t, isRetryableError(errors.Join(errors.New("read"), os.ErrDeadlineExceeded)))
}
