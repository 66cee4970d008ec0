// internal/datasource/httpds/client_test.go
//
// These tests exercise the HTTP client wrapper, focusing on:
//   - Default configuration and TLS settings.
//   - Retry behavior on transient failures and its limits.
//   - Non-retryable statuses and their error kinds.
//   - API-key and per-request headers.

package httpds

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"retaildc/internal/etlerr"
)

// newTestClient returns a client whose backoff waits are recorded instead of
// slept.
func newTestClient(cfg Config, sleeps *[]time.Duration) *Client {
	c := NewClient(cfg)
	c.policy.Sleep = func(_ context.Context, d time.Duration) error {
		if sleeps != nil {
			*sleeps = append(*sleeps, d)
		}
		return nil
	}
	return c
}

// TestNewClient_Defaults verifies that NewClient applies defaults and sets
// TLS behavior when no custom Transport is supplied.
func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{InsecureSkipVerify: true})

	if c.httpClient.Timeout <= 0 {
		t.Fatalf("expected non-zero timeout, got %v", c.httpClient.Timeout)
	}
	if c.policy.Attempts != 3 {
		t.Fatalf("expected 3 attempts by default, got %d", c.policy.Attempts)
	}
	if c.policy.Initial <= 0 || c.policy.Max <= 0 {
		t.Fatalf("expected positive backoff bounds, got %v/%v", c.policy.Initial, c.policy.Max)
	}
	transport, ok := c.httpClient.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", c.httpClient.Transport)
	}
	if transport.TLSClientConfig == nil || !transport.TLSClientConfig.InsecureSkipVerify {
		t.Fatalf("expected InsecureSkipVerify=true when configured")
	}

	if got := NewClient(Config{MaxRetries: -1}).policy.Attempts; got != 1 {
		t.Fatalf("MaxRetries=-1: attempts=%d; want 1", got)
	}
}

// TestDo_RetryOn5xxThenSuccess: two 500s then a 200.
func TestDo_RetryOn5xxThenSuccess(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var sleeps []time.Duration
	c := newTestClient(Config{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond}, &sleeps)

	resp, err := c.Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d; want 200", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	want := []time.Duration{time.Millisecond, 2 * time.Millisecond}
	if !reflect.DeepEqual(sleeps, want) {
		t.Fatalf("sleeps=%v; want %v", sleeps, want)
	}
}

// TestDo_StopsAfterMaxRetries: all 503 exhausts the attempts and surfaces a
// connectivity error.
func TestDo_StopsAfterMaxRetries(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(Config{MaxRetries: 2}, nil)

	resp, err := c.Get(context.Background(), srv.URL, nil)
	if err == nil {
		resp.Body.Close()
		t.Fatalf("expected error after exhausting retries")
	}
	if !errors.Is(err, etlerr.ErrConnectivity) {
		t.Fatalf("err=%v; want connectivity kind", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable {
		t.Fatalf("err=%v; want *StatusError 503", err)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

// TestDo_NonRetryableStatus: 400 returns immediately as a response.
func TestDo_NonRetryableStatus(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(Config{MaxRetries: 5}, nil)
	resp, err := c.Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d; want 400", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
}

func TestDo_TransportErrorIsConnectivity(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient(Config{MaxRetries: 1}, nil)
	_, err := c.Get(context.Background(), url, nil)
	if !etlerr.IsRetryable(err) {
		t.Fatalf("err=%v; want retryable connectivity error", err)
	}
}

// TestHeaders verifies the API key header and that per-request headers
// override base headers.
func TestHeaders(t *testing.T) {
	t.Parallel()

	var gotKey, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotAccept = r.Header.Get("Accept")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(Config{
		APIKeyHeader: "x-api-key",
		APIKey:       "secret",
		BaseHeaders:  http.Header{"Accept": []string{"text/plain"}},
	}, nil)
	resp, err := c.Get(context.Background(), srv.URL, http.Header{"Accept": []string{"application/json"}})
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	resp.Body.Close()

	if gotKey != "secret" {
		t.Fatalf("x-api-key=%q; want secret", gotKey)
	}
	if gotAccept != "application/json" {
		t.Fatalf("Accept=%q; want per-request value", gotAccept)
	}
}

// TestGetJSON covers decoding, 404 -> not found and undecodable bodies.
func TestGetJSON(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"number_stores": 451}`))
	})
	mux.HandleFunc("/bad", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"number_stores": `))
	})
	mux.HandleFunc("/forbidden", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(Config{}, nil)
	ctx := context.Background()

	var body map[string]any
	if err := c.GetJSON(ctx, srv.URL+"/ok", &body); err != nil {
		t.Fatalf("GetJSON ok: %v", err)
	}
	if n, ok := body["number_stores"].(json.Number); !ok || n.String() != "451" {
		t.Fatalf("body=%#v", body)
	}

	if err := c.GetJSON(ctx, srv.URL+"/missing", &body); !errors.Is(err, etlerr.ErrNotFound) {
		t.Fatalf("missing: err=%v; want not found", err)
	}
	if err := c.GetJSON(ctx, srv.URL+"/bad", &body); !errors.Is(err, etlerr.ErrFormat) {
		t.Fatalf("bad: err=%v; want format", err)
	}
	var se *StatusError
	if err := c.GetJSON(ctx, srv.URL+"/forbidden", &body); !errors.As(err, &se) || se.Code != 403 {
		t.Fatalf("forbidden: err=%v", err)
	}
}

func TestIsRetryableStatus(t *testing.T) {
	t.Parallel()

	for _, code := range []int{429, 500, 503} {
		if !isRetryableStatus(code) {
			t.Fatalf("expected status %d to be retryable", code)
		}
	}
	for _, code := range []int{200, 400, 404} {
		if isRetryableStatus(code) {
			t.Fatalf("expected status %d to be non-retryable", code)
		}
	}
}

// TestCustomTransport ensures a supplied Transport is used as-is.
func TestCustomTransport(t *testing.T) {
	t.Parallel()

	custom := &http.Transport{TLSClientConfig: &tls.Config{}}
	c := NewClient(Config{Transport: custom, InsecureSkipVerify: true})

	if c.httpClient.Transport != http.RoundTripper(custom) {
		t.Fatalf("expected custom transport to be used")
	}
	if custom.TLSClientConfig.InsecureSkipVerify {
		t.Fatalf("custom transport must not be modified")
	}
}
