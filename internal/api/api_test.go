package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoSetsHeadersAndReadsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Key"); got != "secret" {
			t.Errorf("Expected X-Key header secret, got %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Expected JSON content type, got %q", got)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"hold"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithHeader("X-Key", "secret"))
	req := NewRequest(http.MethodPost, "/v1").WithBody(map[string]string{"a": "b"})
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got := resp.Get("choices.0.message.content").String(); got != "hold" {
		t.Errorf("Expected content hold, got %q", got)
	}
}

func TestDoReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient().Do(NewRequest(http.MethodGet, srv.URL))
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	if se.Code != http.StatusUnauthorized || se.Retryable() {
		t.Errorf("Expected non-retryable 401, got %d retryable=%v", se.Code, se.Retryable())
	}
}

func TestDoWithRetryRecovers(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	req := NewRequest(http.MethodGet, srv.URL).WithContext(context.Background())
	resp, err := NewClient().DoWithRetry(req, &RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 2 * time.Millisecond})
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if resp.Text() != "ok" || atomic.LoadInt32(&calls) != 3 {
		t.Errorf("Expected ok after 3 calls, got %q after %d", resp.Text(), calls)
	}
}

func TestDoWithRetryStopsOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	req := NewRequest(http.MethodGet, srv.URL).WithContext(context.Background())
	_, err := NewClient().DoWithRetry(req, &RetryConfig{MaxAttempts: 5, InitialWait: time.Millisecond, MaxWait: time.Millisecond})
	if err == nil {
		t.Fatal("Expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected 1 call, got %d", got)
	}
}

func TestDoWithRetryHonoursRetryAfterCap(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	start := time.Now()
	req := NewRequest(http.MethodGet, srv.URL)
	_, err := NewClient().DoWithRetry(req, &RetryConfig{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("Expected success on second attempt, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Expected Retry-After to be capped by MaxWait, waited %v", elapsed)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"3", 3 * time.Second},
		{"-1", 0},
		{now.Add(10 * time.Second).Format(http.TimeFormat), 10 * time.Second},
		{"soon", 0},
	}
	for _, tc := range cases {
		if got := parseRetryAfter(tc.in, now); got != tc.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestDoWithRetryHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req := NewRequest(http.MethodGet, srv.URL).WithContext(ctx)

	start := time.Now()
	_, err := NewClient().DoWithRetry(req, &RetryConfig{MaxAttempts: 10, InitialWait: time.Second, MaxWait: time.Second})
	if err == nil {
		t.Fatal("Expected error")
	}
	if time.Since(start) > 900*time.Millisecond {
		t.Errorf("Expected retry loop to stop with the context, took %v", time.Since(start))
	}
}
