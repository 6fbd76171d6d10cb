package fetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestDoRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("User-Agent") != UserAgent {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // test server
		_, _ = w.Write(append([]byte("ok:"), body...)) //nolint:errcheck // test server
	}))
	defer srv.Close()

	f := New(srv.Client(), quietLogger(), WithRetry(4, time.Millisecond), WithRate(1000, 10))
	got, err := f.Do(context.Background(), http.MethodPost, srv.URL, nil, []byte("q"))
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if string(got) != "ok:q" {
		t.Errorf("Do() = %q, want ok:q", got)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestDoGivesUpOnClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := New(srv.Client(), quietLogger(), WithRetry(4, time.Millisecond), WithRate(1000, 10))
	_, err := f.Get(context.Background(), srv.URL, http.Header{"Accept": {"text/html"}})
	if !IsStatus(err, http.StatusNotFound) {
		t.Errorf("Get() error = %v, want a 404 StatusError", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestDoHonorsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := New(srv.Client(), quietLogger(), WithRetry(10, time.Second))
	if _, err := f.Get(ctx, srv.URL, nil); err == nil {
		t.Error("Get() with cancelled context succeeded")
	}
}
