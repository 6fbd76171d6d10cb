// Package fetch performs polite, retried HTTP requests for the scrapers.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"golang.org/x/time/rate"
)

// UserAgent is sent with every request.
const UserAgent = "Mozilla/5.0 (compatible; tokyodine/1.0)"

// maxBody bounds how much of a response is read.
const maxBody = 8 << 20

// HTTPClient is the subset of *http.Client used here.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned for a non-200 response that is not retried.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", e.URL, e.Code)
}

// Fetcher rate-limits requests per host and retries transient failures.
type Fetcher struct {
	client   HTTPClient
	logger   *slog.Logger
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
	attempts uint
	delay    time.Duration
	mu       sync.Mutex
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithRate sets the per-host request rate. A non-positive rate keeps the default.
func WithRate(perSecond float64, burst int) Option {
	return func(f *Fetcher) {
		if perSecond > 0 {
			f.rps = rate.Limit(perSecond)
		}
		f.burst = max(burst, 1)
	}
}

// WithRetry sets the number of attempts and the initial backoff.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(f *Fetcher) {
		f.attempts = max(attempts, 1)
		f.delay = delay
	}
}

// New returns a Fetcher using client, which may be a caching client.
func New(client HTTPClient, logger *slog.Logger, opts ...Option) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fetcher{
		client:   client,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
		rps:      2,
		burst:    2,
		attempts: 4,
		delay:    500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(f.rps, f.burst)
		f.limiters[host] = l
	}
	return l
}

// Get fetches url and returns the body of a 200 response.
func (f *Fetcher) Get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	return f.Do(ctx, http.MethodGet, url, header, nil)
}

// Do sends a request and returns the body of a 200 response. Network errors,
// 429 and 5xx responses are retried with backoff; other statuses return a
// *StatusError immediately.
func (f *Fetcher) Do(ctx context.Context, method, url string, header http.Header, body []byte) ([]byte, error) {
	var data []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, method, url, reader(body))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			for k, v := range header {
				req.Header[k] = v
			}
			if req.Header.Get("User-Agent") == "" {
				req.Header.Set("User-Agent", UserAgent)
			}
			if err := f.limiter(req.URL.Host).Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}

			resp, err := f.client.Do(req)
			if err != nil {
				return err
			}
			defer func() {
				if err := resp.Body.Close(); err != nil {
					f.logger.Debug("failed to close response body", "error", err)
				}
			}()

			switch {
			case resp.StatusCode == http.StatusOK:
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
				return &StatusError{URL: url, Code: resp.StatusCode}
			default:
				return retry.Unrecoverable(&StatusError{URL: url, Code: resp.StatusCode})
			}

			data, err = io.ReadAll(io.LimitReader(resp.Body, maxBody))
			return err
		},
		retry.Context(ctx),
		retry.Attempts(f.attempts),
		retry.Delay(f.delay),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(250*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Debug("retrying request", "attempt", n+1, "url", url, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	return data, nil
}

func reader(body []byte) io.Reader {
	if body == nil {
		return http.NoBody
	}
	return bytes.NewReader(body)
}

// IsStatus reports whether err is a *StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
