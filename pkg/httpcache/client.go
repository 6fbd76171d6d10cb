package httpcache

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// HTTPClient is the subset of *http.Client used here.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client caches successful GET and POST responses of the wrapped client.
type Client struct {
	cache  *Cache
	next   HTTPClient
	logger *slog.Logger
}

// NewClient wraps next. A nil cache disables caching.
func NewClient(cache *Cache, next HTTPClient, logger *slog.Logger) *Client {
	if next == nil {
		next = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cache: cache, next: next, logger: logger}
}

func cachedResponse(req *http.Request, data []byte) *http.Response {
	resp := &http.Response{
		Status:     "200 OK",
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(data)),
		Header:     make(http.Header),
		Request:    req,
	}
	resp.Header.Set("X-From-Cache", "true")
	return resp
}

// Do serves req from the cache when possible.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.cache == nil || (req.Method != http.MethodGet && req.Method != http.MethodPost) {
		return c.next.Do(req)
	}
	url := req.URL.String()

	var body []byte
	if req.Method == http.MethodPost {
		if req.Body != nil && req.Body != http.NoBody {
			var err error
			if body, err = io.ReadAll(req.Body); err != nil {
				return nil, fmt.Errorf("reading request body: %w", err)
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
		}
		if data, ok := c.cache.APICall(url, body); ok {
			return cachedResponse(req, data), nil
		}
	} else if data, etag, ok := c.cache.Get(url); ok {
		resp := cachedResponse(req, data)
		if etag != "" {
			resp.Header.Set("ETag", etag)
		}
		return resp, nil
	}

	resp, err := c.next.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		return resp, err
	}

	data, err := io.ReadAll(resp.Body)
	if closeErr := resp.Body.Close(); closeErr != nil {
		c.logger.Debug("failed to close response body", "error", closeErr)
	}
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if req.Method == http.MethodPost {
		if err := c.cache.SetAPICall(url, body, data); err != nil {
			c.logger.Debug("cache set failed", "url", url, "error", err)
		}
	} else {
		c.cache.Set(url, data, resp.Header.Get("ETag"))
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return resp, nil
}
