package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/maypok86/otter/v2"

	"github.com/codeGROOVE-dev/tokyodine/pkg/finder"
	"github.com/codeGROOVE-dev/tokyodine/pkg/gemini"
	"github.com/codeGROOVE-dev/tokyodine/pkg/metrics"
	"github.com/codeGROOVE-dev/tokyodine/pkg/report"
	"github.com/codeGROOVE-dev/tokyodine/pkg/restaurant"
	"github.com/codeGROOVE-dev/tokyodine/pkg/session"
)

const (
	maxBodyBytes = 64 << 10
	writeWait    = 10 * time.Second
)

// engine is the part of *finder.Finder the handlers use.
type engine interface {
	Dates(start, end string) (string, string, error)
	Run(ctx context.Context, req finder.Request) (*finder.Outcome, error)
	Stream(ctx context.Context, req finder.StreamRequest, emit func(finder.Event) error) error
}

type server struct {
	engine   engine
	sessions *session.Store
	cache    *otter.Cache[string, []byte]
	limiter  *ipLimiter
	metrics  *metrics.Metrics
	logger   *slog.Logger
	origins  []string
	upgrader websocket.Upgrader
	timeout  time.Duration
}

func newServer(e engine, sessions *session.Store, m *metrics.Metrics, logger *slog.Logger, opts serverOptions) *server {
	if opts.responseTTL <= 0 {
		opts.responseTTL = 10 * time.Minute
	}
	if opts.timeout <= 0 {
		opts.timeout = 10 * time.Minute
	}
	s := &server{
		engine:   e,
		sessions: sessions,
		metrics:  m,
		logger:   logger,
		origins:  opts.origins,
		timeout:  opts.timeout,
		limiter:  newIPLimiter(opts.ratePerSecond, opts.burst),
		cache: otter.Must(&otter.Options[string, []byte]{
			MaximumSize:      1_000,
			ExpiryCalculator: otter.ExpiryWriting[string, []byte](opts.responseTTL),
		}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

type serverOptions struct {
	origins       []string
	ratePerSecond float64
	burst         int
	responseTTL   time.Duration
	timeout       time.Duration
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/plan", s.handlePlan)
	mux.HandleFunc("GET /api/v1/restaurants/stream", s.handleStream)
	mux.HandleFunc("GET /api/v1/sessions/{id}", s.handleSession)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if _, err := w.Write([]byte("ok\n")); err != nil {
			s.logger.Debug("Failed to write health check", "error", err)
		}
	})
	return mux
}

// checkOrigin accepts same-host websocket requests and the configured origins.
func (s *server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(s.origins, "*") || slices.Contains(s.origins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to encode response", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.writeRaw(w, status, data)
}

func (s *server) writeRaw(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		s.logger.Debug("Failed to write response", "error", err)
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// planRequest is the body of POST /api/v1/plan.
type planRequest struct {
	Query     string                     `json:"query"`
	Groups    []restaurant.LocationGroup `json:"groups"`
	FoodTypes []string                   `json:"foodTypes"`
	StartDate string                     `json:"startDate"`
	EndDate   string                     `json:"endDate"`
	Refresh   bool                       `json:"refresh"`
}

type planResponse struct {
	*session.Session
	Reason             string             `json:"reason,omitempty"`
	AvailabilityByDate []report.DayDigest `json:"availabilityByDate"`
	Truncated          bool               `json:"truncated"`
}

// cacheKey identifies a request; a refresh shares the key so its result replaces the cached one.
func cacheKey(req planRequest) string {
	req.Refresh = false
	data, err := json.Marshal(req)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return "plan:" + hex.EncodeToString(sum[:])
}

func badRequest(err error) bool {
	return errors.Is(err, finder.ErrNoGroups) ||
		errors.Is(err, finder.ErrNoTranslator) ||
		errors.Is(err, gemini.ErrNoGroups)
}

func (s *server) handlePlan(w http.ResponseWriter, r *http.Request) {
	requestID := w.Header().Get("X-Request-ID")
	ip := clientIP(r)
	if !s.limiter.allow(ip) {
		s.logger.Warn("Rate limit exceeded", "request_id", requestID, "client_ip", ip)
		s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req planRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	start, end, err := s.engine.Dates(req.StartDate, req.EndDate)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.StartDate, req.EndDate = start, end

	key := cacheKey(req)
	if !req.Refresh && key != "" {
		if data, ok := s.cache.GetIfPresent(key); ok {
			w.Header().Set("X-Cache", "hit")
			s.writeRaw(w, http.StatusOK, data)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	began := time.Now()
	out, err := s.engine.Run(ctx, finder.Request{
		Query:     req.Query,
		Start:     start,
		End:       end,
		Groups:    req.Groups,
		FoodTypes: req.FoodTypes,
		Refresh:   req.Refresh,
	})
	switch {
	case badRequest(err):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error("Planning failed", "request_id", requestID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "planning failed")
		return
	}

	sess := &session.Session{
		Query:           req.Query,
		StartDate:       out.Start,
		EndDate:         out.End,
		LocationGroups:  out.Groups,
		RestaurantTypes: out.FoodTypes,
		PlansForDay:     out.Records,
	}
	if err := s.sessions.Save(r.Context(), sess); err != nil {
		s.logger.Error("Failed to save session", "request_id", requestID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "saving session failed")
		return
	}
	s.logger.Info("Plan completed",
		"request_id", requestID,
		"session", sess.ID,
		"groups", len(out.Groups),
		"records", len(out.Records),
		"truncated", out.Result.Truncated,
		"duration_ms", time.Since(began).Milliseconds())

	data, err := json.Marshal(planResponse{
		Session:            sess,
		Reason:             out.Reason,
		AvailabilityByDate: out.Digest,
		Truncated:          out.Result.Truncated,
	})
	if err != nil {
		s.logger.Error("Failed to encode plan", "request_id", requestID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "encoding failed")
		return
	}
	if key != "" && !out.Result.Truncated {
		s.cache.Set(key, data)
	}
	w.Header().Set("X-Cache", "miss")
	s.writeRaw(w, http.StatusOK, data)
}

func (s *server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, session.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		s.logger.Error("Failed to load session", "id", r.PathValue("id"), "error", err)
		s.writeError(w, http.StatusInternalServerError, "loading session failed")
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (s *server) handleStream(w http.ResponseWriter, r *http.Request) {
	requestID := w.Header().Get("X-Request-ID")
	q := r.URL.Query()
	req := finder.StreamRequest{
		Locations: splitList(q.Get("locations")),
		FoodTypes: splitList(q.Get("foodTypes")),
	}
	if len(req.Locations) == 0 {
		s.writeError(w, http.StatusBadRequest, "locations is required")
		return
	}
	var err error
	if req.Start, req.End, err = s.engine.Dates(q.Get("startDate"), q.Get("endDate")); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ip := clientIP(r); !s.limiter.allow(ip) {
		s.logger.Warn("Rate limit exceeded", "request_id", requestID, "client_ip", ip)
		s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "request_id", requestID, "error", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			s.logger.Debug("Failed to close websocket", "request_id", requestID, "error", err)
		}
	}()
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		s.logger.Debug("Failed to clear read deadline", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.timeout)
	defer cancel()
	// The client sends nothing; a failed read means it went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	sent := 0
	err = s.engine.Stream(ctx, req, func(e finder.Event) error {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		sent++
		return conn.WriteJSON(e)
	})

	code, reason := websocket.CloseNormalClosure, ""
	if err != nil && ctx.Err() == nil {
		s.logger.Error("Stream failed", "request_id", requestID, "error", err)
		code, reason = websocket.CloseInternalServerErr, "search failed"
	}
	msg := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		s.logger.Debug("Failed to send close frame", "request_id", requestID, "error", err)
	}
	s.logger.Info("Stream finished",
		"request_id", requestID,
		"locations", strings.Join(req.Locations, ","),
		"events", sent)
}
