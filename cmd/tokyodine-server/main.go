// Package main implements the tokyodine web server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/codeGROOVE-dev/tokyodine/pkg/config"
	"github.com/codeGROOVE-dev/tokyodine/pkg/finder"
	"github.com/codeGROOVE-dev/tokyodine/pkg/metrics"
	"github.com/codeGROOVE-dev/tokyodine/pkg/session"
)

var (
	configPath     = flag.String("config", "", "YAML configuration file (or set TOKYODINE_CONFIG)")
	addr           = flag.String("addr", "", "Listen address (default from config or PORT)")
	requestTimeout = flag.Duration("request-timeout", 10*time.Minute, "Time limit for one plan or stream")
	verbose        = flag.Bool("verbose", false, "Enable verbose logging")
	version        = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("tokyodine Server v1.0.0")
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := serve(logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

func serve(logger *slog.Logger) error {
	if err := config.LoadEnv(); err != nil {
		return err
	}
	if *configPath == "" {
		*configPath = os.Getenv("TOKYODINE_CONFIG")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	// Log configuration (without exposing sensitive keys)
	logger.Info("Server configuration",
		"addr", cfg.Server.Addr,
		"store", cfg.Store.Backend,
		"cache_dir", cfg.Cache.Dir,
		"gemini_model", cfg.Gemini.Model,
		"language", cfg.Language,
		"has_gemini_key", cfg.Gemini.APIKey != "",
		"has_google_key", cfg.GoogleAPIKey != "",
		"has_gcp_project", cfg.Gemini.Project != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	f, err := finder.New(ctx, cfg, logger, finder.WithMetrics(m))
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Error("Failed to close finder", "error", err)
		}
	}()

	sessions, err := session.NewStore(cfg.Server.SessionDir, logger)
	if err != nil {
		return err
	}

	s := newServer(f, sessions, m, logger, serverOptions{
		origins:       cfg.Server.AllowedOrigins,
		ratePerSecond: cfg.Server.RatePerSecond,
		burst:         cfg.Server.Burst,
		responseTTL:   cfg.Server.ResponseTTL,
		timeout:       *requestTimeout,
	})
	handler, err := s.handler()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      *requestTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// handler wraps the routes with CORS, cross-origin protection and the common middleware.
func (s *server) handler() (http.Handler, error) {
	antiCSRF := http.NewCrossOriginProtection()
	for _, origin := range s.origins {
		if origin == "*" {
			continue
		}
		if err := antiCSRF.AddTrustedOrigin(origin); err != nil {
			return nil, fmt.Errorf("trusted origin %q: %w", origin, err)
		}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Request-ID", "X-Cache"},
		MaxAge:         600,
	})
	return s.wrap(c.Handler(antiCSRF.Handler(s.routes()))), nil
}
