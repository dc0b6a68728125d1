// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

// Package main implements the HTTP server that exposes GitHub organization
// and public repository lookups.
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

	"github.com/andrewkroh/github-org-explorer/internal/cache"
	"github.com/andrewkroh/github-org-explorer/internal/github"
	"github.com/andrewkroh/github-org-explorer/internal/handler"
	"github.com/andrewkroh/github-org-explorer/internal/otelsetup"
	"github.com/andrewkroh/github-org-explorer/internal/utils"
)

// version is set at build time via -ldflags "-X main.version=v1.0.0".
var version = "dev"

// Config holds the server configuration parsed from CLI flags and the
// environment.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string

	// CacheTTL is how long upstream responses are reused. Zero disables
	// caching.
	CacheTTL time.Duration

	// CacheMaxSize is the maximum number of cached upstream responses.
	CacheMaxSize int

	// MaxTries is the number of attempts made for each upstream request.
	MaxTries uint

	// RetryInterval is the initial delay between upstream attempts.
	RetryInterval time.Duration

	// RequestTimeout bounds each API request's upstream lookups.
	RequestTimeout time.Duration

	// BaseURL is the GitHub API root (GITHUB_API_BASE_URL).
	BaseURL string

	// Token authenticates upstream requests when set (GITHUB_TOKEN).
	Token string
}

// parseFlags parses CLI flags from the given arguments into a Config.
// It uses a custom flag.FlagSet so that tests can call it without
// affecting the global flag.CommandLine state.
func parseFlags(args []string) (*Config, error) {
	fs := flag.NewFlagSet("github-org-explorer", flag.ContinueOnError)

	cfg := &Config{BaseURL: github.DefaultBaseURL}

	fs.StringVar(&cfg.Listen, "listen", ":8080", "HTTP listen address")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", 5*time.Minute, "Cache TTL duration (0 disables caching)")
	fs.IntVar(&cfg.CacheMaxSize, "cache-max-size", 1000, "Maximum number of cached upstream responses")
	fs.UintVar(&cfg.MaxTries, "max-tries", 3, "Attempts per upstream request")
	fs.DurationVar(&cfg.RetryInterval, "retry-interval", 500*time.Millisecond, "Initial delay between upstream attempts")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", 30*time.Second, "Upstream time limit per API request (0 disables)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		fmt.Fprintf(fs.Output(), "Error: %v\n\n", err)
		fs.Usage()
		return nil, err
	}

	return cfg, nil
}

// loadEnv fills the environment-sourced settings using getenv.
func (c *Config) loadEnv(getenv func(string) string) {
	if baseURL := getenv("GITHUB_API_BASE_URL"); baseURL != "" {
		c.BaseURL = baseURL
	}
	c.Token = getenv("GITHUB_TOKEN")
}

// validate checks that values are within acceptable ranges.
func (c *Config) validate() error {
	if c.Listen == "" {
		return errors.New("flag -listen is required")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("flag -cache-ttl must be non-negative, got %s", c.CacheTTL)
	}
	if c.CacheMaxSize <= 0 {
		return fmt.Errorf("flag -cache-max-size must be positive, got %d", c.CacheMaxSize)
	}
	if c.MaxTries == 0 {
		return errors.New("flag -max-tries must be at least 1")
	}
	if c.RetryInterval < 0 {
		return fmt.Errorf("flag -retry-interval must be non-negative, got %s", c.RetryInterval)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("flag -request-timeout must be non-negative, got %s", c.RequestTimeout)
	}
	return nil
}

// newAPI wires the response cache, fetcher, and HTTP handler. The returned
// stop function releases the cache.
func newAPI(cfg *Config, logger *slog.Logger) (http.Handler, func()) {
	responseCache := cache.New[any](cfg.CacheTTL, cfg.CacheMaxSize, cache.WithName("github"))

	fetchOpts := []utils.FetcherOption{
		utils.WithLogger(logger),
		utils.WithAccept(github.AcceptHeader),
		utils.WithUserAgent("github-org-explorer/" + version),
		utils.WithCache(responseCache),
		utils.WithMaxTries(cfg.MaxTries),
		utils.WithRetryInterval(cfg.RetryInterval),
	}
	if cfg.Token != "" {
		fetchOpts = append(fetchOpts, utils.WithToken(cfg.Token))
	}
	fetcher := utils.NewFetcher(fetchOpts...)

	// Clients are cheap. Reuse across requests happens in the shared cache.
	newClient := func(org string) handler.OrgReader {
		return github.NewOrgClient(org, fetcher,
			github.WithBaseURL(cfg.BaseURL),
			github.WithLogger(logger),
		)
	}

	h := handler.New(newClient, logger, handler.WithTimeout(cfg.RequestTimeout))
	return h.Routes(), responseCache.Stop
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(1)
	}
	cfg.loadEnv(os.Getenv)

	// Set up slog with trace context injection.
	logger := otelsetup.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx := context.Background()
	otelShutdown, err := otelsetup.Setup(ctx, "github-org-explorer", version)
	if err != nil {
		slog.Error("failed to set up OpenTelemetry", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Error("OpenTelemetry shutdown error", slog.String("error", err.Error()))
		}
	}()

	routes, stopCache := newAPI(cfg, logger)
	defer stopCache()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           routes,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown: listen for SIGINT and SIGTERM.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("server starting",
			slog.String("listen", cfg.Listen),
			slog.String("github_api", cfg.BaseURL),
			slog.Bool("authenticated", cfg.Token != ""),
			slog.Duration("cache_ttl", cfg.CacheTTL),
			slog.Int("cache_max_size", cfg.CacheMaxSize),
			slog.Uint64("max_tries", uint64(cfg.MaxTries)),
			slog.Duration("request_timeout", cfg.RequestTimeout),
			slog.String("version", version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", slog.String("error", err.Error()))
	}

	slog.Info("server stopped")
}
