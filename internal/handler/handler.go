// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

// Package handler provides the HTTP API for exploring GitHub organizations.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/andrewkroh/github-org-explorer/internal/github"
	"github.com/andrewkroh/github-org-explorer/internal/otelsetup"
)

// RequestIDHeader carries the request ID on requests and responses.
const RequestIDHeader = "X-Request-Id"

// OrgReader defines the organization lookups served by the API.
// This allows the handler to be tested with a mock client.
type OrgReader interface {
	Org(ctx context.Context) (github.Payload, error)
	PublicRepos(ctx context.Context, license string) ([]string, error)
}

// ClientFactory returns an OrgReader for the named organization.
type ClientFactory func(org string) OrgReader

// Handler provides HTTP handlers for the explorer API.
type Handler struct {
	newClient ClientFactory
	log       *slog.Logger
	tracer    trace.Tracer
	timeout   time.Duration
}

// Option configures a Handler.
type Option func(*Handler)

// WithTimeout bounds the time spent on each upstream lookup. Zero disables
// the limit.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.timeout = d
	}
}

// New creates a new Handler that builds a client per request using
// newClient.
func New(newClient ClientFactory, log *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		newClient: newClient,
		log:       log,
		tracer:    otel.Tracer("github.com/andrewkroh/github-org-explorer/internal/handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns an http.Handler with all routes registered.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /orgs/{org}", h.handleGetOrg)
	mux.HandleFunc("GET /orgs/{org}/repos", h.handleListRepos)
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.HandleFunc("GET /ready", h.handleReady)
	return requestID(mux)
}

type requestIDKey struct{}

// requestID propagates the incoming X-Request-Id or assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ctx = otelsetup.WithLogAttrs(ctx, slog.String("request.id", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the request ID stored in ctx, or "" if there is none.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// getSourceIP extracts the client IP address from the request.
// It prefers the leftmost X-Forwarded-For entry and falls back to RemoteAddr.
func getSourceIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		clientIP, _, _ := strings.Cut(xff, ",")
		if clientIP = strings.TrimSpace(clientIP); clientIP != "" {
			return clientIP
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// startRequest begins a span for an API call and applies the lookup
// timeout.
func (h *Handler) startRequest(r *http.Request, name, org string) (context.Context, trace.Span, context.CancelFunc) {
	ctx, span := h.tracer.Start(r.Context(), name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("github.org", org),
			attribute.String("request.id", RequestID(r.Context())),
		),
	)
	cancel := context.CancelFunc(func() {})
	if h.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
	}
	return ctx, span, cancel
}

// handleGetOrg returns the organization payload.
func (h *Handler) handleGetOrg(w http.ResponseWriter, r *http.Request) {
	org := r.PathValue("org")
	ctx, span, cancel := h.startRequest(r, "handler.GetOrg", org)
	defer span.End()
	defer cancel()

	payload, err := h.newClient(org).Org(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleLookupError(ctx, w, r, org, err)
		return
	}

	h.log.InfoContext(ctx, "Served organization",
		slog.String("org", org),
	)
	writeJSON(w, http.StatusOK, payload)
}

// reposResponse is the JSON structure for repository listings.
type reposResponse struct {
	Org     string   `json:"org"`
	License string   `json:"license,omitempty"`
	Repos   []string `json:"repos"`
}

// handleListRepos returns the organization's public repository names,
// optionally filtered by license key.
func (h *Handler) handleListRepos(w http.ResponseWriter, r *http.Request) {
	org := r.PathValue("org")
	license := r.URL.Query().Get("license")
	ctx, span, cancel := h.startRequest(r, "handler.ListRepos", org)
	defer span.End()
	defer cancel()
	span.SetAttributes(attribute.String("github.license", license))

	repos, err := h.newClient(org).PublicRepos(ctx, license)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleLookupError(ctx, w, r, org, err)
		return
	}
	if repos == nil {
		repos = []string{}
	}
	span.SetAttributes(attribute.Int("github.repos", len(repos)))

	h.log.InfoContext(ctx, "Served repositories",
		slog.String("org", org),
		slog.String("license", license),
		slog.Int("repos", len(repos)),
	)
	writeJSON(w, http.StatusOK, reposResponse{Org: org, License: license, Repos: repos})
}

// handleLookupError maps upstream errors to appropriate HTTP responses.
func (h *Handler) handleLookupError(ctx context.Context, w http.ResponseWriter, r *http.Request, org string, err error) {
	attrs := []any{
		slog.String("org", org),
		slog.String("error", err.Error()),
		slog.String("source.ip", getSourceIP(r)),
	}

	switch {
	case errors.Is(err, github.ErrNotFound):
		h.log.InfoContext(ctx, "Organization not found", attrs...)
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("organization %q not found", org))
	case errors.Is(err, github.ErrRateLimited):
		h.log.WarnContext(ctx, "Upstream rate limited", attrs...)
		writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
	case errors.Is(err, github.ErrUnauthorized):
		h.log.ErrorContext(ctx, "Upstream rejected credentials", attrs...)
		writeJSONError(w, http.StatusBadGateway, "upstream rejected credentials")
	case errors.Is(err, context.DeadlineExceeded):
		h.log.WarnContext(ctx, "Upstream lookup timed out", attrs...)
		writeJSONError(w, http.StatusGatewayTimeout, "upstream timeout")
	default:
		h.log.ErrorContext(ctx, "Upstream lookup failed", attrs...)
		writeJSONError(w, http.StatusBadGateway, "bad gateway")
	}
}

// handleHealthz responds with a simple health check.
func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

// handleReady responds with a simple readiness check.
func (h *Handler) handleReady(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSONError writes a JSON error response with the given status code and message.
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message})
}
