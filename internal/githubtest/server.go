// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

// Package githubtest provides a fake GitHub REST API for tests. It serves
// organization and repository listings from fixtures, with Link-header
// pagination like the real API.
package githubtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

const (
	defaultPerPage = 30
	maxPerPage     = 100
)

// Server is a fake GitHub API backed by httptest.Server.
type Server struct {
	*httptest.Server

	orgs     map[string]Fixture
	pageSize int
	token    string

	mu       sync.Mutex
	requests map[string]int
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithFixture serves f under its org login in addition to the defaults.
func WithFixture(f Fixture) ServerOption {
	return func(s *Server) {
		s.orgs[strings.ToLower(f.Login())] = f
	}
}

// WithPageSize forces every repos page to hold n entries regardless of
// the per_page parameter.
func WithPageSize(n int) ServerOption {
	return func(s *Server) {
		s.pageSize = n
	}
}

// WithToken requires requests to carry "Authorization: Bearer <token>".
func WithToken(token string) ServerOption {
	return func(s *Server) {
		s.token = token
	}
}

// NewServer starts a fake API serving the google fixture. Close it when
// done.
func NewServer(opts ...ServerOption) *Server {
	google := Google()
	s := &Server{
		orgs:     map[string]Fixture{google.Login(): google},
		requests: map[string]int{},
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /orgs/{org}", s.handleGetOrg)
	mux.HandleFunc("GET /orgs/{org}/repos", s.handleListOrgRepos)
	s.Server = httptest.NewServer(s.count(mux))
	return s
}

// Requests returns how many requests were made for path.
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// authorize reports whether the request may proceed, writing a 401 if not.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	if s.token == "" {
		return true
	}
	if r.Header.Get("Authorization") == "Bearer "+s.token {
		return true
	}
	writeMessage(w, http.StatusUnauthorized, "Bad credentials")
	return false
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (Fixture, bool) {
	f, ok := s.orgs[strings.ToLower(r.PathValue("org"))]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Not Found")
	}
	return f, ok
}

// handleGetOrg implements GET /orgs/{org}.
func (s *Server) handleGetOrg(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}
	f, ok := s.lookup(w, r)
	if !ok {
		return
	}

	base := "http://" + r.Host + "/orgs/" + f.Login()
	org := make(map[string]any, len(f.Org))
	for k, v := range f.Org {
		org[k] = v
	}
	org["url"] = base
	org["repos_url"] = base + "/repos"

	writeJSON(w, org)
}

// handleListOrgRepos implements GET /orgs/{org}/repos.
func (s *Server) handleListOrgRepos(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}
	f, ok := s.lookup(w, r)
	if !ok {
		return
	}

	perPage := queryInt(r, "per_page", defaultPerPage)
	perPage = min(max(perPage, 1), maxPerPage)
	if s.pageSize > 0 {
		perPage = s.pageSize
	}
	pageNum := max(queryInt(r, "page", 1), 1)

	start := min((pageNum-1)*perPage, len(f.Repos))
	end := min(start+perPage, len(f.Repos))

	if end < len(f.Repos) {
		next := fmt.Sprintf("http://%s%s?per_page=%d&page=%d", r.Host, r.URL.Path, perPage, pageNum+1)
		w.Header().Set("Link", fmt.Sprintf(`<%s>; rel="next"`, next))
	}

	writeJSON(w, f.Repos[start:end])
}

func queryInt(r *http.Request, name string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
