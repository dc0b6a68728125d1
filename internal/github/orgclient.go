// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/andrewkroh/github-org-explorer/internal/utils"
)

const tracerName = "github.com/andrewkroh/github-org-explorer/internal/github"

// OrgClient reads a single GitHub organization. The org payload and the
// repos payload are each fetched at most once per client.
type OrgClient struct {
	org     string
	getter  JSONGetter
	baseURL string
	log     *slog.Logger
	tracer  trace.Tracer

	orgPayload   *utils.Memo[Payload]
	reposPayload *utils.Memo[[]Payload]
}

// Option configures an OrgClient.
type Option func(*OrgClient)

// WithBaseURL sets the base URL for the GitHub API.
func WithBaseURL(baseURL string) Option {
	return func(c *OrgClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *OrgClient) {
		c.log = l
	}
}

// NewOrgClient creates a client for org that fetches documents through
// getter. By default it targets https://api.github.com and logs to
// slog.Default().
func NewOrgClient(org string, getter JSONGetter, opts ...Option) *OrgClient {
	c := &OrgClient{
		org:     org,
		getter:  getter,
		baseURL: DefaultBaseURL,
		log:     slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.orgPayload = utils.Memoize(c.fetchOrg)
	c.reposPayload = utils.Memoize(c.fetchRepos)
	return c
}

// Name returns the organization name the client was created for.
func (c *OrgClient) Name() string {
	return c.org
}

// OrgURL returns the API URL of the organization.
func (c *OrgClient) OrgURL() string {
	return c.baseURL + "/orgs/" + url.PathEscape(c.org)
}

// Org returns the organization payload.
func (c *OrgClient) Org(ctx context.Context) (Payload, error) {
	return c.orgPayload.Get(ctx)
}

func (c *OrgClient) fetchOrg(ctx context.Context) (Payload, error) {
	ctx, span := c.tracer.Start(ctx, "github.get_org",
		trace.WithAttributes(attribute.String("github.org", c.org)),
	)
	defer span.End()

	v, err := c.getter.GetJSON(ctx, c.OrgURL())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.WarnContext(ctx, "failed to fetch org", slog.String("org", c.org), slog.String("error", err.Error()))
		return nil, fmt.Errorf("github: fetching org %q: %w", c.org, err)
	}

	payload, ok := v.(map[string]any)
	if !ok {
		err := fmt.Errorf("github: org %q: expected JSON object, got %T", c.org, v)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c.log.DebugContext(ctx, "fetched org", slog.String("org", c.org))
	return payload, nil
}

// PublicReposURL returns the repos_url of the organization payload.
func (c *OrgClient) PublicReposURL(ctx context.Context) (string, error) {
	org, err := c.Org(ctx)
	if err != nil {
		return "", err
	}

	v, err := utils.AccessNestedMap(org, "repos_url")
	if err != nil {
		return "", fmt.Errorf("github: org %q: %w", c.org, err)
	}
	reposURL, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("github: org %q: repos_url is %T, not a string", c.org, v)
	}
	return reposURL, nil
}

// ReposPayload returns the organization's public repositories as returned
// by the API, across all pages.
func (c *OrgClient) ReposPayload(ctx context.Context) ([]Payload, error) {
	return c.reposPayload.Get(ctx)
}

func (c *OrgClient) fetchRepos(ctx context.Context) ([]Payload, error) {
	ctx, span := c.tracer.Start(ctx, "github.list_org_repos",
		trace.WithAttributes(attribute.String("github.org", c.org)),
	)
	defer span.End()

	reposURL, err := c.PublicReposURL(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	items, err := c.getter.GetJSONList(ctx, reposURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.WarnContext(ctx, "failed to list org repos", slog.String("org", c.org), slog.String("error", err.Error()))
		return nil, fmt.Errorf("github: listing repos of %q: %w", c.org, err)
	}

	repos := make([]Payload, 0, len(items))
	for i, item := range items {
		repo, ok := item.(map[string]any)
		if !ok {
			err := fmt.Errorf("github: repos of %q: entry %d is %T, not an object", c.org, i, item)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		repos = append(repos, repo)
	}

	span.SetAttributes(attribute.Int("github.repos", len(repos)))
	c.log.InfoContext(ctx, "listed org repos", slog.String("org", c.org), slog.Int("repos", len(repos)))
	return repos, nil
}

// PublicRepos returns the names of the organization's public repositories
// in API order. When license is non-empty only repositories whose license
// key equals license are returned.
func (c *OrgClient) PublicRepos(ctx context.Context, license string) ([]string, error) {
	repos, err := c.ReposPayload(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(repos))
	for _, repo := range repos {
		if license != "" && !HasLicense(repo, license) {
			continue
		}

		v, err := utils.AccessNestedMap(repo, "name")
		if err != nil {
			return nil, fmt.Errorf("github: repos of %q: %w", c.org, err)
		}
		name, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("github: repos of %q: name is %T, not a string", c.org, v)
		}
		names = append(names, name)
	}

	c.log.DebugContext(ctx, "filtered public repos",
		slog.String("org", c.org),
		slog.String("license", license),
		slog.Int("total", len(repos)),
		slog.Int("matched", len(names)),
	)
	return names, nil
}

// HasLicense reports whether repo["license"]["key"] equals licenseKey.
// Repositories without a license, or with a null license, have none.
func HasLicense(repo Payload, licenseKey string) bool {
	v, err := utils.AccessNestedMap(repo, "license", "key")
	if err != nil {
		return false
	}
	key, ok := v.(string)
	return ok && key == licenseKey
}
