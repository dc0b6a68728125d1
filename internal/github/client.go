// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package github

import (
	"context"

	"github.com/andrewkroh/github-org-explorer/internal/utils"
)

const (
	// DefaultBaseURL is the public GitHub REST API.
	DefaultBaseURL = "https://api.github.com"

	// AcceptHeader is the media type requested from the GitHub API.
	AcceptHeader = "application/vnd.github+json"
)

// Errors returned by the GitHub API, as surfaced by the JSON fetcher.
var (
	ErrUnauthorized = utils.ErrUnauthorized
	ErrNotFound     = utils.ErrNotFound
	ErrRateLimited  = utils.ErrRateLimited
)

// JSONGetter fetches decoded JSON documents. *utils.Fetcher implements it.
type JSONGetter interface {
	// GetJSON fetches a single JSON document.
	GetJSON(ctx context.Context, url string) (any, error)

	// GetJSONList fetches a JSON array, following pagination.
	GetJSONList(ctx context.Context, url string) ([]any, error)
}
