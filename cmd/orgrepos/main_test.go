// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewkroh/github-org-explorer/internal/githubtest"
)

func envFor(srv *githubtest.Server) func(string) string {
	return func(k string) string {
		if k == "GITHUB_API_BASE_URL" {
			return srv.URL
		}
		return ""
	}
}

func expectedLines(org string, repos []string) string {
	var b strings.Builder
	for _, r := range repos {
		b.WriteString(org + "\t" + r + "\n")
	}
	return b.String()
}

func TestParseFlags(t *testing.T) {
	var stderr bytes.Buffer
	opts, err := parseFlags([]string{"-license", "mit", "-timeout", "5s", "google", "acme"}, &stderr)
	require.NoError(t, err)

	assert.Equal(t, "mit", opts.License)
	assert.Equal(t, 5*time.Second, opts.Timeout)
	assert.Equal(t, []string{"google", "acme"}, opts.Orgs)
}

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no orgs", nil, exitUsage},
		{"unknown flag", []string{"-nope", "google"}, exitUsage},
		{"negative timeout", []string{"-timeout", "-1s", "google"}, exitUsage},
		{"help", []string{"-h"}, exitOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), tt.args, func(string) string { return "" }, &stdout, &stderr)
			require.Equal(t, tt.want, code, "exit code")
			assert.Zero(t, stdout.Len(), "expected no stdout, got %q", stdout.String())
			assert.Contains(t, stderr.String(), "Usage: orgrepos")
		})
	}
}

func TestRun_ListsRepos(t *testing.T) {
	srv := githubtest.NewServer()
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"google"}, envFor(srv), &stdout, &stderr)
	require.Equal(t, exitOK, code, "stderr: %s", stderr.String())

	assert.Equal(t, expectedLines("google", githubtest.Google().ExpectedRepos), stdout.String())
}

func TestRun_LicenseFilter(t *testing.T) {
	srv := githubtest.NewServer()
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-license", "apache-2.0", "google"}, envFor(srv), &stdout, &stderr)
	require.Equal(t, exitOK, code, "stderr: %s", stderr.String())

	assert.Equal(t, expectedLines("google", githubtest.Google().Apache2Repos), stdout.String())
}

func TestRun_MultipleOrgsInOrder(t *testing.T) {
	acme := githubtest.Fixture{
		Org: map[string]any{"login": "acme"},
		Repos: []map[string]any{
			{"name": "rockets", "license": map[string]any{"key": "mit"}},
			{"name": "anvils", "license": nil},
		},
	}
	srv := githubtest.NewServer(githubtest.WithFixture(acme))
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"acme", "google"}, envFor(srv), &stdout, &stderr)
	require.Equal(t, exitOK, code, "stderr: %s", stderr.String())

	want := expectedLines("acme", []string{"rockets", "anvils"}) +
		expectedLines("google", githubtest.Google().ExpectedRepos)
	assert.Equal(t, want, stdout.String())
}

func TestRun_UnknownOrg(t *testing.T) {
	srv := githubtest.NewServer()
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"abc", "google"}, envFor(srv), &stdout, &stderr)
	require.Equal(t, exitError, code)

	assert.Contains(t, stderr.String(), "orgrepos: abc:")
	// Other orgs are still listed.
	assert.Equal(t, expectedLines("google", githubtest.Google().ExpectedRepos), stdout.String())
}

func TestRun_Token(t *testing.T) {
	srv := githubtest.NewServer(githubtest.WithToken("secret"))
	defer srv.Close()

	getenv := func(k string) string {
		switch k {
		case "GITHUB_API_BASE_URL":
			return srv.URL
		case "GITHUB_TOKEN":
			return "secret"
		}
		return ""
	}

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"google"}, getenv, &stdout, &stderr)
	require.Equal(t, exitOK, code, "stderr: %s", stderr.String())

	// Without the token the fake API rejects the request.
	stdout.Reset()
	stderr.Reset()
	code = run(context.Background(), []string{"google"}, envFor(srv), &stdout, &stderr)
	assert.Equal(t, exitError, code)
}
