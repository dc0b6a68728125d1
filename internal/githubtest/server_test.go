// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package githubtest

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getJSON(t *testing.T, url string, header http.Header, v any) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, vs := range header {
		req.Header[k] = vs
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v), "decoding response")
	}
	return resp
}

func TestGoogleFixture(t *testing.T) {
	f := Google()
	assert.Equal(t, "google", f.Login())
	assert.Len(t, f.ExpectedRepos, len(f.Repos))
	assert.Len(t, f.Apache2Repos, 4)
}

func TestServer_Org(t *testing.T) {
	srv := NewServer()
	defer srv.Close()

	var org map[string]any
	resp := getJSON(t, srv.URL+"/orgs/google", nil, &org)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, srv.URL+"/orgs/google/repos", org["repos_url"])
	assert.Equal(t, 1, srv.Requests("/orgs/google"))
}

func TestServer_UnknownOrg(t *testing.T) {
	srv := NewServer()
	defer srv.Close()

	resp := getJSON(t, srv.URL+"/orgs/abc", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Pagination(t *testing.T) {
	srv := NewServer(WithPageSize(4))
	defer srv.Close()

	var repos []map[string]any
	resp := getJSON(t, srv.URL+"/orgs/google/repos", nil, &repos)
	require.Len(t, repos, 4)
	link := resp.Header.Get("Link")
	assert.Contains(t, link, "page=2")
	assert.Contains(t, link, `rel="next"`)

	resp = getJSON(t, srv.URL+"/orgs/google/repos?page=3", nil, &repos)
	require.Len(t, repos, 1)
	assert.Empty(t, resp.Header.Get("Link"), "expected no Link header on last page")
}

func TestServer_Token(t *testing.T) {
	srv := NewServer(WithToken("secret"))
	defer srv.Close()

	resp := getJSON(t, srv.URL+"/orgs/google", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "status without token")

	resp = getJSON(t, srv.URL+"/orgs/google", http.Header{"Authorization": {"Bearer secret"}}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "status with token")
}
