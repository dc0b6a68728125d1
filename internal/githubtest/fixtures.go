// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package githubtest

import (
	_ "embed"
	"encoding/json"
)

//go:embed fixtures/google.json
var googleJSON []byte

// Fixture is an organization payload, its repositories, and the
// repository names a client is expected to report for it.
type Fixture struct {
	Org           map[string]any   `json:"org"`
	Repos         []map[string]any `json:"repos"`
	ExpectedRepos []string         `json:"expected_repos"`
	Apache2Repos  []string         `json:"apache2_repos"`
}

// Login returns the organization login of the fixture.
func (f Fixture) Login() string {
	login, _ := f.Org["login"].(string)
	return login
}

// Google returns a fresh copy of the google organization fixture.
func Google() Fixture {
	var f Fixture
	if err := json.Unmarshal(googleJSON, &f); err != nil {
		panic("githubtest: invalid google fixture: " + err.Error())
	}
	return f
}
