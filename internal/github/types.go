// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

// Package github provides a client for reading GitHub organizations and
// their public repositories.
package github

// Payload is a decoded GitHub API JSON object. Payloads are passed
// through as returned by the API so callers can read any field.
type Payload = map[string]any
