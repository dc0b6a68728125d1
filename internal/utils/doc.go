// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

// Package utils provides the helpers the GitHub client is built on:
// nested map access over decoded JSON ([AccessNestedMap]), lazily computed
// values ([Memo]) and a JSON-over-HTTP fetcher ([Fetcher], [GetJSON]).
package utils
