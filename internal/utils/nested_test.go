// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessNestedMap(t *testing.T) {
	tests := []struct {
		name      string
		nestedMap map[string]any
		path      []string
		expected  any
	}{
		{"flat", map[string]any{"a": 1}, []string{"a"}, 1},
		{"nested map value", map[string]any{"a": map[string]any{"b": 2}}, []string{"a"}, map[string]any{"b": 2}},
		{"nested leaf", map[string]any{"a": map[string]any{"b": 2}}, []string{"a", "b"}, 2},
		{"empty path", map[string]any{"a": 1}, nil, map[string]any{"a": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AccessNestedMap(tt.nestedMap, tt.path...)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestAccessNestedMap_KeyError(t *testing.T) {
	tests := []struct {
		name      string
		nestedMap map[string]any
		path      []string
		key       string
	}{
		{"empty map", map[string]any{}, []string{"a"}, "a"},
		{"leaf is not a map", map[string]any{"a": 1}, []string{"a", "b"}, "b"},
		{"nil map", nil, []string{"a"}, "a"},
		{"null intermediate", map[string]any{"a": nil}, []string{"a", "b"}, "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AccessNestedMap(tt.nestedMap, tt.path...)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrKeyNotFound)

			var ke *KeyError
			require.True(t, errors.As(err, &ke))
			assert.Equal(t, tt.key, ke.Key)
			assert.Equal(t, tt.path, ke.Path)
			assert.Contains(t, err.Error(), `"`+tt.key+`"`)
		})
	}
}
