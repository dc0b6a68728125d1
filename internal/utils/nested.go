// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package utils

import (
	"errors"
	"strconv"
	"strings"
)

// ErrKeyNotFound is matched by every *KeyError.
var ErrKeyNotFound = errors.New("key not found")

// KeyError reports a path element that could not be resolved.
type KeyError struct {
	// Key is the path element that was missing.
	Key string

	// Path is the full path that was being accessed.
	Path []string
}

func (e *KeyError) Error() string {
	return "key not found: " + strconv.Quote(e.Key) + " in path " + strings.Join(e.Path, ".")
}

// Is reports whether target is ErrKeyNotFound.
func (e *KeyError) Is(target error) bool {
	return target == ErrKeyNotFound
}

// AccessNestedMap walks m along path and returns the value found at the
// end. Each intermediate value must be a map[string]any (as produced by
// encoding/json). A missing key, or an intermediate value that is not a
// map, yields a *KeyError naming the offending key. An empty path returns
// m itself.
func AccessNestedMap(m map[string]any, path ...string) (any, error) {
	var current any = m
	for _, key := range path {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, &KeyError{Key: key, Path: path}
		}
		current, ok = node[key]
		if !ok {
			return nil, &KeyError{Key: key, Path: path}
		}
	}
	return current, nil
}
