// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

// Package numfmt provides small float helpers.
package numfmt

import (
	"math"
	"strconv"
	"strings"
)

// Exponent form is used outside [expLow, expHigh).
const (
	expLow  = 1e-4
	expHigh = 1e16
)

// ToStr returns the shortest decimal representation of n that parses back
// to the same float64. Integral values keep a trailing ".0", very large or
// very small magnitudes use exponent form (1e+16, 1.5e-05), and the
// non-finite values render as "nan", "inf" and "-inf".
func ToStr(n float64) string {
	switch {
	case math.IsNaN(n):
		return "nan"
	case math.IsInf(n, 1):
		return "inf"
	case math.IsInf(n, -1):
		return "-inf"
	}

	abs := math.Abs(n)
	if abs != 0 && (abs < expLow || abs >= expHigh) {
		return strconv.FormatFloat(n, 'e', -1, 64)
	}

	s := strconv.FormatFloat(n, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// SumList returns the sum of xs, added left to right. An empty list sums
// to 0.
func SumList(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum
}
