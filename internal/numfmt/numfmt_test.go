// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package numfmt

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToStr(t *testing.T) {
	// Computed at run time. A constant 0.1 + 0.2 is folded exactly to 0.3.
	a, b := 0.1, 0.2

	tests := []struct {
		in   float64
		want string
	}{
		{3.14, "3.14"},
		{1, "1.0"},
		{0, "0.0"},
		{math.Copysign(0, -1), "-0.0"},
		{-2.5, "-2.5"},
		{100, "100.0"},
		{1000000, "1000000.0"},
		{a + b, "0.30000000000000004"},
		{0.0001, "0.0001"},
		{0.000015, "1.5e-05"},
		{1e16, "1e+16"},
		{1.5e300, "1.5e+300"},
		{math.NaN(), "nan"},
		{math.Inf(1), "inf"},
		{math.Inf(-1), "-inf"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ToStr(tt.in))
		})
	}
}

func TestToStr_RoundTrip(t *testing.T) {
	for _, n := range []float64{3.14, 2.718281828459045, 1e-7, 123456789.125, 9.999999999999999e15} {
		got, err := strconv.ParseFloat(ToStr(n), 64)
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}
}

func TestSumList(t *testing.T) {
	assert.Equal(t, 0.0, SumList(nil))
	assert.Equal(t, 0.0, SumList([]float64{}))
	assert.Equal(t, 6.5, SumList([]float64{1, 2.5, 3}))
	assert.InDelta(t, 0.6, SumList([]float64{0.1, 0.2, 0.3}), 1e-12)
	assert.Equal(t, -1.0, SumList([]float64{1.5, -2.5}))
}
