package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentChange(t *testing.T) {
	tests := []struct {
		name     string
		base     float64
		cur      float64
		expected float64
	}{
		{"no change", 4, 4, 0},
		{"halved", 4, 2, -50},
		{"doubled", 2, 4, 100},
		{"tripled clips", 2, 6, 100},
		{"vanished", 2, 0, -100},
		{"new cell", 0, 3, 100},
		{"both zero", 0, 0, 0},
		{"fractional", 2.5, 3, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, PercentChange(tt.base, tt.cur), 1e-9)
		})
	}
}

func TestPercentChange_AlwaysBounded(t *testing.T) {
	values := []float64{0, 1e-300, 0.001, 1, 2, 5, 1e6, math.MaxFloat64}
	for _, base := range values {
		for _, cur := range values {
			v := PercentChange(base, cur)
			assert.False(t, math.IsNaN(v), "base=%v cur=%v", base, cur)
			assert.GreaterOrEqual(t, v, MinChange, "base=%v cur=%v", base, cur)
			assert.LessOrEqual(t, v, MaxChange, "base=%v cur=%v", base, cur)
		}
	}
}

func TestClip(t *testing.T) {
	assert.Equal(t, 5.0, Clip(5, 0, 10))
	assert.Equal(t, 0.0, Clip(-5, 0, 10))
	assert.Equal(t, 10.0, Clip(15, 0, 10))
	assert.Equal(t, 10.0, Clip(math.Inf(1), 0, 10))
	assert.Equal(t, 0.0, Clip(math.NaN(), -10, 10))
}
