package domain

import "math"

// Percent-change bounds.
const (
	MinChange = -100.0
	MaxChange = 100.0
)

// PercentChange returns the change from base to cur in percent, clipped to
// [-100, 100]. A zero base has no ratio: it yields +100 when cur is positive
// (a new cell) and 0 when both are zero. The result is always finite.
func PercentChange(base, cur float64) float64 {
	if base == 0 {
		switch {
		case cur > 0:
			return MaxChange
		case cur < 0:
			return MinChange
		default:
			return 0
		}
	}
	return Clip((cur-base)/base*100, MinChange, MaxChange)
}

// Clip bounds v to [lo, hi]. NaN clips to 0.
func Clip(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(hi, v))
}
