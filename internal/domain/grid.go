package domain

import (
	"fmt"
	"math"
)

// DefaultGridResolution is the cell size in degrees, about 500 m in LA.
const DefaultGridResolution = 0.005

// Grid quantizes coordinates onto fixed-size lat/lon buckets.
type Grid struct {
	Resolution float64
}

// Cell identifies one grid bucket. LatIdx/LonIdx are the identity; Lat/Lon
// are the snapped coordinates used for display.
type Cell struct {
	LatIdx int64   `json:"lat_idx"`
	LonIdx int64   `json:"lon_idx"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
}

// Key returns the cell as "<lat>,<lon>" with six decimals.
func (c Cell) Key() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// Snap divides each coordinate by the resolution, rounds half to even (the
// same rule numpy's round uses) and multiplies back.
func (g Grid) Snap(lat, lon float64) Cell {
	latIdx := int64(math.RoundToEven(lat / g.Resolution))
	lonIdx := int64(math.RoundToEven(lon / g.Resolution))
	return Cell{
		LatIdx: latIdx,
		LonIdx: lonIdx,
		Lat:    float64(latIdx) * g.Resolution,
		Lon:    float64(lonIdx) * g.Resolution,
	}
}

type cellKey struct {
	lat, lon int64
}

func (c Cell) key() cellKey {
	return cellKey{lat: c.LatIdx, lon: c.LonIdx}
}
