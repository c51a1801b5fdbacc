package domain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twpayne/go-geom"
)

// Landmark is a named place drawn as a map label.
type Landmark struct {
	Name string
	Lon  float64
	Lat  float64
}

// LALandmarks returns the static Los Angeles label set.
func LALandmarks() []Landmark {
	return []Landmark{
		{"Venice", -118.471, 34.002},
		{"Beverly Hills", -118.400, 34.073},
		{"Bel Air", -118.461, 34.082},
		{"West Hollywood", -118.363, 34.090},
		{"Downtown", -118.243, 34.040},
		{"Koreatown", -118.300, 34.062},
		{"Echo Park", -118.260, 34.078},
		{"Los Feliz", -118.292, 34.105},
		{"Culver City", -118.396, 34.021},
		{"Century City", -118.417, 34.053},
		{"Brentwood", -118.476, 34.054},
		{"Pacific Palisades", -118.535, 34.045},
		{"Sherman Oaks", -118.451, 34.149},
		{"Studio City", -118.387, 34.139},
		{"North Hollywood", -118.376, 34.172},
		{"Van Nuys", -118.449, 34.186},
		{"Encino", -118.521, 34.151},
		{"Tarzana", -118.550, 34.168},
		{"Woodland Hills", -118.610, 34.165},
		{"Burbank", -118.309, 34.181},
		{"Glendale", -118.255, 34.142},
		{"Marina Del Rey", -118.451, 33.980},
		{"Playa Del Rey", -118.448, 33.945},
		{"El Segundo", -118.416, 33.919},
		{"Pacoima", -118.410, 34.275},
		{"Sunland", -118.302, 34.257},
		{"Sun Valley", -118.381, 34.217},
		{"Granada Hills", -118.530, 34.293},
		{"Chatsworth", -118.604, 34.257},
	}
}

// Extent is a lon/lat rectangle, the visible map area.
type Extent struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// DefaultExtent frames the City of Los Angeles west of downtown and the Valley.
func DefaultExtent() Extent {
	return Extent{MinLon: -118.75, MinLat: 33.90, MaxLon: -118.15, MaxLat: 34.35}
}

// Validate rejects empty or inverted extents.
func (e Extent) Validate() error {
	if e.MinLon >= e.MaxLon || e.MinLat >= e.MaxLat {
		return fmt.Errorf("extent %v,%v,%v,%v is empty or inverted", e.MinLon, e.MinLat, e.MaxLon, e.MaxLat)
	}
	return nil
}

// Bounds converts the extent to an XY geom.Bounds (x = lon, y = lat).
func (e Extent) Bounds() *geom.Bounds {
	return geom.NewBounds(geom.XY).Set(e.MinLon, e.MinLat, e.MaxLon, e.MaxLat)
}

// Contains reports whether lon,lat lies inside or on the edge of the extent.
func (e Extent) Contains(lon, lat float64) bool {
	return e.Bounds().OverlapsPoint(geom.XY, geom.Coord{lon, lat})
}

// VisibleLandmarks keeps the landmarks whose coordinate lies within the extent.
func VisibleLandmarks(landmarks []Landmark, view Extent) []Landmark {
	b := view.Bounds()
	out := make([]Landmark, 0, len(landmarks))
	for _, lm := range landmarks {
		if b.OverlapsPoint(geom.XY, geom.Coord{lm.Lon, lm.Lat}) {
			out = append(out, lm)
		}
	}
	return out
}

// LandmarkSource looks up named places inside an extent.
type LandmarkSource interface {
	Landmarks(ctx context.Context, view Extent) ([]Landmark, error)
}

// ResolveLandmarks asks source for labels and falls back to the static LA set
// when source is nil, fails, or returns nothing. The result is restricted to
// the view.
func ResolveLandmarks(ctx context.Context, source LandmarkSource, view Extent, logger *slog.Logger) []Landmark {
	if source == nil {
		return VisibleLandmarks(LALandmarks(), view)
	}

	landmarks, err := source.Landmarks(ctx, view)
	if err != nil {
		logger.Warn("landmark lookup failed, using static set", "error", err)
		return VisibleLandmarks(LALandmarks(), view)
	}
	if len(landmarks) == 0 {
		logger.Info("landmark source returned nothing, using static set")
		return VisibleLandmarks(LALandmarks(), view)
	}
	return VisibleLandmarks(landmarks, view)
}
