package tiles

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/couchcryptid/crime-change-map/internal/domain"
)

// MaxZoom is the deepest zoom level requested from the tile server.
const MaxZoom = 18

// Provider builds basemap images for a view from Web Mercator tiles.
type Provider struct {
	fetcher     Fetcher
	targetWidth int // pixels the basemap will be drawn across
	maxTiles    int
	logger      *slog.Logger
}

// NewProvider creates a basemap provider. The zoom is chosen so the view is
// at least targetWidth pixels wide, then lowered until at most maxTiles tiles
// are needed.
func NewProvider(fetcher Fetcher, targetWidth, maxTiles int, logger *slog.Logger) *Provider {
	return &Provider{
		fetcher:     fetcher,
		targetWidth: targetWidth,
		maxTiles:    maxTiles,
		logger:      logger,
	}
}

// Basemap returns an image covering view with linear lon/lat axes, so it can
// be placed directly on the plot's data coordinates.
func (p *Provider) Basemap(ctx context.Context, view domain.Extent) (image.Image, error) {
	if err := view.Validate(); err != nil {
		return nil, err
	}
	z := zoomFor(view, p.targetWidth, p.maxTiles)
	r := rangeFor(view, z)
	p.logger.Debug("fetching basemap tiles", "zoom", z, "tiles", r.count())

	mosaic, err := p.mosaic(ctx, r)
	if err != nil {
		return nil, err
	}
	return warp(mosaic, r, view), nil
}

func (p *Provider) mosaic(ctx context.Context, r tileRange) (*image.RGBA, error) {
	nx, ny := r.x1-r.x0+1, r.y1-r.y0+1
	dst := image.NewRGBA(image.Rect(0, 0, nx*Size, ny*Size))

	for y := r.y0; y <= r.y1; y++ {
		for x := r.x0; x <= r.x1; x++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			img, err := p.fetcher.Fetch(ctx, Tile{Z: r.z, X: x, Y: y})
			if err != nil {
				return nil, fmt.Errorf("basemap: %w", err)
			}
			off := image.Pt((x-r.x0)*Size, (y-r.y0)*Size)
			xdraw.Draw(dst, image.Rectangle{Min: off, Max: off.Add(image.Pt(Size, Size))}, img, img.Bounds().Min, xdraw.Src)
		}
	}
	return dst, nil
}

// warp resamples the Mercator mosaic onto an equirectangular grid. Longitude
// is linear in both projections, so each output row is a horizontal scale of
// the single mosaic row at that row's latitude.
func warp(mosaic *image.RGBA, r tileRange, view domain.Extent) *image.RGBA {
	originX, originY := float64(r.x0*Size), float64(r.y0*Size)
	sx0 := lonToPixelX(view.MinLon, r.z) - originX
	sx1 := lonToPixelX(view.MaxLon, r.z) - originX
	top := latToPixelY(view.MaxLat, r.z) - originY
	bottom := latToPixelY(view.MinLat, r.z) - originY

	w := max(1, int(math.Round(sx1-sx0)))
	h := max(1, int(math.Round(bottom-top)))
	out := image.NewRGBA(image.Rect(0, 0, w, h))

	bounds := mosaic.Bounds()
	srcX0 := max(bounds.Min.X, int(math.Floor(sx0)))
	srcX1 := min(bounds.Max.X, int(math.Ceil(sx1)))
	for j := 0; j < h; j++ {
		lat := view.MaxLat - (float64(j)+0.5)/float64(h)*(view.MaxLat-view.MinLat)
		sy := int(math.Floor(latToPixelY(lat, r.z) - originY))
		sy = min(max(sy, bounds.Min.Y), bounds.Max.Y-1)

		xdraw.NearestNeighbor.Scale(out, image.Rect(0, j, w, j+1),
			mosaic, image.Rect(srcX0, sy, srcX1, sy+1), xdraw.Src, nil)
	}
	return out
}

// tileRange is an inclusive block of tiles at one zoom.
type tileRange struct {
	z, x0, y0, x1, y1 int
}

func (r tileRange) count() int {
	return (r.x1 - r.x0 + 1) * (r.y1 - r.y0 + 1)
}

func rangeFor(view domain.Extent, z int) tileRange {
	last := 1<<z - 1
	clamp := func(v int) int { return min(max(v, 0), last) }
	return tileRange{
		z:  z,
		x0: clamp(int(math.Floor(lonToPixelX(view.MinLon, z) / Size))),
		x1: clamp(int(math.Floor(lonToPixelX(view.MaxLon, z) / Size))),
		y0: clamp(int(math.Floor(latToPixelY(view.MaxLat, z) / Size))),
		y1: clamp(int(math.Floor(latToPixelY(view.MinLat, z) / Size))),
	}
}

func zoomFor(view domain.Extent, targetWidth, maxTiles int) int {
	span := view.MaxLon - view.MinLon
	z := int(math.Ceil(math.Log2(float64(targetWidth) * 360 / (span * Size))))
	z = min(max(z, 0), MaxZoom)
	for z > 0 && rangeFor(view, z).count() > maxTiles {
		z--
	}
	return z
}

// lonToPixelX and latToPixelY give global Web Mercator pixel coordinates.
func lonToPixelX(lon float64, z int) float64 {
	return (lon + 180) / 360 * worldSize(z)
}

func latToPixelY(lat float64, z int) float64 {
	rad := lat * math.Pi / 180
	return (1 - math.Asinh(math.Tan(rad))/math.Pi) / 2 * worldSize(z)
}

func worldSize(z int) float64 {
	return float64(Size) * math.Exp2(float64(z))
}
