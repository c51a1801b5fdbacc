// Package render draws the grid change map with gonum/plot.
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/couchcryptid/crime-change-map/internal/domain"
)

const (
	markerAlpha = 0.6
	// colorbarShare is the fraction of the figure width given to the colorbar.
	colorbarShare = 0.09
)

// Basemap supplies a background image covering a view in lon/lat.
type Basemap interface {
	Basemap(ctx context.Context, view domain.Extent) (image.Image, error)
}

// Options sizes the output image.
type Options struct {
	Width      vg.Length
	Height     vg.Length
	DPI        int
	View       domain.Extent
	MarkerBase float64 // marker area in pt² for an unchanged incident count
}

// DefaultOptions is a 24x18 inch figure at 300 dpi over the default view.
func DefaultOptions() Options {
	return Options{
		Width:      24 * vg.Inch,
		Height:     18 * vg.Inch,
		DPI:        300,
		View:       domain.DefaultExtent(),
		MarkerBase: 50,
	}
}

// PixelWidth is the output width in pixels.
func (o Options) PixelWidth() int {
	return int(math.Round(float64(o.Width/vg.Inch) * float64(o.DPI)))
}

// Renderer draws change records as a scatter map and writes PNG.
type Renderer struct {
	opts    Options
	basemap Basemap
	logger  *slog.Logger
}

// New creates a Renderer. A nil basemap renders on a plain background.
func New(opts Options, basemap Basemap, logger *slog.Logger) *Renderer {
	return &Renderer{opts: opts, basemap: basemap, logger: logger}
}

// Render draws records and landmarks inside the configured view and writes
// the PNG to w. Records outside the view are not drawn.
func (r *Renderer) Render(ctx context.Context, records []domain.ChangeRecord, landmarks []domain.Landmark, w io.Writer) error {
	view := r.opts.View
	cmap := NewChangeColorMap(domain.MinChange, domain.MaxChange, markerAlpha)

	p := plot.New()
	p.HideAxes()
	p.X.Min, p.X.Max = view.MinLon, view.MaxLon
	p.Y.Min, p.Y.Max = view.MinLat, view.MaxLat

	if bg := r.loadBasemap(ctx, view); bg != nil {
		p.Add(plotter.NewImage(bg, view.MinLon, view.MinLat, view.MaxLon, view.MaxLat))
	}

	visible := make([]domain.ChangeRecord, 0, len(records))
	for _, rec := range records {
		if view.Contains(rec.Cell.Lon, rec.Cell.Lat) {
			visible = append(visible, rec)
		}
	}
	if len(visible) > 0 {
		scatter, err := r.scatter(visible, cmap)
		if err != nil {
			return err
		}
		p.Add(scatter)
	}

	p.Add(&landmarkLabels{landmarks: domain.VisibleLandmarks(landmarks, view)})
	addSizeLegend(p, r.opts.MarkerBase)

	// The axis ranges are pinned after Add, which widens them to fit data.
	p.X.Min, p.X.Max = view.MinLon, view.MaxLon
	p.Y.Min, p.Y.Max = view.MinLat, view.MaxLat

	bar := colorbarPlot(cmap)

	img := vgimg.NewWith(vgimg.UseWH(r.opts.Width, r.opts.Height), vgimg.UseDPI(r.opts.DPI))
	dc := draw.New(img)
	barWidth := r.opts.Width * colorbarShare
	p.Draw(draw.Crop(dc, 0, -barWidth, 0, 0))
	bar.Draw(draw.Crop(dc, r.opts.Width-barWidth, 0, 0, 0))

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	r.logger.Info("map rendered",
		"cells", len(visible),
		"skipped", len(records)-len(visible),
		"landmarks", len(landmarks),
		"dpi", r.opts.DPI,
	)
	return nil
}

func (r *Renderer) loadBasemap(ctx context.Context, view domain.Extent) image.Image {
	if r.basemap == nil {
		return nil
	}
	bg, err := r.basemap.Basemap(ctx, view)
	if err != nil {
		r.logger.Warn("basemap unavailable, rendering without it", "error", err)
		return nil
	}
	return bg
}

func (r *Renderer) scatter(records []domain.ChangeRecord, cmap palette.ColorMap) (*plotter.Scatter, error) {
	pts := make(plotter.XYs, len(records))
	colors := make([]color.Color, len(records))
	radii := make([]vg.Length, len(records))
	for i, rec := range records {
		pts[i].X = rec.Cell.Lon
		pts[i].Y = rec.Cell.Lat

		c, err := cmap.At(domain.Clip(rec.SeverityChange, domain.MinChange, domain.MaxChange))
		if err != nil {
			return nil, fmt.Errorf("color for cell %s: %w", rec.Cell.Key(), err)
		}
		colors[i] = c
		radii[i] = MarkerRadius(rec.IncidentChange, r.opts.MarkerBase)
	}

	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("scatter: %w", err)
	}
	s.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		return draw.GlyphStyle{Color: colors[i], Radius: radii[i], Shape: draw.CircleGlyph{}}
	}
	return s, nil
}

// MarkerArea is base scaled by the incident change and clamped to
// [base/2, 2*base].
func MarkerArea(incidentChange, base float64) float64 {
	area := base * (1 + incidentChange/100)
	return domain.Clip(area, base/2, base*2)
}

// MarkerRadius converts MarkerArea in pt² to a circle radius.
func MarkerRadius(incidentChange, base float64) vg.Length {
	return areaRadius(MarkerArea(incidentChange, base))
}

func areaRadius(area float64) vg.Length {
	return vg.Length(math.Sqrt(area / math.Pi))
}
