package render

import (
	"image/color"

	xfont "golang.org/x/image/font"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/couchcryptid/crime-change-map/internal/domain"
)

var (
	labelBox    = color.NRGBA{R: 255, G: 255, B: 255, A: 178} // white, alpha 0.7
	swatchColor = color.NRGBA{R: 128, G: 128, B: 128, A: 153} // gray, alpha 0.6
)

func sansFont(size vg.Length, weight xfont.Weight) font.Font {
	return font.Font{Typeface: "Liberation", Variant: "Sans", Weight: weight, Size: size}
}

// landmarkLabels draws bold place names centered on translucent boxes.
type landmarkLabels struct {
	landmarks []domain.Landmark
}

func (l *landmarkLabels) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	sty := text.Style{
		Color:   color.Black,
		Font:    sansFont(14, xfont.WeightBold),
		XAlign:  text.XCenter,
		YAlign:  text.YCenter,
		Handler: plot.DefaultTextHandler,
	}
	pad := sty.Font.Size / 2

	for _, lm := range l.landmarks {
		pt := vg.Point{X: trX(lm.Lon), Y: trY(lm.Lat)}
		if !c.Contains(pt) {
			continue
		}
		halfW := sty.Width(lm.Name)/2 + pad
		halfH := sty.Height(lm.Name)/2 + pad
		c.FillPolygon(labelBox, roundedBox(pt, halfW, halfH, pad))
		c.FillText(sty, pt, lm.Name)
	}
}

// roundedBox returns a rectangle around center with its corners cut at
// radius r, close enough to a rounded box at label sizes.
func roundedBox(center vg.Point, halfW, halfH, r vg.Length) []vg.Point {
	x0, x1 := center.X-halfW, center.X+halfW
	y0, y1 := center.Y-halfH, center.Y+halfH
	return []vg.Point{
		{X: x0 + r, Y: y0}, {X: x1 - r, Y: y0},
		{X: x1, Y: y0 + r}, {X: x1, Y: y1 - r},
		{X: x1 - r, Y: y1}, {X: x0 + r, Y: y1},
		{X: x0, Y: y1 - r}, {X: x0, Y: y0 + r},
	}
}

// sizeSwatch is a legend thumbnail showing one fixed marker area.
type sizeSwatch struct {
	radius vg.Length
}

func (s sizeSwatch) Thumbnail(c *draw.Canvas) {
	center := vg.Point{X: (c.Min.X + c.Max.X) / 2, Y: (c.Min.Y + c.Max.Y) / 2}
	c.DrawGlyph(draw.GlyphStyle{Color: swatchColor, Radius: s.radius, Shape: draw.CircleGlyph{}}, center)
}

// Legend entries are fixed reference sizes, never derived from the data.
var sizeLegend = []struct {
	label      string
	multiplier float64
}{
	{"-50% or more", 2},
	{"No change", 4},
	{"+50% or more", 8},
}

func addSizeLegend(p *plot.Plot, base float64) {
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -vg.Points(18)
	p.Legend.YOffs = -vg.Points(18)
	p.Legend.TextStyle.Font = sansFont(18, xfont.WeightNormal)
	p.Legend.ThumbnailWidth = 2 * areaRadius(base*8)
	p.Legend.Padding = vg.Points(6)

	p.Legend.Add("Incident Count Change")
	for _, e := range sizeLegend {
		p.Legend.Add(e.label, sizeSwatch{radius: areaRadius(base * e.multiplier)})
	}
}

// colorbarPlot is the vertical severity-change scale drawn beside the map.
func colorbarPlot(cmap palette.ColorMap) *plot.Plot {
	p := plot.New()
	p.HideX()
	p.Y.Label.Text = "% Change in Crime Severity"
	p.Y.Label.TextStyle.Font = sansFont(18, xfont.WeightNormal)
	p.Y.Tick.Label.Font = sansFont(16, xfont.WeightNormal)
	p.Add(&plotter.ColorBar{ColorMap: cmap, Vertical: true})
	return p
}
