package render

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot/palette"
)

// rdYlGn holds the eleven ColorBrewer RdYlGn control colors, red first.
var rdYlGn = []color.NRGBA{
	{0xa5, 0x00, 0x26, 0xff},
	{0xd7, 0x30, 0x27, 0xff},
	{0xf4, 0x6d, 0x43, 0xff},
	{0xfd, 0xae, 0x61, 0xff},
	{0xfe, 0xe0, 0x8b, 0xff},
	{0xff, 0xff, 0xbf, 0xff},
	{0xd9, 0xef, 0x8b, 0xff},
	{0xa6, 0xd9, 0x6a, 0xff},
	{0x66, 0xbd, 0x63, 0xff},
	{0x1a, 0x98, 0x50, 0xff},
	{0x00, 0x68, 0x37, 0xff},
}

// divergingMap is a palette.ColorMap that linearly interpolates between
// evenly spaced control colors.
type divergingMap struct {
	controls []color.NRGBA
	lo, hi   float64
	alpha    float64
}

var _ palette.ColorMap = (*divergingMap)(nil)

// NewChangeColorMap returns reversed RdYlGn over [lo, hi]: decreases are
// green, increases red, no change pale yellow.
func NewChangeColorMap(lo, hi, alpha float64) palette.ColorMap {
	controls := make([]color.NRGBA, len(rdYlGn))
	for i, c := range rdYlGn {
		controls[len(rdYlGn)-1-i] = c
	}
	return &divergingMap{controls: controls, lo: lo, hi: hi, alpha: alpha}
}

func (m *divergingMap) At(v float64) (color.Color, error) {
	switch {
	case math.IsNaN(v):
		return nil, fmt.Errorf("colormap: NaN value")
	case v < m.lo:
		return nil, palette.ErrUnderflow
	case v > m.hi:
		return nil, palette.ErrOverflow
	}

	pos := (v - m.lo) / (m.hi - m.lo) * float64(len(m.controls)-1)
	i := int(math.Floor(pos))
	if i >= len(m.controls)-1 {
		i = len(m.controls) - 2
	}
	frac := pos - float64(i)
	a, b := m.controls[i], m.controls[i+1]

	lerp := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*frac))
	}
	return color.NRGBA{
		R: lerp(a.R, b.R),
		G: lerp(a.G, b.G),
		B: lerp(a.B, b.B),
		A: uint8(math.Round(m.alpha * 255)),
	}, nil
}

func (m *divergingMap) Max() float64 { return m.hi }
func (m *divergingMap) SetMax(v float64) { m.hi = v }
func (m *divergingMap) Min() float64 { return m.lo }
func (m *divergingMap) SetMin(v float64) { m.lo = v }
func (m *divergingMap) Alpha() float64 { return m.alpha }
func (m *divergingMap) SetAlpha(a float64) { m.alpha = a }

func (m *divergingMap) Palette(colors int) palette.Palette {
	out := make([]color.Color, colors)
	for i := range out {
		v := m.lo
		if colors > 1 {
			v += float64(i) / float64(colors-1) * (m.hi - m.lo)
		}
		c, err := m.At(v)
		if err != nil {
			c = color.Transparent
		}
		out[i] = c
	}
	return colorPalette(out)
}

type colorPalette []color.Color

func (p colorPalette) Colors() []color.Color { return p }
