package render

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"

	"github.com/climdiff/climdiff/internal/compute"
)

// paletteColors is the number of discrete colours sampled from the map.
const paletteColors = 255

// Colour map names accepted by ColorScale.
const (
	ColormapRdBuR = "RdBu_r" // blue low, red high
	ColormapRdBu  = "RdBu"   // red low, blue high
)

// Colour bar orientations.
const (
	Horizontal = "horizontal"
	Vertical   = "vertical"
)

// ColorScale describes how a figure maps values to colours and how its
// colour bar is drawn.
type ColorScale struct {
	VMin, VMax          float64
	Colormap            string
	ColorbarLabel       string
	ColorbarOrientation string
}

// ScaleFor returns the diverging colour scale for a difference computed
// with scale: RdBu_r between the symmetric bounds, a horizontal bar
// labelled "%".
func ScaleFor(scale float64) ColorScale {
	vmin, vmax := compute.Bounds(scale)
	return ColorScale{
		VMin:                vmin,
		VMax:                vmax,
		Colormap:            ColormapRdBuR,
		ColorbarLabel:       compute.DifferenceUnits,
		ColorbarOrientation: Horizontal,
	}
}

// Validate checks the colour map name, the orientation and the limits.
func (s ColorScale) Validate() error {
	if !(s.VMin < s.VMax) {
		return fmt.Errorf("render: invalid colour limits [%v, %v]", s.VMin, s.VMax)
	}
	switch s.Colormap {
	case ColormapRdBuR, ColormapRdBu:
	default:
		return fmt.Errorf("render: unknown colour map %q", s.Colormap)
	}
	switch s.ColorbarOrientation {
	case Horizontal, Vertical:
	default:
		return fmt.Errorf("render: unknown colour bar orientation %q", s.ColorbarOrientation)
	}
	return nil
}

// ColorMap returns the named colour map limited to [VMin, VMax].
// RdBu_r is the Moreland smooth blue-red diverging map.
func (s ColorScale) ColorMap() (palette.ColorMap, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	var cm palette.ColorMap = moreland.SmoothBlueRed()
	if s.Colormap == ColormapRdBu {
		cm = palette.Reverse(cm)
	}
	cm.SetMin(s.VMin)
	cm.SetMax(s.VMax)
	return cm, nil
}

// ends returns the colours used for values below and above the limits.
func ends(p palette.Palette) (under, over color.Color) {
	cs := p.Colors()
	return cs[0], cs[len(cs)-1]
}
