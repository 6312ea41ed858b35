package render

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/climdiff/climdiff/internal/config"
	"github.com/climdiff/climdiff/internal/grid"
)

// barFraction is the share of the figure given to the colour bar.
const barFraction = 0.18

// Renderer draws difference fields as PNG figures.
type Renderer struct {
	Width  vg.Length
	Height vg.Length
	DPI    int
}

// New returns a Renderer sized by cfg.
func New(cfg config.RenderConfig) *Renderer {
	return &Renderer{
		Width:  vg.Length(cfg.Width) * vg.Inch,
		Height: vg.Length(cfg.Height) * vg.Inch,
		DPI:    cfg.DPI,
	}
}

// Render draws f with the colours and colour bar described by cs and
// returns PNG bytes.
func (r *Renderer) Render(f *grid.Field, title string, cs ColorScale) ([]byte, error) {
	if len(f.Lat) == 0 || len(f.Lon) == 0 {
		return nil, fmt.Errorf("render: empty field %q", f.Name)
	}
	cm, err := cs.ColorMap()
	if err != nil {
		return nil, err
	}
	pal := cm.Palette(paletteColors)
	under, over := ends(pal)

	hm := plotter.NewHeatMap(fieldGrid{f}, pal)
	hm.Min, hm.Max = cs.VMin, cs.VMax
	hm.Underflow, hm.Overflow = under, over
	hm.NaN = color.Transparent

	m := plot.New()
	m.Title.Text = title
	m.X.Label.Text = "Longitude"
	m.Y.Label.Text = "Latitude"
	m.Add(hm)

	vertical := cs.ColorbarOrientation == Vertical
	bar := plot.New()
	bar.Add(&plotter.ColorBar{ColorMap: cm, Colors: paletteColors, Vertical: vertical})
	if vertical {
		bar.HideX()
		bar.Y.Label.Text = cs.ColorbarLabel
		bar.Y.Padding = 0
	} else {
		bar.HideY()
		bar.X.Label.Text = cs.ColorbarLabel
		bar.X.Padding = 0
	}

	img := vgimg.NewWith(vgimg.UseWH(r.Width, r.Height), vgimg.UseDPI(r.DPI))
	dc := draw.New(img)
	if vertical {
		barWidth := r.Width * barFraction
		m.Draw(draw.Crop(dc, 0, -barWidth, 0, 0))
		bar.Draw(draw.Crop(dc, r.Width-barWidth, 0, r.Height*0.1, -r.Height*0.1))
	} else {
		barHeight := r.Height * barFraction
		m.Draw(draw.Crop(dc, 0, 0, barHeight, 0))
		bar.Draw(draw.Crop(dc, r.Width*0.1, -r.Width*0.1, 0, -(r.Height - barHeight)))
	}

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// fieldGrid adapts a Field to plotter.GridXYZ: columns are longitudes,
// rows are latitudes.
type fieldGrid struct {
	f *grid.Field
}

func (g fieldGrid) Dims() (c, r int)   { return len(g.f.Lon), len(g.f.Lat) }
func (g fieldGrid) Z(c, r int) float64 { return g.f.At(r, c) }
func (g fieldGrid) X(c int) float64    { return g.f.Lon[c] }
func (g fieldGrid) Y(r int) float64    { return g.f.Lat[r] }
