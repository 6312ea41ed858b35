package render

import (
	"bytes"
	"image/png"
	"math"
	"testing"

	"github.com/climdiff/climdiff/internal/config"
	"github.com/climdiff/climdiff/internal/grid"
)

func TestScaleFor(t *testing.T) {
	tests := []struct {
		scale      float64
		vmin, vmax float64
	}{
		{100, -100, 100},
		{1000, -10, 10},
	}
	for _, tc := range tests {
		s := ScaleFor(tc.scale)
		if s.VMin != tc.vmin || s.VMax != tc.vmax {
			t.Errorf("ScaleFor(%v): got [%v, %v], want [%v, %v]", tc.scale, s.VMin, s.VMax, tc.vmin, tc.vmax)
		}
		if s.Colormap != "RdBu_r" || s.ColorbarLabel != "%" || s.ColorbarOrientation != "horizontal" {
			t.Errorf("ScaleFor(%v): got %+v", tc.scale, s)
		}
		cm, err := s.ColorMap()
		if err != nil {
			t.Fatalf("ColorMap: %v", err)
		}
		if cm.Min() != tc.vmin || cm.Max() != tc.vmax {
			t.Errorf("ScaleFor(%v): colour map limits [%v, %v]", tc.scale, cm.Min(), cm.Max())
		}
	}
}

func TestColorScale_Ends(t *testing.T) {
	tests := []struct {
		colormap string
		lowBlue  bool
	}{
		{ColormapRdBuR, true},
		{ColormapRdBu, false},
	}
	for _, tc := range tests {
		s := ScaleFor(100)
		s.Colormap = tc.colormap
		cm, err := s.ColorMap()
		if err != nil {
			t.Fatalf("%s: %v", tc.colormap, err)
		}
		under, over := ends(cm.Palette(paletteColors))
		ur, _, ub, _ := under.RGBA()
		or, _, ob, _ := over.RGBA()
		if got := ub > ur && or > ob; got != tc.lowBlue {
			t.Errorf("%s: under r=%d b=%d, over r=%d b=%d", tc.colormap, ur, ub, or, ob)
		}
	}
}

func TestColorScale_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ColorScale)
	}{
		{"unknown colormap", func(s *ColorScale) { s.Colormap = "viridis" }},
		{"unknown orientation", func(s *ColorScale) { s.ColorbarOrientation = "diagonal" }},
		{"empty range", func(s *ColorScale) { s.VMin = s.VMax }},
		{"nan limit", func(s *ColorScale) { s.VMax = math.NaN() }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := ScaleFor(1000)
			tc.mutate(&s)
			if err := s.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
	if err := ScaleFor(1000).Validate(); err != nil {
		t.Errorf("default scale: %v", err)
	}
}

func TestFieldGrid(t *testing.T) {
	f, err := grid.NewField("d", "%", []float64{-30, 30}, []float64{0, 120, 240},
		[]float64{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatal(err)
	}
	g := fieldGrid{f}
	c, r := g.Dims()
	if c != 3 || r != 2 {
		t.Fatalf("Dims: got (%d, %d), want (3, 2)", c, r)
	}
	if g.Z(2, 1) != 6 || g.Z(0, 1) != 4 {
		t.Errorf("Z: got %v %v", g.Z(2, 1), g.Z(0, 1))
	}
	if g.X(1) != 120 || g.Y(0) != -30 {
		t.Errorf("axes: X(1)=%v Y(0)=%v", g.X(1), g.Y(0))
	}
}

func TestRender_PNGSize(t *testing.T) {
	f, err := grid.NewField("pr_diff", "%", []float64{-45, 0, 45}, []float64{0, 90, 180, 270},
		[]float64{
			-250, -50, 0, 50,
			math.NaN(), 10, 20, math.Inf(1),
			100, 200, -100, 0,
		})
	if err != nil {
		t.Fatal(err)
	}
	r := New(config.RenderConfig{Width: 4, Height: 3, DPI: 50})

	for _, orientation := range []string{Horizontal, Vertical} {
		cs := ScaleFor(100)
		cs.ColorbarOrientation = orientation
		b, err := r.Render(f, " Model: MPI-ESM-LR\nVariable: Mean precipitation flux", cs)
		if err != nil {
			t.Fatalf("Render %s: %v", orientation, err)
		}
		img, err := png.Decode(bytes.NewReader(b))
		if err != nil {
			t.Fatalf("decode png: %v", err)
		}
		if got := img.Bounds().Dx(); got != 200 {
			t.Errorf("%s width: got %d px, want 200", orientation, got)
		}
		if got := img.Bounds().Dy(); got != 150 {
			t.Errorf("%s height: got %d px, want 150", orientation, got)
		}
	}
}

func TestRender_Errors(t *testing.T) {
	r := New(config.Defaults().Render)
	if _, err := r.Render(&grid.Field{Name: "x"}, "", ScaleFor(100)); err == nil {
		t.Error("expected error for empty field")
	}

	f, err := grid.NewField("d", "%", []float64{0}, []float64{0}, []float64{1})
	if err != nil {
		t.Fatal(err)
	}
	cs := ScaleFor(100)
	cs.Colormap = "jet"
	if _, err := r.Render(f, "", cs); err == nil {
		t.Error("expected error for unknown colour map")
	}
}
