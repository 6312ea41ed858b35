package compute

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/climdiff/climdiff/internal/grid"
	"github.com/climdiff/climdiff/pkg/types"
)

var (
	lat2 = []float64{-30, 30}
	lon2 = []float64{90, 270}
)

func field(t *testing.T, vals ...float64) *grid.Field {
	t.Helper()
	f, err := grid.NewField("pr", "kg m-2 s-1", lat2, lon2, vals)
	if err != nil {
		t.Fatalf("NewField: %v", err)
	}
	return f
}

// constSeries returns nt identical 2x2 grids.
func constSeries(t *testing.T, start grid.Month, nt int, cell ...float64) *grid.Series {
	t.Helper()
	vals := make([]float64, 0, nt*len(cell))
	for i := 0; i < nt; i++ {
		vals = append(vals, cell...)
	}
	s, err := grid.NewSeries("pr", "kg m-2 s-1", start, lat2, lon2, vals)
	if err != nil {
		t.Fatalf("NewSeries: %v", err)
	}
	return s
}

func TestScaleAndBounds(t *testing.T) {
	tests := []struct {
		variable  types.VariableID
		wantScale float64
		wantVMax  float64
	}{
		{types.MeanPrecipitationFlux, 100, 100},
		{types.NearSurfaceTemp, 1000, 10},
	}
	for _, tc := range tests {
		for _, m := range types.Models {
			sel := types.Selection{Model: types.ModelID(m.Value), Variable: tc.variable}
			t.Run(string(sel.Model)+"/"+string(sel.Variable), func(t *testing.T) {
				scale := Scale(sel.Variable)
				if scale != tc.wantScale {
					t.Fatalf("Scale = %v, want %v", scale, tc.wantScale)
				}
				vmin, vmax := Bounds(scale)
				if vmax != -vmin {
					t.Errorf("bounds not symmetric: %v, %v", vmin, vmax)
				}
				if vmax != (100/scale)*100 || vmax != tc.wantVMax {
					t.Errorf("vmax = %v, want %v", vmax, tc.wantVMax)
				}
			})
		}
	}
}

func TestDifference_KnownGrid(t *testing.T) {
	hist := field(t, 2, 4, 5, 0)
	proj := field(t, 3, 4, 10, 1)

	diff, err := Difference(proj, hist, 100)
	if err != nil {
		t.Fatalf("Difference: %v", err)
	}
	want := []float64{50, 0, 100}
	got := diff.Values()
	for i, w := range want {
		if got[i] != w {
			t.Errorf("cell %d: got %v, want %v", i, got[i], w)
		}
	}
	if !math.IsInf(got[3], 1) {
		t.Errorf("cell 3: got %v, want +Inf", got[3])
	}
	if diff.Units != DifferenceUnits {
		t.Errorf("units = %q", diff.Units)
	}
}

func TestDifference_ZeroOverZeroIsNaN(t *testing.T) {
	diff, err := Difference(field(t, 0, 1, 1, 1), field(t, 0, 1, 1, 1), 1000)
	if err != nil {
		t.Fatalf("Difference: %v", err)
	}
	if !math.IsNaN(diff.At(0, 0)) {
		t.Errorf("0/0 cell = %v, want NaN", diff.At(0, 0))
	}
}

func TestDifference_ShapeMismatch(t *testing.T) {
	other, _ := grid.NewField("pr", "", []float64{0}, lon2, []float64{1, 2})
	_, err := Difference(field(t, 1, 2, 3, 4), other, 100)
	if !errors.Is(err, grid.ErrShapeMismatch) {
		t.Fatalf("err = %v, want ErrShapeMismatch", err)
	}
}

func TestCompute_EndToEnd(t *testing.T) {
	hist := constSeries(t, grid.Month{Year: 1850, Month: time.January}, 1872, 2, 4, 5, 0)
	proj := constSeries(t, grid.Month{Year: 2006, Month: time.January}, 1140, 3, 4, 10, 1)

	in := Input{
		Selection:        types.Selection{Model: types.MPIESMLR, Variable: types.MeanPrecipitationFlux},
		Projected:        proj,
		ProjectedWindow:  grid.Window{Start: 288, End: 528},
		Historical:       hist,
		HistoricalWindow: grid.Window{Start: 1320, End: 1560},
	}
	out, err := Compute(in)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if out.Scale != 100 || out.VMax != 100 || out.VMin != -100 {
		t.Errorf("scale/bounds = %v [%v, %v]", out.Scale, out.VMin, out.VMax)
	}
	if got := out.Field.At(0, 0); got != 50 {
		t.Errorf("cell (0,0) = %v, want 50", got)
	}
	if got := out.Field.At(1, 0); got != 100 {
		t.Errorf("cell (1,0) = %v, want 100", got)
	}
	if !math.IsInf(out.Field.At(1, 1), 1) {
		t.Errorf("cell (1,1) = %v, want +Inf", out.Field.At(1, 1))
	}
}

func TestCompute_Idempotent(t *testing.T) {
	vals := make([]float64, 0, 48)
	for i := 0; i < 12; i++ {
		vals = append(vals, 1.1+float64(i)*0.37, 2.9/float64(i+1), 3e-6*float64(i), 7)
	}
	s, _ := grid.NewSeries("tas", "K", grid.Month{Year: 2000, Month: time.January}, lat2, lon2, vals)
	in := Input{
		Selection:        types.Selection{Model: types.NorESM1M, Variable: types.NearSurfaceTemp},
		Projected:        s,
		ProjectedWindow:  grid.Window{Start: 6, End: 12},
		Historical:       s,
		HistoricalWindow: grid.Window{Start: 0, End: 6},
	}
	a, err := Compute(in)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	b, err := Compute(in)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	av, bv := a.Field.Values(), b.Field.Values()
	for i := range av {
		if math.Float64bits(av[i]) != math.Float64bits(bv[i]) {
			t.Errorf("cell %d differs: %v vs %v", i, av[i], bv[i])
		}
	}
}

func TestCompute_EmptyWindowRejected(t *testing.T) {
	s := constSeries(t, grid.Month{Year: 2000, Month: time.January}, 12, 1, 1, 1, 1)
	_, err := Compute(Input{
		Selection:        types.Selection{Model: types.MPIESMLR, Variable: types.NearSurfaceTemp},
		Projected:        s,
		ProjectedWindow:  grid.Window{Start: 4, End: 4},
		Historical:       s,
		HistoricalWindow: grid.Window{Start: 0, End: 12},
	})
	if !errors.Is(err, grid.ErrEmptyWindow) {
		t.Fatalf("err = %v, want ErrEmptyWindow", err)
	}
}
