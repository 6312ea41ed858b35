package grid

import (
	"fmt"

	"github.com/ctessum/sparse"
)

// Series is a monthly sequence of 2D grids. Data has shape
// [time, len(Lat), len(Lon)].
type Series struct {
	Name  string
	Units string
	Start Month
	Lat   []float64
	Lon   []float64
	Data  *sparse.DenseArray
}

// NewSeries builds a Series from nt grids stored time-major in values.
func NewSeries(name, units string, start Month, lat, lon []float64, values []float64) (*Series, error) {
	cells := len(lat) * len(lon)
	if cells == 0 {
		return nil, fmt.Errorf("%w: empty spatial axes", ErrShapeMismatch)
	}
	if len(values)%cells != 0 {
		return nil, fmt.Errorf("%w: %d values for %dx%d grid", ErrShapeMismatch, len(values), len(lat), len(lon))
	}
	nt := len(values) / cells
	data := sparse.ZerosDense(nt, len(lat), len(lon))
	copy(data.Elements, values)
	return &Series{
		Name:  name,
		Units: units,
		Start: start,
		Lat:   cloneAxis(lat),
		Lon:   cloneAxis(lon),
		Data:  data,
	}, nil
}

// Len is the number of time steps.
func (s *Series) Len() int {
	if s.Data == nil || len(s.Data.Shape) == 0 {
		return 0
	}
	return s.Data.Shape[0]
}

// Cells is the number of grid cells per time step.
func (s *Series) Cells() int {
	return len(s.Lat) * len(s.Lon)
}

// End is the month of the last grid.
func (s *Series) End() Month {
	return s.Start.AddMonths(s.Len() - 1)
}

// Period is the calendar span covered by s.
func (s *Series) Period() Period {
	return Period{Start: s.Start, End: s.End()}
}

// Step returns a copy of the grid at time index t.
func (s *Series) Step(t int) *Field {
	n := s.Cells()
	f := newField(s.Name, s.Units, s.Lat, s.Lon)
	copy(f.Data.Elements, s.Data.Elements[t*n:(t+1)*n])
	return f
}

// Select returns the sub-series covered by w.
func (s *Series) Select(w Window) (*Series, error) {
	if err := w.Check(s.Len()); err != nil {
		return nil, err
	}
	n := s.Cells()
	data := sparse.ZerosDense(w.Len(), len(s.Lat), len(s.Lon))
	copy(data.Elements, s.Data.Elements[w.Start*n:w.End*n])
	return &Series{
		Name:  s.Name,
		Units: s.Units,
		Start: s.Start.AddMonths(w.Start),
		Lat:   cloneAxis(s.Lat),
		Lon:   cloneAxis(s.Lon),
		Data:  data,
	}, nil
}

// SelectRange resolves r against the series start and selects it.
func (s *Series) SelectRange(r MonthRange) (*Series, error) {
	return s.Select(r.Resolve(s.Start))
}

// Mean averages every cell over the time dimension. NaN values propagate;
// no weighting is applied.
func (s *Series) Mean() (*Field, error) {
	nt := s.Len()
	if nt == 0 {
		return nil, fmt.Errorf("%w: series %q has no time steps", ErrEmptyWindow, s.Name)
	}
	n := s.Cells()
	f := newField(s.Name, s.Units, s.Lat, s.Lon)
	sum := f.Data.Elements
	for t := 0; t < nt; t++ {
		step := s.Data.Elements[t*n : (t+1)*n]
		for i, v := range step {
			sum[i] += v
		}
	}
	for i := range sum {
		sum[i] /= float64(nt)
	}
	return f, nil
}

// WindowMean selects w and averages it in one step.
func (s *Series) WindowMean(w Window) (*Field, error) {
	sub, err := s.Select(w)
	if err != nil {
		return nil, err
	}
	return sub.Mean()
}

// Concat appends series end to end along time. All parts must share the
// same spatial axes; the result starts at the first part's start month.
func Concat(parts ...*Series) (*Series, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: nothing to concatenate", ErrShapeMismatch)
	}
	first := parts[0]
	total := 0
	for i, p := range parts {
		if !sameAxis(p.Lat, first.Lat) || !sameAxis(p.Lon, first.Lon) {
			return nil, fmt.Errorf("%w: part %d grid differs from part 0", ErrShapeMismatch, i)
		}
		total += p.Len()
	}
	data := sparse.ZerosDense(total, len(first.Lat), len(first.Lon))
	off := 0
	for _, p := range parts {
		off += copy(data.Elements[off:], p.Data.Elements)
	}
	return &Series{
		Name:  first.Name,
		Units: first.Units,
		Start: first.Start,
		Lat:   cloneAxis(first.Lat),
		Lon:   cloneAxis(first.Lon),
		Data:  data,
	}, nil
}

func cloneAxis(a []float64) []float64 {
	return append([]float64(nil), a...)
}

func sameAxis(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
