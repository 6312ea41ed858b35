package grid

import (
	"fmt"

	"github.com/ctessum/sparse"
)

// Field is a single 2D grid with shape [len(Lat), len(Lon)].
type Field struct {
	Name  string
	Units string
	Lat   []float64
	Lon   []float64
	Data  *sparse.DenseArray
}

// NewField builds a Field from row-major (lat, lon) values.
func NewField(name, units string, lat, lon, values []float64) (*Field, error) {
	if len(values) != len(lat)*len(lon) {
		return nil, fmt.Errorf("%w: %d values for %dx%d grid", ErrShapeMismatch, len(values), len(lat), len(lon))
	}
	f := newField(name, units, lat, lon)
	copy(f.Data.Elements, values)
	return f, nil
}

func newField(name, units string, lat, lon []float64) *Field {
	return &Field{
		Name:  name,
		Units: units,
		Lat:   cloneAxis(lat),
		Lon:   cloneAxis(lon),
		Data:  sparse.ZerosDense(len(lat), len(lon)),
	}
}

// At returns the value at row j (latitude) and column i (longitude).
func (f *Field) At(j, i int) float64 {
	return f.Data.Get(j, i)
}

// Values returns a copy of the row-major cell values.
func (f *Field) Values() []float64 {
	return append([]float64(nil), f.Data.Elements...)
}

// Aligned reports whether f and o share the same axes.
func (f *Field) Aligned(o *Field) bool {
	return sameAxis(f.Lat, o.Lat) && sameAxis(f.Lon, o.Lon)
}

// Combine applies fn cell-wise to f and o and returns the result under the
// given name and units.
func (f *Field) Combine(o *Field, name, units string, fn func(a, b float64) float64) (*Field, error) {
	if !f.Aligned(o) {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d", ErrShapeMismatch,
			len(f.Lat), len(f.Lon), len(o.Lat), len(o.Lon))
	}
	out := newField(name, units, f.Lat, f.Lon)
	for i := range out.Data.Elements {
		out.Data.Elements[i] = fn(f.Data.Elements[i], o.Data.Elements[i])
	}
	return out, nil
}
