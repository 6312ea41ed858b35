package compute

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/climdiff/climdiff/internal/grid"
)

// Stats summarises a field. Min, Max and Mean cover finite cells only and
// are NaN when there are none.
type Stats struct {
	Cells    int     `json:"cells"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	NaNCount int     `json:"nan_count"`
	InfCount int     `json:"inf_count"`
}

// Summarize computes Stats for f.
func Summarize(f *grid.Field) Stats {
	vals := f.Data.Elements
	st := Stats{Cells: len(vals)}

	finite := make([]float64, 0, len(vals))
	for _, v := range vals {
		switch {
		case math.IsNaN(v):
			st.NaNCount++
		case math.IsInf(v, 0):
			st.InfCount++
		default:
			finite = append(finite, v)
		}
	}

	if len(finite) == 0 {
		st.Min, st.Max, st.Mean = math.NaN(), math.NaN(), math.NaN()
		return st
	}
	st.Min = floats.Min(finite)
	st.Max = floats.Max(finite)
	st.Mean = floats.Sum(finite) / float64(len(finite))
	return st
}
