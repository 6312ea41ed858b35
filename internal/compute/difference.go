package compute

import (
	"fmt"

	"github.com/climdiff/climdiff/internal/grid"
	"github.com/climdiff/climdiff/pkg/types"
)

// Scale multipliers applied to the relative change.
const (
	ScalePrecipitation = 100.0
	ScaleDefault       = 1000.0
)

// DifferenceUnits is the unit label attached to difference fields.
const DifferenceUnits = "%"

// Scale returns the multiplier used for variable v.
func Scale(v types.VariableID) float64 {
	if v.IsPrecipitation() {
		return ScalePrecipitation
	}
	return ScaleDefault
}

// Bounds returns the symmetric display range for a given scale.
func Bounds(scale float64) (vmin, vmax float64) {
	vmax = (100 / scale) * 100
	return -vmax, vmax
}

// Input holds the two series and the windows selecting their climatologies.
type Input struct {
	Selection types.Selection

	Projected       *grid.Series
	ProjectedWindow grid.Window

	Historical       *grid.Series
	HistoricalWindow grid.Window
}

// Output is the difference field and everything needed to display it.
type Output struct {
	// Field is (projected - historical) / historical * Scale, cell-wise.
	Field *grid.Field

	// Scale is the multiplier applied to the relative change.
	Scale float64

	// VMin and VMax are the symmetric colour-scale bounds.
	VMin float64
	VMax float64

	// The two climatologies the difference was derived from.
	ProjectedMean  *grid.Field
	HistoricalMean *grid.Field
}

// Compute runs selection, averaging, scaling and differencing. It has no
// side effects; identical inputs give bit-identical outputs.
func Compute(in Input) (Output, error) {
	if in.Projected == nil || in.Historical == nil {
		return Output{}, fmt.Errorf("compute: both series are required")
	}

	projMean, err := in.Projected.WindowMean(in.ProjectedWindow)
	if err != nil {
		return Output{}, fmt.Errorf("compute: projected window %v: %w", in.ProjectedWindow, err)
	}
	histMean, err := in.Historical.WindowMean(in.HistoricalWindow)
	if err != nil {
		return Output{}, fmt.Errorf("compute: historical window %v: %w", in.HistoricalWindow, err)
	}

	scale := Scale(in.Selection.Variable)
	diff, err := Difference(projMean, histMean, scale)
	if err != nil {
		return Output{}, err
	}

	vmin, vmax := Bounds(scale)
	return Output{
		Field:          diff,
		Scale:          scale,
		VMin:           vmin,
		VMax:           vmax,
		ProjectedMean:  projMean,
		HistoricalMean: histMean,
	}, nil
}

// Difference computes (projected - historical) / historical * scale for
// every cell. Zero historical cells are not special-cased.
func Difference(projected, historical *grid.Field, scale float64) (*grid.Field, error) {
	out, err := projected.Combine(historical, projected.Name+"_diff", DifferenceUnits,
		func(p, h float64) float64 {
			return (p - h) / h * scale
		})
	if err != nil {
		return nil, fmt.Errorf("compute: difference: %w", err)
	}
	return out, nil
}
