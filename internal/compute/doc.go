// Package compute derives the RCP8.5-versus-historical difference field.
//
// difference.go provides the pure Compute(Input) function:
//
//  1. select each series' time window,
//  2. average it per cell (grid.Series.Mean),
//  3. pick the variable's scale (100 for precipitation flux, 1000 otherwise),
//  4. diff = (projected - historical) / historical * scale, cell-wise.
//
// The division is not guarded. A cell whose historical mean is exactly zero
// yields ±Inf or NaN and that value is returned as-is; callers that plot the
// field see it as an out-of-range or missing cell.
//
// Display bounds are symmetric: vmax = (100/scale)*100 and vmin = -vmax,
// i.e. ±100 for precipitation and ±10 for temperature.
//
// stats.go summarises a field (finite min/max/mean, NaN and Inf counts) for
// logs, run history and the API.
package compute
