// Package grid holds the gridded climate data model: monthly time series of
// 2D fields, calendar months and periods, and the integer time windows that
// select a contiguous run of months from a series.
//
// Series stores its grids as a single [time, lat, lon] dense array, so grid
// shape is consistent across time steps by construction. Field is a single
// [lat, lon] grid sharing the axes of the series it was derived from.
//
// Values are treated as immutable: Select, Mean and Concat return new values
// and never alias the receiver's backing storage.
//
// Calendar handling is deliberately narrow: a series knows the month of its
// first grid, and MonthRange.Resolve turns a calendar span such as
// 1960-01..1979-12 into the Window of offsets for that series. Nothing else
// in climdiff does calendar arithmetic.
package grid
