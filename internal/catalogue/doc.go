// Package catalogue retrieves CMIP5 monthly datasets and decodes them into
// grid.Series values.
//
// catalogue.go defines the Catalogue interface and the fixed request shape
// (dataset, ensemble member, format, variable, model, experiment, period).
// Historical requests always use 185001-200512; RCP8.5 requests use
// 200601-210012, except ipsl_cm5a_lr whose native projection run extends
// to 230012.
//
// Implementations:
//   - CDS (cds.go): the Copernicus Climate Data Store API. A request is
//     submitted, polled until the task completes, and the archive at the
//     returned location downloaded. Archives are cached on disk by request
//     key when a cache directory is configured.
//   - Directory (directory.go): reads <model>_<variable>_<experiment>_<period>
//     .zip or .nc files from a local directory, for offline runs and tests.
//
// netcdf.go decodes zip archives of NetCDF classic files (ctessum/cdf) and
// concatenates their members along time; it also encodes series and fields
// back to NetCDF for the dataarray output.
//
// Authentication (basic, API key, bearer, mTLS) is handled by the shared
// authRoundTripper in base.go, as is the TLS certificate preflight.
//
// Failures are returned to the caller; nothing here retries a failed request.
package catalogue
