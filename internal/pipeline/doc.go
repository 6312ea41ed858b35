// Package pipeline runs one model/variable selection end to end.
//
// Application.Run:
//
//  1. validates the selection and builds the historical and RCP8.5
//     catalogue requests (IPSL-CM5A-LR projections extend to 2300);
//  2. retrieves both series, one after the other or concurrently with an
//     errgroup when catalogue.parallel_fetch is set;
//  3. resolves the configured calendar windows against each series' first
//     month and computes the percentage difference of the window means;
//  4. renders the figure and encodes the difference field as NetCDF.
//
// Each stage runs under an OpenTelemetry span (pipeline.run,
// catalogue.retrieve, compute.difference, render.map). Finished runs are
// counted in the metrics registry by state.
//
// Collaborator errors are wrapped, never retried, and end the run.
//
// Reconfigure swaps the catalogue and window settings used by later runs;
// runs already in flight keep the settings they started with.
package pipeline
