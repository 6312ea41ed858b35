// Package types defines the selection surface shared by the climdiff CLI and
// server: the enumerated climate models and variables, the composed figure
// title, and the Surface description that a presentation layer renders as
// two dropdowns and two output slots.
//
// Identifiers are the catalogue's own values (e.g. "mpi_esm_lr",
// "2m_temperature"); labels are the human-readable strings shown to users
// and interpolated into titles.
package types
