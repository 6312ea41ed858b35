package api

import (
	"fmt"
	"math"

	"github.com/climdiff/climdiff/internal/store"
)

// DiagnosticHint is one human-readable note about a run's output.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label.
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
	// Value is an optional count associated with this hint.
	Value *float64 `json:"value,omitempty"`
}

// computeDiagnostics derives hints from a run. Hints are ordered critical
// first, then warnings, then info.
func computeDiagnostics(r store.Run) []DiagnosticHint {
	switch r.State {
	case store.StateFailed:
		return []DiagnosticHint{{
			Key:    "run_failed",
			Level:  "critical",
			Title:  "Run failed",
			Detail: fmt.Sprintf("The run stopped with: %q. Nothing was rendered.", r.Error),
		}}
	case store.StatePending, store.StateRunning:
		return []DiagnosticHint{{
			Key:    "in_progress",
			Level:  "info",
			Title:  "In progress",
			Detail: "Datasets are being retrieved from the catalogue. Large requests can queue for several minutes.",
		}}
	}
	if r.Result == nil {
		return nil
	}

	var hints []DiagnosticHint
	st := r.Result.Stats
	finiteCells := st.Cells - st.NaNCount - st.InfCount

	if finiteCells == 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "no_finite_cells",
			Level:  "critical",
			Title:  "No finite cells",
			Detail: "Every cell of the difference is NaN or infinite, so the map is blank.",
		})
	}

	if st.InfCount > 0 {
		v := float64(st.InfCount)
		hints = append(hints, DiagnosticHint{
			Key:   "zero_historical",
			Level: "warning",
			Title: "Zero historical mean",
			Detail: fmt.Sprintf("%d cells have a historical mean of zero, so their relative change is infinite. "+
				"They are drawn in the end colour of the scale.", st.InfCount),
			Value: &v,
		})
	}

	if st.NaNCount > 0 {
		v := float64(st.NaNCount)
		hints = append(hints, DiagnosticHint{
			Key:    "missing_values",
			Level:  "info",
			Title:  "Missing values",
			Detail: fmt.Sprintf("%d cells are NaN in the source data or in both means, and are left transparent.", st.NaNCount),
			Value:  &v,
		})
	}

	if n := clampedCells(r); n > 0 {
		v := float64(n)
		hints = append(hints, DiagnosticHint{
			Key:   "clamped",
			Level: "info",
			Title: "Values beyond scale",
			Detail: fmt.Sprintf("%d finite cells lie outside [%g, %g]%% and are shown in the end colours.",
				n, r.Result.VMin, r.Result.VMax),
			Value: &v,
		})
	}

	if len(hints) == 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "ok",
			Level:  "ok",
			Title:  "All cells in range",
			Detail: "Every cell of the difference is finite and inside the colour scale.",
		})
	}
	return hints
}

func clampedCells(r store.Run) int {
	if r.Result == nil || r.Result.Field == nil {
		return 0
	}
	n := 0
	for _, v := range r.Result.Field.Data.Elements {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			continue
		}
		if v < r.Result.VMin || v > r.Result.VMax {
			n++
		}
	}
	return n
}
