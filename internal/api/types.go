package api

import (
	"math"
	"time"

	"github.com/climdiff/climdiff/internal/compute"
	"github.com/climdiff/climdiff/internal/history"
	"github.com/climdiff/climdiff/internal/store"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	RunCount       int `json:"run_count"`
	PendingCount   int `json:"pending_count"`
	RunningCount   int `json:"running_count"`
	CompletedCount int `json:"completed_count"`
	FailedCount    int `json:"failed_count"`
}

// RunRequest is the body of POST /api/v1/runs.
type RunRequest struct {
	Model    string `json:"model"`
	Variable string `json:"variable"`
}

// RunAccepted is the 202 response to POST /api/v1/runs.
type RunAccepted struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// RunResponse is one run in GET /api/v1/runs or GET /api/v1/runs/{id}.
type RunResponse struct {
	ID          string            `json:"id"`
	Model       string            `json:"model"`
	Variable    string            `json:"variable"`
	State       string            `json:"state"`
	Error       string            `json:"error,omitempty"`
	Result      *ResultResponse   `json:"result,omitempty"`
	Links       map[string]string `json:"links,omitempty"`
	Diagnostics []DiagnosticHint  `json:"diagnostics"`
	SubmittedAt string            `json:"submitted_at"` // RFC3339
	UpdatedAt   string            `json:"updated_at"`   // RFC3339
}

// ResultResponse summarises a completed run.
type ResultResponse struct {
	Title      string        `json:"title"`
	Scale      float64       `json:"scale"`
	VMin       float64       `json:"vmin"`
	VMax       float64       `json:"vmax"`
	Stats      StatsResponse `json:"stats"`
	DurationMs int64         `json:"duration_ms"`
}

// StatsResponse is compute.Stats with non-finite values as null.
type StatsResponse struct {
	Cells    int      `json:"cells"`
	Min      *float64 `json:"min"`
	Max      *float64 `json:"max"`
	Mean     *float64 `json:"mean"`
	NaNCount int      `json:"nan_count"`
	InfCount int      `json:"inf_count"`
}

// RunListResponse is the payload for GET /api/v1/runs and the WebSocket
// broadcast.
type RunListResponse struct {
	Runs        []RunResponse `json:"runs"`
	GeneratedAt string        `json:"generated_at"` // RFC3339
}

// HistoryEntry is one row of GET /api/v1/history.
type HistoryEntry struct {
	ID         string        `json:"id"`
	Model      string        `json:"model"`
	Variable   string        `json:"variable"`
	Scale      float64       `json:"scale"`
	VMin       float64       `json:"vmin"`
	VMax       float64       `json:"vmax"`
	Stats      StatsResponse `json:"stats"`
	DurationMs int64         `json:"duration_ms"`
	CreatedAt  string        `json:"created_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func toStats(s compute.Stats) StatsResponse {
	return StatsResponse{
		Cells:    s.Cells,
		Min:      finite(s.Min),
		Max:      finite(s.Max),
		Mean:     finite(s.Mean),
		NaNCount: s.NaNCount,
		InfCount: s.InfCount,
	}
}

// toRunResponse maps a store.Run to its JSON representation.
func toRunResponse(r store.Run) RunResponse {
	out := RunResponse{
		ID:          r.ID,
		Model:       string(r.Selection.Model),
		Variable:    string(r.Selection.Variable),
		State:       r.State,
		Error:       r.Error,
		Diagnostics: computeDiagnostics(r),
		SubmittedAt: r.SubmittedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   r.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if res := r.Result; res != nil {
		out.Result = &ResultResponse{
			Title:      res.Title,
			Scale:      res.Scale,
			VMin:       res.VMin,
			VMax:       res.VMax,
			Stats:      toStats(res.Stats),
			DurationMs: res.Duration.Milliseconds(),
		}
		base := "/api/v1/runs/" + r.ID
		out.Links = map[string]string{
			"figure":    base + "/figure.png",
			"dataarray": base + "/field.nc",
		}
	}
	return out
}

func toHistoryEntry(e history.Entry) HistoryEntry {
	return HistoryEntry{
		ID:         e.ID,
		Model:      string(e.Selection.Model),
		Variable:   string(e.Selection.Variable),
		Scale:      e.Scale,
		VMin:       e.VMin,
		VMax:       e.VMax,
		Stats:      toStats(e.Stats),
		DurationMs: e.Duration.Milliseconds(),
		CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339),
	}
}
