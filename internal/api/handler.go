package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/climdiff/climdiff/internal/history"
	"github.com/climdiff/climdiff/internal/pipeline"
	"github.com/climdiff/climdiff/internal/store"
	"github.com/climdiff/climdiff/pkg/types"
)

// maxRequestBody bounds POST bodies.
const maxRequestBody = 4 << 10

// defaultHistoryLimit applies when ?limit is absent.
const defaultHistoryLimit = 100

// Runner executes one selection.
type Runner interface {
	Run(ctx context.Context, sel types.Selection) (*pipeline.Result, error)
}

// History persists and lists completed runs.
type History interface {
	Record(ctx context.Context, e history.Entry) error
	List(ctx context.Context, limit int) ([]history.Entry, error)
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	ctx     context.Context
	store   *store.Store
	runner  Runner
	history History
	surface types.Surface
	mux     *http.ServeMux
	wg      sync.WaitGroup
	notify  func()
}

// New creates a Handler and registers all routes. Runs started through the
// API use ctx, so cancelling it aborts them. hist may be nil.
func New(ctx context.Context, st *store.Store, runner Runner, hist History) *Handler {
	h := &Handler{
		ctx:     ctx,
		store:   st,
		runner:  runner,
		history: hist,
		surface: types.DefaultSurface(),
		mux:     http.NewServeMux(),
	}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/surface", h.getSurface)
	h.mux.HandleFunc("/api/v1/runs", h.runs)
	h.mux.HandleFunc("/api/v1/runs/", h.runSubtree) // extracts {id}[/artifact]
	h.mux.HandleFunc("/api/v1/history", h.listHistory)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// OnChange registers fn to be called whenever a run changes state. It must
// be called before the handler starts serving.
func (h *Handler) OnChange(fn func()) {
	h.notify = fn
}

func (h *Handler) changed() {
	if h.notify != nil {
		h.notify()
	}
}

// Wait blocks until every run submitted through the API has finished.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health — run counts per state.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	runs := h.store.List()
	resp := HealthResponse{RunCount: len(runs)}
	for _, run := range runs {
		switch run.State {
		case store.StatePending:
			resp.PendingCount++
		case store.StateRunning:
			resp.RunningCount++
		case store.StateCompleted:
			resp.CompletedCount++
		case store.StateFailed:
			resp.FailedCount++
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

// getSurface returns GET /api/v1/surface.
func (h *Handler) getSurface(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.surface)
}

// runs dispatches GET (list) and POST (submit) on /api/v1/runs.
func (h *Handler) runs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jsonResp(w, http.StatusOK, BuildRunList(h.store))
	case http.MethodPost:
		h.submit(w, r)
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sel, err := types.ParseSelection(req.Model, req.Variable)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	run := h.store.Create(sel)
	slog.Info("api: run submitted", "id", run.ID, "model", sel.Model, "variable", sel.Variable)

	h.wg.Add(1)
	go h.execute(run)
	h.changed()

	jsonResp(w, http.StatusAccepted, RunAccepted{ID: run.ID, State: run.State})
}

// execute runs one submitted selection to completion.
func (h *Handler) execute(run store.Run) {
	defer h.wg.Done()

	defer h.changed()

	h.store.Start(run.ID)
	h.changed()
	res, err := h.runner.Run(h.ctx, run.Selection)
	if err != nil {
		slog.Error("api: run failed", "id", run.ID, "err", err)
		h.store.Fail(run.ID, err)
		return
	}
	h.store.Complete(run.ID, res)

	if h.history == nil {
		return
	}
	entry := history.Entry{
		ID:        run.ID,
		Selection: run.Selection,
		Scale:     res.Scale,
		VMin:      res.VMin,
		VMax:      res.VMax,
		Stats:     res.Stats,
		Duration:  res.Duration,
		CreatedAt: res.CreatedAt,
	}
	if err := h.history.Record(h.ctx, entry); err != nil {
		slog.Warn("api: history record failed", "id", run.ID, "err", err)
	}
}

// runSubtree serves GET /api/v1/runs/{id} and its artifacts.
func (h *Handler) runSubtree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	if rest == "" {
		jsonResp(w, http.StatusOK, BuildRunList(h.store))
		return
	}
	id, artifact, _ := strings.Cut(rest, "/")

	run, ok := h.store.Get(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "run not found")
		return
	}

	switch artifact {
	case "":
		jsonResp(w, http.StatusOK, toRunResponse(run))
	case "figure.png":
		h.artifact(w, run, "image/png", func(res *pipeline.Result) []byte { return res.Figure })
	case "field.nc":
		h.artifact(w, run, "application/x-netcdf", func(res *pipeline.Result) []byte { return res.DataArray })
	default:
		jsonErr(w, http.StatusNotFound, "unknown artifact")
	}
}

func (h *Handler) artifact(w http.ResponseWriter, run store.Run, contentType string, pick func(*pipeline.Result) []byte) {
	if run.State != store.StateCompleted || run.Result == nil {
		jsonErr(w, http.StatusConflict, "run is "+run.State)
		return
	}
	body := pick(run.Result)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body) //nolint:errcheck
}

// listHistory returns GET /api/v1/history.
func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.history == nil {
		jsonErr(w, http.StatusNotFound, "history is disabled")
		return
	}

	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			jsonErr(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.history.List(r.Context(), limit)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		slog.Error("api: history list failed", "err", err)
		jsonErr(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	out := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, toHistoryEntry(e))
	}
	jsonResp(w, http.StatusOK, out)
}

// BuildRunList returns every run in st, newest first.
func BuildRunList(st *store.Store) RunListResponse {
	runs := st.List()
	out := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunResponse(run))
	}
	return RunListResponse{
		Runs:        out,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
