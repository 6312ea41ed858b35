package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/climdiff/climdiff/internal/catalogue"
	"github.com/climdiff/climdiff/internal/compute"
	"github.com/climdiff/climdiff/internal/config"
	"github.com/climdiff/climdiff/internal/grid"
	"github.com/climdiff/climdiff/internal/metrics"
	"github.com/climdiff/climdiff/internal/render"
	"github.com/climdiff/climdiff/internal/telemetry"
	"github.com/climdiff/climdiff/pkg/types"
)

// Final run states recorded in metrics.
const (
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// Renderer draws a difference field as an image.
type Renderer interface {
	Render(f *grid.Field, title string, cs render.ColorScale) ([]byte, error)
}

// Result is everything one run produces.
type Result struct {
	ID        string
	Selection types.Selection
	Title     string
	Scale     float64
	VMin      float64
	VMax      float64
	Field     *grid.Field
	Stats     compute.Stats
	Figure    []byte // PNG
	DataArray []byte // NetCDF
	Duration  time.Duration
	CreatedAt time.Time
}

// settings are the parts of the configuration a reload may replace.
type settings struct {
	cat      catalogue.Catalogue
	defaults catalogue.Defaults
	parallel bool
	windows  config.WindowsConfig
	renderer Renderer
}

// Application runs selections against a catalogue.
//
// All exported methods are safe for concurrent use.
type Application struct {
	mu  sync.RWMutex
	cur settings

	metrics *metrics.Registry
	tracer  trace.Tracer
	now     func() time.Time
}

// New returns an Application using cat for retrievals. reg may be nil.
func New(cfg *config.Config, cat catalogue.Catalogue, reg *metrics.Registry) *Application {
	return &Application{
		cur:     settingsFrom(cfg, cat),
		metrics: reg,
		tracer:  telemetry.Tracer(),
		now:     time.Now,
	}
}

// NewCatalogue builds the catalogue described by cfg, counting retrievals
// in reg when it is non-nil.
func NewCatalogue(cfg config.CatalogueConfig, reg *metrics.Registry) (catalogue.Catalogue, error) {
	var obs catalogue.Observer
	if reg != nil {
		obs = func(req catalogue.Request, source string) {
			reg.CatalogueRetrieved(req.Experiment, source)
		}
	}
	return catalogue.New(cfg, obs)
}

func settingsFrom(cfg *config.Config, cat catalogue.Catalogue) settings {
	return settings{
		cat: cat,
		defaults: catalogue.Defaults{
			Dataset:        cfg.Catalogue.Dataset,
			EnsembleMember: cfg.Catalogue.EnsembleMember,
			Format:         cfg.Catalogue.Format,
		},
		parallel: cfg.Catalogue.ParallelFetch,
		windows:  cfg.Windows,
		renderer: render.New(cfg.Render),
	}
}

// Reconfigure replaces the catalogue, windows and render settings for
// subsequent runs.
func (a *Application) Reconfigure(cfg *config.Config, cat catalogue.Catalogue) {
	s := settingsFrom(cfg, cat)
	a.mu.Lock()
	a.cur = s
	a.mu.Unlock()
	slog.Info("pipeline: settings updated",
		"parallel_fetch", s.parallel,
		"historical_window", s.windows.Historical.String(),
		"projection_window", s.windows.Projection.String())
}

func (a *Application) settings() settings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cur
}

// Run executes the full pipeline for sel.
func (a *Application) Run(ctx context.Context, sel types.Selection) (*Result, error) {
	start := a.now()
	ctx, span := a.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("model", string(sel.Model)),
		attribute.String("variable", string(sel.Variable)),
	))
	defer span.End()

	res, err := a.run(ctx, a.settings(), sel)
	elapsed := a.now().Sub(start)

	state := StateCompleted
	if err != nil {
		state = StateFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if a.metrics != nil {
		a.metrics.RunFinished(state, elapsed)
	}
	if err != nil {
		return nil, err
	}

	res.Duration = elapsed
	res.CreatedAt = start.UTC()
	slog.Info("pipeline: run completed",
		"id", res.ID, "model", sel.Model, "variable", sel.Variable,
		"duration", elapsed, "nan_cells", res.Stats.NaNCount, "inf_cells", res.Stats.InfCount)
	return res, nil
}

func (a *Application) run(ctx context.Context, s settings, sel types.Selection) (*Result, error) {
	if err := sel.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	hist, proj, err := a.retrieve(ctx, s, sel)
	if err != nil {
		return nil, err
	}

	out, err := a.difference(ctx, s, sel, hist, proj)
	if err != nil {
		return nil, err
	}

	title := sel.Title()
	fig, err := a.render(ctx, s.renderer, out, title)
	if err != nil {
		return nil, err
	}

	nc, err := catalogue.EncodeField(out.Field)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	return &Result{
		ID:        uuid.NewString(),
		Selection: sel,
		Title:     title,
		Scale:     out.Scale,
		VMin:      out.VMin,
		VMax:      out.VMax,
		Field:     out.Field,
		Stats:     compute.Summarize(out.Field),
		Figure:    fig,
		DataArray: nc,
	}, nil
}

// retrieve fetches the historical and projection series for sel.
func (a *Application) retrieve(ctx context.Context, s settings, sel types.Selection) (hist, proj *grid.Series, err error) {
	histReq := catalogue.NewRequest(s.defaults, sel, catalogue.ExperimentHistorical)
	projReq := catalogue.NewRequest(s.defaults, sel, catalogue.ExperimentRCP85)

	if !s.parallel {
		if hist, err = a.fetch(ctx, s.cat, histReq); err != nil {
			return nil, nil, err
		}
		if proj, err = a.fetch(ctx, s.cat, projReq); err != nil {
			return nil, nil, err
		}
		return hist, proj, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		hist, err = a.fetch(gctx, s.cat, histReq)
		return err
	})
	g.Go(func() error {
		var err error
		proj, err = a.fetch(gctx, s.cat, projReq)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return hist, proj, nil
}

func (a *Application) fetch(ctx context.Context, cat catalogue.Catalogue, req catalogue.Request) (*grid.Series, error) {
	ctx, span := a.tracer.Start(ctx, "catalogue.retrieve", trace.WithAttributes(
		attribute.String("experiment", req.Experiment),
		attribute.String("period", req.Period),
	))
	defer span.End()

	slog.Info("pipeline: retrieving", "model", req.Model, "variable", req.Variable,
		"experiment", req.Experiment, "period", req.Period)
	s, err := cat.Retrieve(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("pipeline: retrieve %s: %w", req.Experiment, err)
	}
	return s, nil
}

func (a *Application) difference(ctx context.Context, s settings, sel types.Selection, hist, proj *grid.Series) (compute.Output, error) {
	_, span := a.tracer.Start(ctx, "compute.difference")
	defer span.End()

	hw := s.windows.Historical.Resolve(hist.Start)
	pw := s.windows.Projection.Resolve(proj.Start)
	span.SetAttributes(
		attribute.String("historical_window", hw.String()),
		attribute.String("projection_window", pw.String()),
	)

	out, err := compute.Compute(compute.Input{
		Selection:        sel,
		Projected:        proj,
		ProjectedWindow:  pw,
		Historical:       hist,
		HistoricalWindow: hw,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return compute.Output{}, fmt.Errorf("pipeline: %w", err)
	}
	return out, nil
}

func (a *Application) render(ctx context.Context, r Renderer, out compute.Output, title string) ([]byte, error) {
	_, span := a.tracer.Start(ctx, "render.map")
	defer span.End()

	fig, err := r.Render(out.Field, title, render.ScaleFor(out.Scale))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("pipeline: render: %w", err)
	}
	return fig, nil
}
