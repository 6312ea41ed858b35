package pipeline

import (
	"context"
	"errors"
	"math"
	"os"
	"sort"
	"sync"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/climdiff/climdiff/internal/catalogue"
	"github.com/climdiff/climdiff/internal/config"
	"github.com/climdiff/climdiff/internal/grid"
	"github.com/climdiff/climdiff/internal/metrics"
	"github.com/climdiff/climdiff/internal/render"
	"github.com/climdiff/climdiff/pkg/types"
)

var (
	testLat = []float64{-45, 45}
	testLon = []float64{0, 180}
)

// fakeCatalogue serves constant-valued series covering each request's
// full period. hist and proj give the per-cell value for each experiment.
type fakeCatalogue struct {
	hist, proj []float64
	err        error

	mu   sync.Mutex
	reqs []catalogue.Request
}

func (f *fakeCatalogue) Retrieve(ctx context.Context, req catalogue.Request) (*grid.Series, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := grid.ParsePeriod(req.Period)
	if err != nil {
		return nil, err
	}
	cell := f.proj
	if req.Experiment == catalogue.ExperimentHistorical {
		cell = f.hist
	}
	vals := make([]float64, 0, p.Len()*len(cell))
	for t := 0; t < p.Len(); t++ {
		vals = append(vals, cell...)
	}
	return grid.NewSeries(req.Variable.ShortName(), req.Variable.Units(), p.Start, testLat, testLon, vals)
}

func (f *fakeCatalogue) experiments() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.reqs {
		out = append(out, r.Experiment+" "+r.Period)
	}
	sort.Strings(out)
	return out
}

type fakeRenderer struct {
	calls int
	scale render.ColorScale
	title string
	err   error
}

func (r *fakeRenderer) Render(_ *grid.Field, title string, cs render.ColorScale) ([]byte, error) {
	r.calls++
	r.title, r.scale = title, cs
	if r.err != nil {
		return nil, r.err
	}
	return []byte("png"), nil
}

func newTestApp(t *testing.T, cfg *config.Config, cat catalogue.Catalogue) (*Application, *fakeRenderer, *metrics.Registry) {
	t.Helper()
	reg := metrics.NewRegistry()
	app := New(cfg, cat, reg)
	fr := &fakeRenderer{}
	app.cur.renderer = fr
	return app, fr, reg
}

func runsByState(reg *metrics.Registry) map[string]float64 {
	out := map[string]float64{}
	for _, mf := range reg.Families() {
		if mf.GetName() != metrics.RunsTotal {
			continue
		}
		for _, m := range mf.GetMetric() {
			out[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
		}
	}
	return out
}

func TestRun_ComputesPercentageDifference(t *testing.T) {
	cat := &fakeCatalogue{
		hist: []float64{2, 4, 1, 0},
		proj: []float64{3, 2, 1, 1},
	}
	app, fr, reg := newTestApp(t, config.Defaults(), cat)
	sel := types.Selection{Model: types.MPIESMLR, Variable: types.MeanPrecipitationFlux}

	res, err := app.Run(context.Background(), sel)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []float64{50, -50, 0, math.Inf(1)}
	for i, w := range want {
		if got := res.Field.Data.Elements[i]; got != w {
			t.Errorf("cell %d: got %v, want %v", i, got, w)
		}
	}
	if res.Scale != 100 || res.VMin != -100 || res.VMax != 100 {
		t.Errorf("scale/bounds: %v [%v, %v]", res.Scale, res.VMin, res.VMax)
	}
	if res.Stats.InfCount != 1 || res.Stats.Min != -50 || res.Stats.Max != 50 {
		t.Errorf("stats: %+v", res.Stats)
	}
	if res.ID == "" {
		t.Error("empty run ID")
	}
	if fr.calls != 1 || fr.scale != render.ScaleFor(100) || fr.title != sel.Title() {
		t.Errorf("renderer: calls=%d scale=%+v title=%q", fr.calls, fr.scale, fr.title)
	}
	if len(res.DataArray) == 0 || string(res.Figure) != "png" {
		t.Error("outputs not populated")
	}

	got := cat.experiments()
	wantReqs := []string{"historical 185001-200512", "rcp_8_5 200601-210012"}
	if len(got) != 2 || got[0] != wantReqs[0] || got[1] != wantReqs[1] {
		t.Errorf("requests: got %v, want %v", got, wantReqs)
	}
	if runsByState(reg)[StateCompleted] != 1 {
		t.Errorf("metrics: %v", runsByState(reg))
	}
}

func TestRun_TemperatureScale(t *testing.T) {
	cat := &fakeCatalogue{hist: []float64{200, 200, 200, 200}, proj: []float64{202, 200, 198, 200}}
	app, _, _ := newTestApp(t, config.Defaults(), cat)

	res, err := app.Run(context.Background(), types.Selection{Model: types.NorESM1M, Variable: types.NearSurfaceTemp})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Scale != 1000 || res.VMax != 10 {
		t.Errorf("scale %v vmax %v", res.Scale, res.VMax)
	}
	if got := res.Field.Data.Elements[0]; math.Abs(got-10) > 1e-9 {
		t.Errorf("cell 0: got %v, want 10", got)
	}
}

func TestRun_RequestsAndTitle(t *testing.T) {
	cat := &fakeCatalogue{hist: []float64{280, 280, 280, 280}, proj: []float64{280, 280, 280, 280}}
	app, fr, _ := newTestApp(t, config.Defaults(), cat)

	res, err := app.Run(context.Background(), types.Selection{Model: types.MPIESMLR, Variable: types.NearSurfaceTemp})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"historical 185001-200512", "rcp_8_5 200601-210012"}
	got := cat.experiments()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("requests: got %q, want %q", got, want)
	}
	for _, r := range cat.reqs {
		if r.Model != types.MPIESMLR || r.Variable != types.NearSurfaceTemp ||
			r.Dataset != config.DefaultDataset || r.EnsembleMember != "r1i1p1" || r.Format != "zip" {
			t.Errorf("request: %+v", r)
		}
	}
	title := " Model: MPI-ESM-LR (MPI, Germany)\nVariable: Near Surface Temperature"
	if res.Title != title || fr.title != title {
		t.Errorf("title: result %q, renderer %q", res.Title, fr.title)
	}
	if res.VMin != -10 || res.VMax != 10 {
		t.Errorf("bounds: [%v, %v]", res.VMin, res.VMax)
	}
}

func TestRun_ExtendedProjectionPeriod(t *testing.T) {
	cat := &fakeCatalogue{hist: []float64{1, 1, 1, 1}, proj: []float64{1, 1, 1, 1}}
	app, _, _ := newTestApp(t, config.Defaults(), cat)

	if _, err := app.Run(context.Background(), types.Selection{Model: types.IPSLCM5ALR, Variable: types.NearSurfaceTemp}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := cat.experiments(); got[1] != "rcp_8_5 200601-230012" {
		t.Errorf("projection request: got %q", got[1])
	}
}

func TestRun_ParallelMatchesSequential(t *testing.T) {
	sel := types.Selection{Model: types.MPIESMMR, Variable: types.MeanPrecipitationFlux}
	newCat := func() *fakeCatalogue {
		return &fakeCatalogue{hist: []float64{1, 2, 3, 4}, proj: []float64{2, 2, 2, 2}}
	}

	seq, _, _ := newTestApp(t, config.Defaults(), newCat())
	cfg := config.Defaults()
	cfg.Catalogue.ParallelFetch = true
	par, _, _ := newTestApp(t, cfg, newCat())

	a, err := seq.Run(context.Background(), sel)
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}
	b, err := par.Run(context.Background(), sel)
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}
	for i := range a.Field.Data.Elements {
		if a.Field.Data.Elements[i] != b.Field.Data.Elements[i] {
			t.Errorf("cell %d: sequential %v, parallel %v", i, a.Field.Data.Elements[i], b.Field.Data.Elements[i])
		}
	}
}

func TestRun_CatalogueErrorIsWrapped(t *testing.T) {
	sentinel := errors.New("catalogue down")
	for _, parallel := range []bool{false, true} {
		cfg := config.Defaults()
		cfg.Catalogue.ParallelFetch = parallel
		app, fr, reg := newTestApp(t, cfg, &fakeCatalogue{err: sentinel})

		_, err := app.Run(context.Background(), types.Selection{Model: types.MPIESMLR, Variable: types.NearSurfaceTemp})
		if !errors.Is(err, sentinel) {
			t.Errorf("parallel=%v: expected wrapped catalogue error, got %v", parallel, err)
		}
		if fr.calls != 0 {
			t.Errorf("parallel=%v: renderer called after failure", parallel)
		}
		if runsByState(reg)[StateFailed] != 1 {
			t.Errorf("parallel=%v: metrics %v", parallel, runsByState(reg))
		}
	}
}

func TestRun_RenderErrorIsWrapped(t *testing.T) {
	sentinel := errors.New("no fonts")
	app, fr, _ := newTestApp(t, config.Defaults(), &fakeCatalogue{hist: []float64{1, 1, 1, 1}, proj: []float64{1, 1, 1, 1}})
	fr.err = sentinel

	_, err := app.Run(context.Background(), types.Selection{Model: types.MPIESMLR, Variable: types.NearSurfaceTemp})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped render error, got %v", err)
	}
}

func TestRun_WindowOutsideSeries(t *testing.T) {
	cfg := config.Defaults()
	cfg.Windows.Projection = grid.MonthRange{
		From: grid.Month{Year: 2090, Month: 1},
		To:   grid.Month{Year: 2109, Month: 12},
	}
	app, _, _ := newTestApp(t, cfg, &fakeCatalogue{hist: []float64{1, 1, 1, 1}, proj: []float64{1, 1, 1, 1}})

	_, err := app.Run(context.Background(), types.Selection{Model: types.MPIESMLR, Variable: types.NearSurfaceTemp})
	if !errors.Is(err, grid.ErrWindowRange) {
		t.Fatalf("expected ErrWindowRange, got %v", err)
	}
}

func TestRun_InvalidSelection(t *testing.T) {
	cat := &fakeCatalogue{}
	app, _, _ := newTestApp(t, config.Defaults(), cat)

	_, err := app.Run(context.Background(), types.Selection{Model: "hadgem2", Variable: types.NearSurfaceTemp})
	if !errors.Is(err, types.ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
	if len(cat.experiments()) != 0 {
		t.Error("catalogue contacted for an invalid selection")
	}
}

func TestRun_RecordsSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer tp.Shutdown(context.Background()) //nolint:errcheck

	app, _, _ := newTestApp(t, config.Defaults(), &fakeCatalogue{hist: []float64{1, 1, 1, 1}, proj: []float64{2, 2, 2, 2}})
	app.tracer = tp.Tracer("test")

	if _, err := app.Run(context.Background(), types.Selection{Model: types.MPIESMLR, Variable: types.NearSurfaceTemp}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	count := map[string]int{}
	for _, s := range rec.Ended() {
		count[s.Name()]++
	}
	want := map[string]int{"pipeline.run": 1, "catalogue.retrieve": 2, "compute.difference": 1, "render.map": 1}
	for name, n := range want {
		if count[name] != n {
			t.Errorf("span %s: got %d, want %d", name, count[name], n)
		}
	}
}

func TestReconfigure_SwapsCatalogue(t *testing.T) {
	first := &fakeCatalogue{err: errors.New("old")}
	app, _, _ := newTestApp(t, config.Defaults(), first)

	second := &fakeCatalogue{hist: []float64{1, 1, 1, 1}, proj: []float64{1, 1, 1, 1}}
	app.Reconfigure(config.Defaults(), second)
	app.cur.renderer = &fakeRenderer{}

	if _, err := app.Run(context.Background(), types.Selection{Model: types.MPIESMLR, Variable: types.NearSurfaceTemp}); err != nil {
		t.Fatalf("Run after reconfigure: %v", err)
	}
	if len(first.experiments()) != 0 || len(second.experiments()) != 2 {
		t.Errorf("requests: first=%d second=%d", len(first.experiments()), len(second.experiments()))
	}
}

func TestNewCatalogue_CountsRetrievals(t *testing.T) {
	dir := t.TempDir()
	reg := metrics.NewRegistry()
	cfg := config.Defaults().Catalogue
	cfg.Directory = dir

	cat, err := NewCatalogue(cfg, reg)
	if err != nil {
		t.Fatalf("NewCatalogue: %v", err)
	}
	d := cat.(*catalogue.Directory)
	sel := types.Selection{Model: types.MPIESMLR, Variable: types.NearSurfaceTemp}
	req := catalogue.NewRequest(catalogue.Defaults{Dataset: cfg.Dataset}, sel, catalogue.ExperimentHistorical)
	s, err := (&fakeCatalogue{hist: []float64{1, 1, 1, 1}}).Retrieve(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Store(req, s); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := cat.Retrieve(context.Background(), req); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	var found bool
	for _, mf := range reg.Families() {
		if mf.GetName() == metrics.RetrievalsTotal {
			found = mf.GetMetric()[0].GetCounter().GetValue() == 1
		}
	}
	if !found {
		t.Error("retrieval not counted")
	}
}

func TestResult_WriteFiles(t *testing.T) {
	dir := t.TempDir()
	res := &Result{
		Selection: types.Selection{Model: types.MPIESMLR, Variable: types.NearSurfaceTemp},
		Figure:    []byte("png"),
		DataArray: []byte("CDF"),
	}
	fig, data, err := res.WriteFiles(dir + "/out")
	if err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	for path, want := range map[string]string{fig: "png", data: "CDF"} {
		b, err := os.ReadFile(path)
		if err != nil || string(b) != want {
			t.Errorf("%s: got %q err=%v", path, b, err)
		}
	}
}
