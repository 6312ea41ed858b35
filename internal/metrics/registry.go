package metrics

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// Metric family names.
const (
	RunsTotal       = "climdiff_runs_total"
	RetrievalsTotal = "climdiff_catalogue_retrievals_total"
	RunDuration     = "climdiff_run_duration_seconds"
	CertDaysLeft    = "climdiff_catalogue_cert_days_left"
)

const labelSeparator = "\xff"

// Registry accumulates counters for one process.
type Registry struct {
	mu         sync.Mutex
	runs       map[string]float64 // keyed by state
	retrievals map[string]float64 // keyed by experiment + labelSeparator + source
	durSum     float64
	durCount   uint64
	certDays   *float64
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		runs:       make(map[string]float64),
		retrievals: make(map[string]float64),
	}
}

// RunFinished records one run ending in state after d.
func (r *Registry) RunFinished(state string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[state]++
	r.durSum += d.Seconds()
	r.durCount++
}

// CatalogueRetrieved records one successful retrieval.
func (r *Registry) CatalogueRetrieved(experiment, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retrievals[experiment+labelSeparator+source]++
}

// SetCertDaysLeft records the days until the catalogue certificate expires.
func (r *Registry) SetCertDaysLeft(days int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := float64(days)
	r.certDays = &v
}

// Families snapshots the registry as metric families sorted by name.
// Families with no samples are omitted.
func (r *Registry) Families() []*dto.MetricFamily {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*dto.MetricFamily

	if len(r.runs) > 0 {
		mf := family(RunsTotal, "Pipeline runs by final state.", dto.MetricType_COUNTER)
		for _, state := range sortedKeys(r.runs) {
			mf.Metric = append(mf.Metric, &dto.Metric{
				Label:   labels("state", state),
				Counter: &dto.Counter{Value: proto.Float64(r.runs[state])},
			})
		}
		out = append(out, mf)
	}

	if len(r.retrievals) > 0 {
		mf := family(RetrievalsTotal, "Catalogue retrievals by experiment and source.", dto.MetricType_COUNTER)
		for _, k := range sortedKeys(r.retrievals) {
			experiment, source, _ := strings.Cut(k, labelSeparator)
			mf.Metric = append(mf.Metric, &dto.Metric{
				Label:   labels("experiment", experiment, "source", source),
				Counter: &dto.Counter{Value: proto.Float64(r.retrievals[k])},
			})
		}
		out = append(out, mf)
	}

	if r.durCount > 0 {
		mf := family(RunDuration, "Wall time of finished pipeline runs.", dto.MetricType_SUMMARY)
		mf.Metric = []*dto.Metric{{
			Summary: &dto.Summary{
				SampleCount: proto.Uint64(r.durCount),
				SampleSum:   proto.Float64(r.durSum),
			},
		}}
		out = append(out, mf)
	}

	if r.certDays != nil {
		mf := family(CertDaysLeft, "Days until the catalogue TLS certificate expires.", dto.MetricType_GAUGE)
		mf.Metric = []*dto.Metric{{Gauge: &dto.Gauge{Value: proto.Float64(*r.certDays)}}}
		out = append(out, mf)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out
}

// WriteText writes the registry in the Prometheus text format.
func (r *Registry) WriteText(w io.Writer) error {
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range r.Families() {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Handler serves the registry for Prometheus scrapes.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
		if err := r.WriteText(w); err != nil {
			slog.Error("metrics: write", "err", err)
		}
	})
}

func family(name, help string, typ dto.MetricType) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: typ.Enum(),
	}
}

// labels builds label pairs from alternating names and values.
func labels(kv ...string) []*dto.LabelPair {
	out := make([]*dto.LabelPair, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, &dto.LabelPair{Name: proto.String(kv[i]), Value: proto.String(kv[i+1])})
	}
	return out
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
