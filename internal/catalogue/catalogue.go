package catalogue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/climdiff/climdiff/internal/grid"
	"github.com/climdiff/climdiff/pkg/types"
)

// Experiment identifiers understood by the catalogue.
const (
	ExperimentHistorical = "historical"
	ExperimentRCP85      = "rcp_8_5"
)

// Fixed catalogue periods.
var (
	HistoricalPeriod         = grid.MustPeriod("185001-200512")
	ProjectionPeriod         = grid.MustPeriod("200601-210012")
	ExtendedProjectionPeriod = grid.MustPeriod("200601-230012")
)

// Fetch sources reported to observers.
const (
	SourceRemote    = "remote"
	SourceCache     = "cache"
	SourceDirectory = "directory"
)

// Catalogue supplies gridded monthly series.
type Catalogue interface {
	Retrieve(ctx context.Context, req Request) (*grid.Series, error)
}

// Observer is notified once per successful retrieval with where the data
// came from (SourceRemote, SourceCache or SourceDirectory).
type Observer func(req Request, source string)

// Request is the body sent to the catalogue. Field names match the
// catalogue's JSON keys.
type Request struct {
	Dataset        string           `json:"-"`
	EnsembleMember string           `json:"ensemble_member"`
	Format         string           `json:"format"`
	Variable       types.VariableID `json:"variable"`
	Model          types.ModelID    `json:"model"`
	Experiment     string           `json:"experiment"`
	Period         string           `json:"period"`
}

// Defaults holds the request fields that do not vary per run.
type Defaults struct {
	Dataset        string
	EnsembleMember string
	Format         string
}

// PeriodFor returns the catalogue period for model and experiment.
func PeriodFor(model types.ModelID, experiment string) grid.Period {
	if experiment == ExperimentHistorical {
		return HistoricalPeriod
	}
	if model == types.IPSLCM5ALR {
		return ExtendedProjectionPeriod
	}
	return ProjectionPeriod
}

// NewRequest builds the request for one experiment of sel.
func NewRequest(d Defaults, sel types.Selection, experiment string) Request {
	return Request{
		Dataset:        d.Dataset,
		EnsembleMember: d.EnsembleMember,
		Format:         d.Format,
		Variable:       sel.Variable,
		Model:          sel.Model,
		Experiment:     experiment,
		Period:         PeriodFor(sel.Model, experiment).String(),
	}
}

// Validate checks the request before it is sent.
func (r Request) Validate() error {
	if r.Dataset == "" {
		return fmt.Errorf("catalogue: request has no dataset")
	}
	if err := (types.Selection{Model: r.Model, Variable: r.Variable}).Validate(); err != nil {
		return fmt.Errorf("catalogue: %w", err)
	}
	switch r.Experiment {
	case ExperimentHistorical, ExperimentRCP85:
	default:
		return fmt.Errorf("catalogue: unknown experiment %q", r.Experiment)
	}
	if _, err := grid.ParsePeriod(r.Period); err != nil {
		return fmt.Errorf("catalogue: %w", err)
	}
	return nil
}

// StartMonth is the month of the first grid in the requested period.
func (r Request) StartMonth() (grid.Month, error) {
	p, err := grid.ParsePeriod(r.Period)
	if err != nil {
		return grid.Month{}, err
	}
	return p.Start, nil
}

// Key is a stable identifier for the request, used as the cache key.
func (r Request) Key() string {
	body, _ := json.Marshal(struct {
		Dataset string `json:"dataset"`
		Request
	}{r.Dataset, r})
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// FileStem is the base name used for local archives of this request.
func (r Request) FileStem() string {
	return fmt.Sprintf("%s_%s_%s_%s", r.Model, r.Variable, r.Experiment, r.Period)
}
