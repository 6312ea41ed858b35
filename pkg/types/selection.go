package types

import (
	"errors"
	"fmt"
)

// ModelID identifies a CMIP5 model in the data catalogue.
type ModelID string

// VariableID identifies a catalogue variable.
type VariableID string

// Catalogue model identifiers.
const (
	IPSLCM5ALR ModelID = "ipsl_cm5a_lr"
	IPSLCM5AMR ModelID = "ipsl_cm5a_mr"
	IPSLCM5BLR ModelID = "ipsl_cm5b_lr"
	MPIESMLR   ModelID = "mpi_esm_lr"
	MPIESMMR   ModelID = "mpi_esm_mr"
	NorESM1M   ModelID = "noresm1_m"
)

// Catalogue variable identifiers.
const (
	MeanPrecipitationFlux VariableID = "mean_precipitation_flux"
	NearSurfaceTemp       VariableID = "2m_temperature"
)

var (
	// ErrUnknownModel is returned for identifiers not in Models.
	ErrUnknownModel = errors.New("unknown model")
	// ErrUnknownVariable is returned for identifiers not in Variables.
	ErrUnknownVariable = errors.New("unknown variable")
)

// Choice is one entry of a dropdown: the value sent to the catalogue and the
// label shown to users.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Models lists the selectable models in display order.
var Models = []Choice{
	{Value: string(IPSLCM5ALR), Label: "IPSL-CM5A-LR (IPSL, France)"},
	{Value: string(IPSLCM5AMR), Label: "IPSL-CM5A-MR (IPSL, France)"},
	{Value: string(IPSLCM5BLR), Label: "IPSL-CM5B-LR (IPSL, France)"},
	{Value: string(MPIESMLR), Label: "MPI-ESM-LR (MPI, Germany)"},
	{Value: string(MPIESMMR), Label: "MPI-ESM-MR (MPI, Germany)"},
	{Value: string(NorESM1M), Label: "NorESM1-M (NCC, Norway)"},
}

// Variables lists the selectable variables in display order.
var Variables = []Choice{
	{Value: string(MeanPrecipitationFlux), Label: "Mean Precipitation Flux"},
	{Value: string(NearSurfaceTemp), Label: "Near Surface Temperature"},
}

// variableMeta holds the NetCDF short name and units each variable is
// published under inside catalogue archives.
var variableMeta = map[VariableID]struct{ short, units string }{
	MeanPrecipitationFlux: {short: "pr", units: "kg m-2 s-1"},
	NearSurfaceTemp:       {short: "tas", units: "K"},
}

// ParseModel validates s against Models.
func ParseModel(s string) (ModelID, error) {
	if _, ok := lookup(Models, s); !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownModel, s)
	}
	return ModelID(s), nil
}

// ParseVariable validates s against Variables.
func ParseVariable(s string) (VariableID, error) {
	if _, ok := lookup(Variables, s); !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownVariable, s)
	}
	return VariableID(s), nil
}

// Label returns the display label, or the raw identifier if unknown.
func (m ModelID) Label() string {
	if l, ok := lookup(Models, string(m)); ok {
		return l
	}
	return string(m)
}

// Label returns the display label, or the raw identifier if unknown.
func (v VariableID) Label() string {
	if l, ok := lookup(Variables, string(v)); ok {
		return l
	}
	return string(v)
}

// ShortName is the NetCDF variable name holding v's data (e.g. "pr").
func (v VariableID) ShortName() string {
	return variableMeta[v].short
}

// Units are the native units of v as published by the catalogue.
func (v VariableID) Units() string {
	return variableMeta[v].units
}

// IsPrecipitation reports whether v is the precipitation flux variable.
func (v VariableID) IsPrecipitation() bool {
	return v == MeanPrecipitationFlux
}

// Selection is one (model, variable) pair chosen by the user.
type Selection struct {
	Model    ModelID    `json:"model"`
	Variable VariableID `json:"variable"`
}

// ParseSelection validates raw identifiers and returns a Selection.
func ParseSelection(model, variable string) (Selection, error) {
	m, err := ParseModel(model)
	if err != nil {
		return Selection{}, err
	}
	v, err := ParseVariable(variable)
	if err != nil {
		return Selection{}, err
	}
	return Selection{Model: m, Variable: v}, nil
}

// Validate checks that both identifiers are known.
func (s Selection) Validate() error {
	_, err := ParseSelection(string(s.Model), string(s.Variable))
	return err
}

// Title is the figure title for this selection.
func (s Selection) Title() string {
	return fmt.Sprintf(" Model: %s\nVariable: %s", s.Model.Label(), s.Variable.Label())
}

func lookup(choices []Choice, value string) (string, bool) {
	for _, c := range choices {
		if c.Value == value {
			return c.Label, true
		}
	}
	return "", false
}
