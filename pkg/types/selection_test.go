package types

import (
	"errors"
	"strings"
	"testing"
)

func TestParseSelection(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		variable string
		wantErr  error
	}{
		{"valid temperature", "mpi_esm_lr", "2m_temperature", nil},
		{"valid precipitation", "noresm1_m", "mean_precipitation_flux", nil},
		{"unknown model", "hadgem2_es", "2m_temperature", ErrUnknownModel},
		{"unknown variable", "mpi_esm_lr", "sea_ice", ErrUnknownVariable},
		{"empty", "", "", ErrUnknownModel},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSelection(tc.model, tc.variable)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestSelection_Title(t *testing.T) {
	sel := Selection{Model: MPIESMLR, Variable: NearSurfaceTemp}
	title := sel.Title()

	if !strings.Contains(title, "MPI-ESM-LR (MPI, Germany)") {
		t.Errorf("title %q missing model label", title)
	}
	if !strings.Contains(title, "Near Surface Temperature") {
		t.Errorf("title %q missing variable label", title)
	}
	want := " Model: MPI-ESM-LR (MPI, Germany)\nVariable: Near Surface Temperature"
	if title != want {
		t.Errorf("Title() = %q, want %q", title, want)
	}
}

func TestChoiceSets(t *testing.T) {
	if len(Models) != 6 {
		t.Errorf("models: got %d, want 6", len(Models))
	}
	if len(Variables) != 2 {
		t.Errorf("variables: got %d, want 2", len(Variables))
	}
	for _, m := range Models {
		if _, err := ParseModel(m.Value); err != nil {
			t.Errorf("ParseModel(%q): %v", m.Value, err)
		}
	}
}

func TestVariableMeta(t *testing.T) {
	if got := MeanPrecipitationFlux.ShortName(); got != "pr" {
		t.Errorf("precipitation short name: got %q", got)
	}
	if got := NearSurfaceTemp.ShortName(); got != "tas" {
		t.Errorf("temperature short name: got %q", got)
	}
	if !MeanPrecipitationFlux.IsPrecipitation() || NearSurfaceTemp.IsPrecipitation() {
		t.Error("IsPrecipitation mismatch")
	}
	if got := VariableID("other").Label(); got != "other" {
		t.Errorf("unknown label: got %q", got)
	}
}

func TestDefaultSurface(t *testing.T) {
	s := DefaultSurface()
	if s.Title != ApplicationTitle {
		t.Errorf("title: got %q", s.Title)
	}
	if s.Layout["output_align"] != "bottom" {
		t.Errorf("layout: got %v", s.Layout)
	}
	if len(s.Inputs) != 2 || s.Inputs[0].Name != "model" || s.Inputs[1].Name != "variable" {
		t.Fatalf("inputs: got %+v", s.Inputs)
	}
	if len(s.Outputs) != 2 || s.Outputs[0].Name != OutputFigure || s.Outputs[1].Name != OutputDataArray {
		t.Fatalf("outputs: got %+v", s.Outputs)
	}

	// Mutating the surface must not leak into the package-level lists.
	s.Inputs[0].Choices[0].Label = "changed"
	if Models[0].Label == "changed" {
		t.Error("DefaultSurface shares the Models backing array")
	}
}
