package types

// ApplicationTitle is the heading shown above the selection surface.
const ApplicationTitle = "Difference between RCP8.5 and Historical expressed as percentage of Historical values."

// Output slot names.
const (
	OutputFigure    = "figure"
	OutputDataArray = "dataarray"
)

// Input describes one dropdown on the selection surface.
type Input struct {
	Name    string   `json:"name"`
	Label   string   `json:"label"`
	Choices []Choice `json:"choices"`
}

// Output describes one result slot filled by a completed run.
type Output struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
}

// Surface is the full description a presentation layer needs to render the
// application: its title, layout hints, inputs and outputs.
type Surface struct {
	Title   string            `json:"title"`
	Layout  map[string]string `json:"layout"`
	Inputs  []Input           `json:"inputs"`
	Outputs []Output          `json:"outputs"`
}

// DefaultSurface returns the model/variable surface with figure and
// dataarray outputs aligned below the inputs.
func DefaultSurface() Surface {
	return Surface{
		Title:  ApplicationTitle,
		Layout: map[string]string{"output_align": "bottom"},
		Inputs: []Input{
			{Name: "model", Label: "Model", Choices: append([]Choice(nil), Models...)},
			{Name: "variable", Label: "Variable", Choices: append([]Choice(nil), Variables...)},
		},
		Outputs: []Output{
			{Name: OutputFigure, ContentType: "image/png"},
			{Name: OutputDataArray, ContentType: "application/x-netcdf"},
		},
	}
}
