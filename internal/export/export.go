// Package export renders pipeline results as JSON, YAML or a review
// workbook.
package export

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/contract-cli/internal/model"
)

// Format names an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Write encodes res to w in the given format.
func Write(w io.Writer, res *model.PipelineResult, format Format) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return eris.Wrap(err, "export: encode json")
		}
		return nil
	case FormatYAML:
		// Round-trip through JSON so YAML keys match the JSON field names.
		b, err := json.Marshal(res)
		if err != nil {
			return eris.Wrap(err, "export: encode json")
		}
		var generic any
		if err := json.Unmarshal(b, &generic); err != nil {
			return eris.Wrap(err, "export: decode json")
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return eris.Wrap(err, "export: encode yaml")
		}
		return eris.Wrap(enc.Close(), "export: close yaml encoder")
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}
