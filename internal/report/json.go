package report

import (
	"encoding/json"
	"io"

	"github.com/pgsd/pgsd/internal/compare"
)

// JSONRenderer writes the comparison result as indented JSON. The document
// is the Result struct itself, so the difference order on the wire is the
// engine's emission order.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(w io.Writer, result *compare.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
