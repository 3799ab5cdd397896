// Package report renders comparison results as JSON, Markdown or HTML.
// Renderers consume the comparison output as-is: they never re-derive or
// re-order differences.
package report

import (
	"io"
	"strings"

	"github.com/pgsd/pgsd/internal/compare"
	"github.com/pgsd/pgsd/internal/pgsderr"
)

// Renderer turns a comparison result into report text.
type Renderer interface {
	Render(w io.Writer, result *compare.Result) error
}

// Supported report formats.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Formats lists the supported format names, for flag validation and help
// text.
func Formats() []string {
	return []string{FormatJSON, FormatMarkdown, FormatHTML}
}

// NewRenderer returns the renderer for the named format.
func NewRenderer(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		return &JSONRenderer{}, nil
	case FormatMarkdown:
		return &MarkdownRenderer{}, nil
	case FormatHTML:
		return &HTMLRenderer{}, nil
	default:
		return nil, pgsderr.NewValidationError("format", format,
			"must be one of "+strings.Join(Formats(), ", "))
	}
}

// label returns the human heading for a difference group.
func label(t compare.DiffType) string {
	switch t {
	case compare.DiffTableAdded:
		return "Tables Added"
	case compare.DiffTableRemoved:
		return "Tables Removed"
	case compare.DiffColumnAdded:
		return "Columns Added"
	case compare.DiffColumnRemoved:
		return "Columns Removed"
	case compare.DiffColumnTypeChanged:
		return "Column Types Changed"
	default:
		return string(t)
	}
}
