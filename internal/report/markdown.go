package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pgsd/pgsd/internal/compare"
)

// MarkdownRenderer writes a human-readable Markdown report: a summary
// header with the two schema names and table counts, then one section per
// difference kind in emission order.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(w io.Writer, result *compare.Result) error {
	var sb strings.Builder

	sb.WriteString("# Schema Comparison Report\n\n")
	fmt.Fprintf(&sb, "Generated: %s\n\n", result.ComparedAt.Format(time.RFC3339))
	sb.WriteString("| | Schema | Tables |\n")
	sb.WriteString("|---|---|---|\n")
	fmt.Fprintf(&sb, "| Source | %s | %d |\n", result.SourceSchema, result.SourceTableCount)
	fmt.Fprintf(&sb, "| Target | %s | %d |\n\n", result.TargetSchema, result.TargetTableCount)

	if result.Identical() {
		sb.WriteString("No differences found.\n")
		_, err := io.WriteString(w, sb.String())
		return err
	}

	fmt.Fprintf(&sb, "%d difference(s) found.\n", len(result.Differences))

	var currentType compare.DiffType
	for _, d := range result.Differences {
		if d.Type != currentType {
			currentType = d.Type
			fmt.Fprintf(&sb, "\n## %s\n\n", label(currentType))
		}
		sb.WriteString("- ")
		sb.WriteString(describe(d))
		sb.WriteString("\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// describe renders one difference as a single Markdown line.
func describe(d compare.Difference) string {
	switch d.Type {
	case compare.DiffTableAdded, compare.DiffTableRemoved:
		return fmt.Sprintf("`%s` (%d columns)", d.Table, d.ColumnCount)
	case compare.DiffColumnAdded, compare.DiffColumnRemoved:
		return fmt.Sprintf("`%s.%s` (%s)", d.Table, d.Column, d.DataType)
	case compare.DiffColumnTypeChanged:
		return fmt.Sprintf("`%s.%s`: %s -> %s", d.Table, d.Column, d.OldType, d.NewType)
	default:
		return fmt.Sprintf("`%s.%s`", d.Table, d.Column)
	}
}
