package report

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"

	"github.com/pgsd/pgsd/internal/compare"
)

//go:embed templates/report.html.tmpl
var htmlTemplate string

// HTMLRenderer writes a standalone HTML report from the embedded template.
type HTMLRenderer struct{}

// htmlSection groups consecutive differences of one kind for the template.
type htmlSection struct {
	Title string
	Rows  []htmlRow
}

type htmlRow struct {
	Table  string
	Detail string
}

func (r *HTMLRenderer) Render(w io.Writer, result *compare.Result) error {
	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return err
	}

	var sections []*htmlSection
	var current *htmlSection
	for _, d := range result.Differences {
		title := label(d.Type)
		if current == nil || current.Title != title {
			current = &htmlSection{Title: title}
			sections = append(sections, current)
		}
		current.Rows = append(current.Rows, htmlRow{
			Table:  d.Table,
			Detail: detail(d),
		})
	}

	return tmpl.Execute(w, struct {
		Result   *compare.Result
		Sections []*htmlSection
	}{result, sections})
}

func detail(d compare.Difference) string {
	switch d.Type {
	case compare.DiffTableAdded, compare.DiffTableRemoved:
		return fmt.Sprintf("%d columns", d.ColumnCount)
	case compare.DiffColumnAdded, compare.DiffColumnRemoved:
		return fmt.Sprintf("%s (%s)", d.Column, d.DataType)
	case compare.DiffColumnTypeChanged:
		return fmt.Sprintf("%s: %s -> %s", d.Column, d.OldType, d.NewType)
	default:
		return d.Column
	}
}
