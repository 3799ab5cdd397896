package compare

import "time"

// DiffType identifies the kind of a single difference.
type DiffType string

const (
	DiffTableAdded        DiffType = "table_added"
	DiffTableRemoved      DiffType = "table_removed"
	DiffColumnAdded       DiffType = "column_added"
	DiffColumnRemoved     DiffType = "column_removed"
	DiffColumnTypeChanged DiffType = "column_type_changed"
)

// Difference is the atomic unit of comparison output: immutable value data
// with no identity beyond its fields. Which fields are set depends on Type:
// table-level differences carry ColumnCount, column-level ones carry the
// column name and type information.
type Difference struct {
	Type        DiffType `json:"type"`
	Table       string   `json:"table"`
	Column      string   `json:"column,omitempty"`
	ColumnCount int      `json:"column_count,omitempty"`
	DataType    string   `json:"data_type,omitempty"`
	OldType     string   `json:"old_type,omitempty"`
	NewType     string   `json:"new_type,omitempty"`
}

// Result is the comparison engine's sole output: the ordered difference
// list plus the summary data report renderers need for headers. Renderers
// must not re-derive or re-order it.
type Result struct {
	SourceSchema     string       `json:"source_schema"`
	TargetSchema     string       `json:"target_schema"`
	SourceTableCount int          `json:"source_table_count"`
	TargetTableCount int          `json:"target_table_count"`
	Differences      []Difference `json:"differences"`
	ComparedAt       time.Time    `json:"compared_at"`
}

// CountByType returns how many differences of each kind the result holds.
func (r *Result) CountByType() map[DiffType]int {
	counts := make(map[DiffType]int)
	for _, d := range r.Differences {
		counts[d.Type]++
	}
	return counts
}

// Identical reports whether the comparison found no differences.
func (r *Result) Identical() bool {
	return len(r.Differences) == 0
}
