// Package compare computes the structural difference between two schema
// snapshots. The comparison is a pure function: it performs no I/O, holds
// no state, and never mutates its inputs, so it is safe to call
// concurrently against distinct snapshot pairs.
package compare

import (
	"time"

	"github.com/pgsd/pgsd/internal/snapshot"
)

// Compare produces the ordered difference list between source and target.
//
// Emission order is the deterministic contract renderers and tests rely
// on: tables only in the target (added), then tables only in the source
// (removed), then per common table its added, removed and type-changed
// columns. Every group iterates in sorted name order, so two runs over
// equivalently-built snapshots produce identical lists.
func Compare(source, target *snapshot.SchemaSnapshot) *Result {
	result := &Result{
		SourceSchema:     source.SchemaName,
		TargetSchema:     target.SchemaName,
		SourceTableCount: len(source.Tables),
		TargetTableCount: len(target.Tables),
		Differences:      []Difference{},
		ComparedAt:       time.Now().UTC(),
	}

	var common []string
	for _, name := range target.SortedTableNames() {
		if _, ok := source.Tables[name]; !ok {
			result.Differences = append(result.Differences, Difference{
				Type:        DiffTableAdded,
				Table:       name,
				ColumnCount: len(target.Tables[name].Columns),
			})
		}
	}
	for _, name := range source.SortedTableNames() {
		if _, ok := target.Tables[name]; !ok {
			result.Differences = append(result.Differences, Difference{
				Type:        DiffTableRemoved,
				Table:       name,
				ColumnCount: len(source.Tables[name].Columns),
			})
		} else {
			common = append(common, name)
		}
	}

	// source.SortedTableNames already sorts, so common stays sorted.
	for _, name := range common {
		result.Differences = append(result.Differences,
			compareColumns(source.Tables[name], target.Tables[name])...)
	}

	return result
}

// compareColumns diffs one common table by column name. Type changes use
// exact string inequality on the catalog-reported type; nullability and
// defaults are modeled in the snapshot but deliberately not diffed here.
func compareColumns(sourceTable, targetTable *snapshot.TableInfo) []Difference {
	var diffs []Difference

	for _, name := range targetTable.ColumnNames() {
		if sourceTable.Column(name) == nil {
			diffs = append(diffs, Difference{
				Type:     DiffColumnAdded,
				Table:    targetTable.Name,
				Column:   name,
				DataType: targetTable.Column(name).DataType,
			})
		}
	}
	for _, name := range sourceTable.ColumnNames() {
		if targetTable.Column(name) == nil {
			diffs = append(diffs, Difference{
				Type:     DiffColumnRemoved,
				Table:    sourceTable.Name,
				Column:   name,
				DataType: sourceTable.Column(name).DataType,
			})
		}
	}
	for _, name := range sourceTable.ColumnNames() {
		sourceCol := sourceTable.Column(name)
		targetCol := targetTable.Column(name)
		if targetCol == nil {
			continue
		}
		if sourceCol.DataType != targetCol.DataType {
			diffs = append(diffs, Difference{
				Type:    DiffColumnTypeChanged,
				Table:   sourceTable.Name,
				Column:  name,
				OldType: sourceCol.DataType,
				NewType: targetCol.DataType,
			})
		}
	}

	return diffs
}
