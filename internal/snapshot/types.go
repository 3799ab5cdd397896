// Package snapshot models the structural state of one PostgreSQL schema
// and builds it from the catalog.
package snapshot

import "sort"

// SchemaSnapshot represents the full structural state of one schema at one
// point in time. It is built atomically by the Builder and never mutated
// afterwards.
type SchemaSnapshot struct {
	SchemaName string                `json:"schema_name"`
	Tables     map[string]*TableInfo `json:"tables"` // table_name -> TableInfo
	Views      map[string]*ViewInfo  `json:"views"`  // view_name -> ViewInfo
}

// NewSchemaSnapshot creates an empty snapshot for the named schema.
func NewSchemaSnapshot(schemaName string) *SchemaSnapshot {
	return &SchemaSnapshot{
		SchemaName: schemaName,
		Tables:     make(map[string]*TableInfo),
		Views:      make(map[string]*ViewInfo),
	}
}

// SortedTableNames returns table names sorted alphabetically.
func (s *SchemaSnapshot) SortedTableNames() []string {
	return sortedKeys(s.Tables)
}

// SortedViewNames returns view names sorted alphabetically.
func (s *SchemaSnapshot) SortedViewNames() []string {
	return sortedKeys(s.Views)
}

// TableInfo represents a database table. Columns keep the ordinal position
// order reported by the catalog; diffing identifies columns by name.
type TableInfo struct {
	Name        string                     `json:"name"`
	TableType   string                     `json:"table_type"` // e.g. "BASE TABLE"
	Columns     []*ColumnInfo              `json:"columns"`
	Constraints map[string]*ConstraintInfo `json:"constraints"` // constraint_name -> ConstraintInfo
	Indexes     map[string]*IndexInfo      `json:"indexes"`     // index_name -> IndexInfo
}

// Column returns the named column, or nil when absent.
func (t *TableInfo) Column(name string) *ColumnInfo {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ColumnNames returns the column names sorted alphabetically.
func (t *TableInfo) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// ColumnInfo represents a table column. DataType is the canonical type
// name string as reported by the catalog. No aliasing is performed, so
// "character varying" is never rewritten as "varchar".
type ColumnInfo struct {
	Name         string  `json:"name"`
	Position     int     `json:"position"` // ordinal_position
	DataType     string  `json:"data_type"`
	IsNullable   bool    `json:"is_nullable"`
	DefaultValue *string `json:"default_value,omitempty"`
}

// ViewInfo represents a database view.
type ViewInfo struct {
	Name       string   `json:"name"`
	Definition string   `json:"definition,omitempty"`
	Columns    []string `json:"columns"`
}

// ConstraintInfo represents a table constraint.
type ConstraintInfo struct {
	Name            string   `json:"name"`
	Type            string   `json:"type"` // PRIMARY KEY, FOREIGN KEY, UNIQUE, CHECK
	Columns         []string `json:"columns"`
	ReferencedTable string   `json:"referenced_table,omitempty"`
	CheckClause     string   `json:"check_clause,omitempty"`
}

// IndexInfo represents a database index.
type IndexInfo struct {
	Name     string   `json:"name"`
	Method   string   `json:"method"` // btree, hash, gin, gist, ...
	Columns  []string `json:"columns"`
	IsUnique bool     `json:"is_unique"`
}

// sortedKeys returns sorted keys from a map[string]T.
func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
