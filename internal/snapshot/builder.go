package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/lib/pq"

	"github.com/pgsd/pgsd/internal/pgsderr"
	"github.com/pgsd/pgsd/internal/retry"
)

// Builder builds schema snapshots from catalog queries. Every query runs
// under the retry manager; raw driver errors are classified into the
// taxonomy before any retry decision is made.
type Builder struct {
	db     *sql.DB
	conn   pgsderr.ConnInfo
	retry  *retry.Manager
	logger *slog.Logger
}

// NewBuilder creates a snapshot builder over an established connection.
func NewBuilder(db *sql.DB, conn pgsderr.ConnInfo, retryManager *retry.Manager, logger *slog.Logger) *Builder {
	return &Builder{
		db:     db,
		conn:   conn,
		retry:  retryManager,
		logger: logger,
	}
}

// Snapshot builds the complete structural state of the named schema. The
// snapshot is returned fully populated or not at all.
func (b *Builder) Snapshot(ctx context.Context, schemaName string) (*SchemaSnapshot, error) {
	if err := b.checkSchemaExists(ctx, schemaName); err != nil {
		return nil, err
	}

	snap := NewSchemaSnapshot(schemaName)

	if err := b.buildTables(ctx, snap); err != nil {
		return nil, withOperation(err, "build tables", schemaName)
	}
	if err := b.buildViews(ctx, snap); err != nil {
		return nil, withOperation(err, "build views", schemaName)
	}
	if err := b.buildColumns(ctx, snap); err != nil {
		return nil, withOperation(err, "build columns", schemaName)
	}
	if err := b.buildConstraints(ctx, snap); err != nil {
		return nil, withOperation(err, "build constraints", schemaName)
	}
	if err := b.buildIndexes(ctx, snap); err != nil {
		return nil, withOperation(err, "build indexes", schemaName)
	}

	b.logger.Debug("schema snapshot built",
		"schema", schemaName,
		"tables", len(snap.Tables),
		"views", len(snap.Views),
	)
	return snap, nil
}

// withOperation adds unwinding context without dropping earlier keys.
func withOperation(err error, operation, schemaName string) error {
	var pgsdErr *pgsderr.Error
	if errors.As(err, &pgsdErr) {
		pgsdErr.AddContext("operation", operation)
		pgsdErr.AddContext("schema", schemaName)
	}
	return err
}

// queryRows runs one catalog query under the retry policy and returns the
// scanned rows. Each attempt collects into its own slice, so a failure
// mid-iteration discards the partial rows and the next attempt starts
// clean. Callers commit the returned rows to the snapshot only after the
// query as a whole has succeeded.
func queryRows[T any](ctx context.Context, b *Builder, queryText string, args []any, scanRow func(rows *sql.Rows) (T, error)) ([]T, error) {
	return retry.DoValue(ctx, b.retry, func(ctx context.Context) ([]T, error) {
		rows, err := b.db.QueryContext(ctx, queryText, args...)
		if err != nil {
			return nil, pgsderr.Classify(err, b.conn, queryText)
		}
		defer rows.Close()

		var collected []T
		for rows.Next() {
			item, err := scanRow(rows)
			if err != nil {
				return nil, pgsderr.Classify(err, b.conn, queryText)
			}
			collected = append(collected, item)
		}
		if err := rows.Err(); err != nil {
			return nil, pgsderr.Classify(err, b.conn, queryText)
		}
		return collected, nil
	})
}

const schemasQuery = `
SELECT schema_name
FROM information_schema.schemata
WHERE schema_name NOT IN ('information_schema')
  AND schema_name NOT LIKE 'pg\_%'
ORDER BY schema_name`

func (b *Builder) checkSchemaExists(ctx context.Context, schemaName string) error {
	available, err := queryRows(ctx, b, schemasQuery, nil, func(rows *sql.Rows) (string, error) {
		var name string
		err := rows.Scan(&name)
		return name, err
	})
	if err != nil {
		return err
	}

	for _, name := range available {
		if name == schemaName {
			return nil
		}
	}
	return pgsderr.NewSchemaNotFoundError(schemaName, b.conn.Database, available)
}

const tablesQuery = `
SELECT table_name, table_type
FROM information_schema.tables
WHERE table_schema = $1
  AND table_type = 'BASE TABLE'
ORDER BY table_name`

type tableRow struct {
	name      string
	tableType string
}

func (b *Builder) buildTables(ctx context.Context, snap *SchemaSnapshot) error {
	tables, err := queryRows(ctx, b, tablesQuery, []any{snap.SchemaName}, func(rows *sql.Rows) (tableRow, error) {
		var r tableRow
		err := rows.Scan(&r.name, &r.tableType)
		return r, err
	})
	if err != nil {
		return err
	}

	for _, r := range tables {
		snap.Tables[r.name] = &TableInfo{
			Name:        r.name,
			TableType:   r.tableType,
			Constraints: make(map[string]*ConstraintInfo),
			Indexes:     make(map[string]*IndexInfo),
		}
	}
	return nil
}

const viewsQuery = `
SELECT table_name
FROM information_schema.views
WHERE table_schema = $1
ORDER BY table_name`

func (b *Builder) buildViews(ctx context.Context, snap *SchemaSnapshot) error {
	names, err := queryRows(ctx, b, viewsQuery, []any{snap.SchemaName}, func(rows *sql.Rows) (string, error) {
		var name string
		err := rows.Scan(&name)
		return name, err
	})
	if err != nil {
		return err
	}

	for _, name := range names {
		snap.Views[name] = &ViewInfo{Name: name}
	}
	for _, name := range names {
		definition, err := b.viewDefinition(ctx, snap.SchemaName, name)
		if err != nil {
			return err
		}
		snap.Views[name].Definition = definition
	}
	return nil
}

const viewDefinitionQuery = `SELECT pg_get_viewdef($1::regclass, true)`

func (b *Builder) viewDefinition(ctx context.Context, schemaName, viewName string) (string, error) {
	// regclass resolution needs a quoted qualified name, not a bind-safe
	// identifier pair.
	qualified := pq.QuoteIdentifier(schemaName) + "." + pq.QuoteIdentifier(viewName)
	var definition string
	err := b.retry.Do(ctx, func(ctx context.Context) error {
		if err := b.db.QueryRowContext(ctx, viewDefinitionQuery, qualified).Scan(&definition); err != nil {
			return pgsderr.Classify(err, b.conn, viewDefinitionQuery)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(definition), nil
}

const columnsQuery = `
SELECT table_name, column_name, ordinal_position, data_type, is_nullable, column_default
FROM information_schema.columns
WHERE table_schema = $1
ORDER BY table_name, ordinal_position`

type columnRow struct {
	tableName string
	column    ColumnInfo
}

func (b *Builder) buildColumns(ctx context.Context, snap *SchemaSnapshot) error {
	columns, err := queryRows(ctx, b, columnsQuery, []any{snap.SchemaName}, func(rows *sql.Rows) (columnRow, error) {
		var r columnRow
		var isNullable string
		var defaultValue sql.NullString
		if err := rows.Scan(&r.tableName, &r.column.Name, &r.column.Position, &r.column.DataType, &isNullable, &defaultValue); err != nil {
			return r, err
		}
		r.column.IsNullable = isNullable == "YES"
		if defaultValue.Valid {
			value := defaultValue.String
			r.column.DefaultValue = &value
		}
		return r, nil
	})
	if err != nil {
		return err
	}

	// information_schema.columns covers base tables and views alike;
	// route each row to whichever object owns it.
	for _, r := range columns {
		column := r.column
		if table, ok := snap.Tables[r.tableName]; ok {
			table.Columns = append(table.Columns, &column)
		} else if view, ok := snap.Views[r.tableName]; ok {
			view.Columns = append(view.Columns, column.Name)
		}
	}
	return nil
}

const constraintsQuery = `
SELECT rel.relname AS table_name,
       con.conname AS constraint_name,
       CASE con.contype
            WHEN 'p' THEN 'PRIMARY KEY'
            WHEN 'f' THEN 'FOREIGN KEY'
            WHEN 'u' THEN 'UNIQUE'
            WHEN 'c' THEN 'CHECK'
            ELSE upper(con.contype::text)
       END AS constraint_type,
       COALESCE(frel.relname, '') AS referenced_table,
       CASE WHEN con.contype = 'c' THEN pg_get_constraintdef(con.oid) ELSE '' END AS check_clause,
       COALESCE((SELECT string_agg(att.attname, ',' ORDER BY k.ord)
                 FROM unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord)
                 JOIN pg_attribute att
                   ON att.attrelid = con.conrelid AND att.attnum = k.attnum), '') AS columns
FROM pg_constraint con
JOIN pg_class rel ON rel.oid = con.conrelid
JOIN pg_namespace nsp ON nsp.oid = rel.relnamespace
LEFT JOIN pg_class frel ON frel.oid = con.confrelid
WHERE nsp.nspname = $1
ORDER BY rel.relname, con.conname`

type constraintRow struct {
	tableName       string
	name            string
	constraintType  string
	referencedTable string
	checkClause     string
	columns         string
}

func (b *Builder) buildConstraints(ctx context.Context, snap *SchemaSnapshot) error {
	constraints, err := queryRows(ctx, b, constraintsQuery, []any{snap.SchemaName}, func(rows *sql.Rows) (constraintRow, error) {
		var r constraintRow
		err := rows.Scan(&r.tableName, &r.name, &r.constraintType, &r.referencedTable, &r.checkClause, &r.columns)
		return r, err
	})
	if err != nil {
		return err
	}

	for _, r := range constraints {
		table, ok := snap.Tables[r.tableName]
		if !ok {
			continue
		}
		table.Constraints[r.name] = &ConstraintInfo{
			Name:            r.name,
			Type:            r.constraintType,
			Columns:         splitColumns(r.columns),
			ReferencedTable: r.referencedTable,
			CheckClause:     r.checkClause,
		}
	}
	return nil
}

const indexesQuery = `
SELECT rel.relname AS table_name,
       cls.relname AS index_name,
       am.amname AS method,
       idx.indisunique,
       COALESCE((SELECT string_agg(att.attname, ',' ORDER BY k.ord)
                 FROM unnest(idx.indkey) WITH ORDINALITY AS k(attnum, ord)
                 JOIN pg_attribute att
                   ON att.attrelid = idx.indrelid AND att.attnum = k.attnum
                 WHERE k.attnum > 0), '') AS columns
FROM pg_index idx
JOIN pg_class cls ON cls.oid = idx.indexrelid
JOIN pg_class rel ON rel.oid = idx.indrelid
JOIN pg_namespace nsp ON nsp.oid = rel.relnamespace
JOIN pg_am am ON am.oid = cls.relam
WHERE nsp.nspname = $1
ORDER BY rel.relname, cls.relname`

type indexRow struct {
	tableName string
	name      string
	method    string
	isUnique  bool
	columns   string
}

func (b *Builder) buildIndexes(ctx context.Context, snap *SchemaSnapshot) error {
	indexes, err := queryRows(ctx, b, indexesQuery, []any{snap.SchemaName}, func(rows *sql.Rows) (indexRow, error) {
		var r indexRow
		err := rows.Scan(&r.tableName, &r.name, &r.method, &r.isUnique, &r.columns)
		return r, err
	})
	if err != nil {
		return err
	}

	for _, r := range indexes {
		table, ok := snap.Tables[r.tableName]
		if !ok {
			continue
		}
		table.Indexes[r.name] = &IndexInfo{
			Name:     r.name,
			Method:   r.method,
			Columns:  splitColumns(r.columns),
			IsUnique: r.isUnique,
		}
	}
	return nil
}

func splitColumns(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}
