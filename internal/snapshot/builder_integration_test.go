package snapshot_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/pgsd/pgsd/internal/compare"
	"github.com/pgsd/pgsd/internal/pgsderr"
	"github.com/pgsd/pgsd/internal/retry"
	"github.com/pgsd/pgsd/internal/snapshot"
	"github.com/pgsd/pgsd/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBuilder(t *testing.T, container *testutil.ContainerInfo) *snapshot.Builder {
	t.Helper()
	manager, err := retry.New(retry.DefaultPolicy())
	if err != nil {
		t.Fatalf("Failed to create retry manager: %v", err)
	}
	conn := pgsderr.ConnInfo{Host: container.Host, Port: container.Port, Database: "testdb", User: "testuser"}
	return snapshot.NewBuilder(container.Conn, conn, manager, testLogger())
}

func TestSnapshotBuilder(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	container := testutil.SetupPostgresContainer(ctx, t)
	defer container.Terminate(ctx, t)

	container.MustExec(ctx, t, `
		CREATE TABLE users (
			id serial PRIMARY KEY,
			name text NOT NULL,
			email character varying(255),
			created_at timestamptz DEFAULT now()
		);
		CREATE TABLE posts (
			id serial PRIMARY KEY,
			user_id integer NOT NULL REFERENCES users(id),
			title text,
			CONSTRAINT title_not_empty CHECK (title <> '')
		);
		CREATE INDEX idx_posts_user_id ON posts (user_id);
		CREATE VIEW recent_posts AS
			SELECT id, title FROM posts ORDER BY id DESC LIMIT 10;
	`)

	builder := testBuilder(t, container)
	snap, err := builder.Snapshot(ctx, "public")
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}

	if snap.SchemaName != "public" {
		t.Errorf("schema name = %s", snap.SchemaName)
	}
	if len(snap.Tables) != 2 {
		t.Fatalf("tables = %v; want users and posts", snap.SortedTableNames())
	}

	users := snap.Tables["users"]
	if users == nil {
		t.Fatal("users table missing")
	}
	if users.TableType != "BASE TABLE" {
		t.Errorf("users table type = %s", users.TableType)
	}
	if len(users.Columns) != 4 {
		t.Fatalf("users columns = %d; want 4", len(users.Columns))
	}
	// Catalog order is ordinal order.
	if users.Columns[0].Name != "id" || users.Columns[1].Name != "name" {
		t.Errorf("column order = %s, %s", users.Columns[0].Name, users.Columns[1].Name)
	}
	email := users.Column("email")
	if email == nil {
		t.Fatal("email column missing")
	}
	// The catalog phrasing is preserved verbatim, never aliased.
	if email.DataType != "character varying" {
		t.Errorf("email data type = %q; want \"character varying\"", email.DataType)
	}
	if !email.IsNullable {
		t.Error("email should be nullable")
	}
	name := users.Column("name")
	if name == nil || name.IsNullable {
		t.Error("name should be NOT NULL")
	}
	createdAt := users.Column("created_at")
	if createdAt == nil || createdAt.DefaultValue == nil {
		t.Error("created_at default missing")
	}

	posts := snap.Tables["posts"]
	if posts == nil {
		t.Fatal("posts table missing")
	}
	var foundFK, foundCheck bool
	for _, constraint := range posts.Constraints {
		switch constraint.Type {
		case "FOREIGN KEY":
			foundFK = true
			if constraint.ReferencedTable != "users" {
				t.Errorf("FK references %s; want users", constraint.ReferencedTable)
			}
		case "CHECK":
			foundCheck = true
		}
	}
	if !foundFK || !foundCheck {
		t.Errorf("constraints incomplete: fk=%v check=%v", foundFK, foundCheck)
	}
	index := posts.Indexes["idx_posts_user_id"]
	if index == nil {
		t.Fatal("idx_posts_user_id missing")
	}
	if index.Method != "btree" || index.IsUnique {
		t.Errorf("index = %+v", index)
	}

	view := snap.Views["recent_posts"]
	if view == nil {
		t.Fatal("recent_posts view missing")
	}
	if view.Definition == "" {
		t.Error("view definition empty")
	}
	if len(view.Columns) != 2 {
		t.Errorf("view columns = %v", view.Columns)
	}
}

func TestSnapshotSchemaNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	container := testutil.SetupPostgresContainer(ctx, t)
	defer container.Terminate(ctx, t)

	builder := testBuilder(t, container)
	_, err := builder.Snapshot(ctx, "does_not_exist")
	if err == nil {
		t.Fatal("Snapshot() accepted a missing schema")
	}

	pgsdErr, ok := err.(*pgsderr.Error)
	if !ok {
		t.Fatalf("error is %T; want *pgsderr.Error", err)
	}
	if pgsdErr.ExitCode() != pgsderr.ExitSchemaNotFound {
		t.Errorf("ExitCode() = %d; want %d", pgsdErr.ExitCode(), pgsderr.ExitSchemaNotFound)
	}
	available, _ := pgsdErr.TechnicalDetails["available_schemas"].([]string)
	foundPublic := false
	for _, name := range available {
		if name == "public" {
			foundPublic = true
		}
	}
	if !foundPublic {
		t.Errorf("available schemas = %v; want public listed", available)
	}
}

func TestSnapshotCompareEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	container := testutil.SetupPostgresContainer(ctx, t)
	defer container.Terminate(ctx, t)

	container.MustExec(ctx, t, `
		CREATE SCHEMA source_side;
		CREATE SCHEMA target_side;
		CREATE TABLE source_side.users (id integer, name text);
		CREATE TABLE source_side.products (id integer, price numeric);
		CREATE TABLE target_side.users (id integer, name text, email text);
		CREATE TABLE target_side.products (id integer, price integer);
		CREATE TABLE target_side.posts (id integer, title text);
	`)

	builder := testBuilder(t, container)
	sourceSnap, err := builder.Snapshot(ctx, "source_side")
	if err != nil {
		t.Fatalf("source Snapshot() failed: %v", err)
	}
	targetSnap, err := builder.Snapshot(ctx, "target_side")
	if err != nil {
		t.Fatalf("target Snapshot() failed: %v", err)
	}

	result := compare.Compare(sourceSnap, targetSnap)

	counts := result.CountByType()
	if counts[compare.DiffTableAdded] != 1 {
		t.Errorf("table added = %d; want 1 (posts)", counts[compare.DiffTableAdded])
	}
	if counts[compare.DiffColumnAdded] != 1 {
		t.Errorf("column added = %d; want 1 (users.email)", counts[compare.DiffColumnAdded])
	}
	if counts[compare.DiffColumnTypeChanged] != 1 {
		t.Errorf("type changed = %d; want 1 (products.price)", counts[compare.DiffColumnTypeChanged])
	}
	if counts[compare.DiffTableRemoved] != 0 {
		t.Errorf("table removed = %d; want 0", counts[compare.DiffTableRemoved])
	}
}
