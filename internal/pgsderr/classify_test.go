package pgsderr

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassifySQLStates(t *testing.T) {
	conn := ConnInfo{Host: "db1", Port: 5432, Database: "appdb", User: "alice"}

	tests := []struct {
		name     string
		code     string
		category Category
	}{
		{"auth failure", "28P01", CategoryConnection},
		{"unknown database", "3D000", CategoryConnection},
		{"connection exception", "08006", CategoryConnection},
		{"invalid schema name", "3F000", CategorySchema},
		{"insufficient privilege", "42501", CategoryPrivilege},
		{"statement canceled", "57014", CategoryQuery},
		{"lock not available", "55P03", CategoryQuery},
		{"deadlock detected", "40P01", CategoryQuery},
		{"syntax error", "42601", CategoryQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pgErr := &pgconn.PgError{Code: tt.code, Message: tt.name}
			classified := Classify(pgErr, conn, "SELECT 1")
			if classified.Category != tt.category {
				t.Errorf("Classify(%s) category = %s; want %s", tt.code, classified.Category, tt.category)
			}
			if !errors.Is(classified, pgErr) {
				t.Error("original cause not preserved")
			}
		})
	}
}

func TestClassifyPassesThroughTaxonomyErrors(t *testing.T) {
	original := NewSchemaNotFoundError("s1", "appdb", nil)
	classified := Classify(original, ConnInfo{}, "")
	if classified != original {
		t.Error("taxonomy error was re-wrapped")
	}
}

func TestClassifyContextErrors(t *testing.T) {
	conn := ConnInfo{Host: "db1", Port: 5432, Database: "appdb"}
	for _, cause := range []error{context.DeadlineExceeded, context.Canceled} {
		classified := Classify(cause, conn, "")
		if classified.Category != CategoryConnection {
			t.Errorf("Classify(%v) category = %s; want connection", cause, classified.Category)
		}
	}
}

func TestClassifyUnknownError(t *testing.T) {
	classified := Classify(errors.New("mystery"), ConnInfo{}, "")
	if classified.Category != CategoryDatabase {
		t.Errorf("category = %s; want database", classified.Category)
	}
	if classified.ExitCode() != ExitDatabase {
		t.Errorf("ExitCode() = %d; want %d", classified.ExitCode(), ExitDatabase)
	}
}

func TestClassifyNil(t *testing.T) {
	if classified := Classify(nil, ConnInfo{}, ""); classified != nil {
		t.Errorf("Classify(nil) = %v; want nil", classified)
	}
}
