package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/siteinventory/internal/core"
	"github.com/JonMunkholm/siteinventory/internal/store/storetest"
)

// testStore connects to TEST_DATABASE_URL and empties both tables.
func testStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, url, PoolOptions{MaxConns: 4})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.pool.Exec(ctx, "TRUNCATE devices, sites RESTART IDENTITY"); err != nil {
		s.Close()
		t.Fatalf("truncate: %v", err)
	}
	return s
}

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) core.Store { return testStore(t) })
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   core.ConstraintKind
		wantName   string
		passThrough bool
	}{
		{
			name:     "unique",
			err:      &pgconn.PgError{Code: "23505", ConstraintName: "sites_site_id_key"},
			wantKind: core.ConstraintUnique,
			wantName: "sites_site_id_key",
		},
		{
			name:     "foreign key",
			err:      &pgconn.PgError{Code: "23503", ConstraintName: "devices_site_id_fkey"},
			wantKind: core.ConstraintForeignKey,
			wantName: "devices_site_id_fkey",
		},
		{
			name:     "check",
			err:      &pgconn.PgError{Code: "23514", ConstraintName: "sites_latitude_check"},
			wantKind: core.ConstraintCheck,
			wantName: "sites_latitude_check",
		},
		{name: "other pg error", err: &pgconn.PgError{Code: "42P01"}, passThrough: true},
		{name: "plain error", err: errors.New("boom"), passThrough: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err)
			var cv *core.ConstraintViolation
			if tt.passThrough {
				if errors.As(got, &cv) {
					t.Fatalf("mapError(%v) = %v, want passthrough", tt.err, got)
				}
				return
			}
			if !errors.As(got, &cv) {
				t.Fatalf("mapError(%v) = %v, want ConstraintViolation", tt.err, got)
			}
			if cv.Kind != tt.wantKind || cv.Constraint != tt.wantName {
				t.Errorf("got kind=%v constraint=%q, want kind=%v constraint=%q", cv.Kind, cv.Constraint, tt.wantKind, tt.wantName)
			}
		})
	}
}
