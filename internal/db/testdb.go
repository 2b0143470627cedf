package db

import (
	"context"
	"database/sql"
	"testing"
)

// NewTestDB creates a fresh in-memory SQLite database with the schema applied
// and the default items seeded.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	if err := EnsureSchema(db); err != nil {
		db.Close()
		t.Fatalf("creating test database schema: %v", err)
	}

	if _, err := SeedItems(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("seeding test database: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	return db
}
