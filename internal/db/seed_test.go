package db

import (
	"context"
	"testing"
)

func TestSeedItemsOnlyOnce(t *testing.T) {
	database, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()

	if err := EnsureSchema(database); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	n, err := SeedItems(ctx, database)
	if err != nil {
		t.Fatalf("SeedItems: %v", err)
	}
	if n != len(DefaultItems) {
		t.Errorf("expected %d seeded items, got %d", len(DefaultItems), n)
	}

	n, err = SeedItems(ctx, database)
	if err != nil {
		t.Fatalf("second SeedItems: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no items on second seed, got %d", n)
	}

	var count int
	database.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&count)
	if count != len(DefaultItems) {
		t.Errorf("expected %d items in table, got %d", len(DefaultItems), count)
	}
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	database := NewTestDB(t)
	if err := EnsureSchema(database); err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}
}
