// Package testutil provides test utilities for the residio project.
// It offers an in-memory database with seeding helpers and proper test
// isolation.
package testutil

import (
	"context"
	"testing"

	"github.com/residio-ng/residio/internal/model"
	"github.com/residio-ng/residio/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database with migrations
// applied. Cleanup is registered automatically.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// SeedResidents inserts the given residents, failing the test on error.
func (db *TestDB) SeedResidents(ctx context.Context, residents ...model.Resident) {
	db.t.Helper()
	for i := range residents {
		if err := db.Storage.SaveResident(ctx, &residents[i]); err != nil {
			db.t.Fatalf("failed to seed resident %q: %v", residents[i].FullName, err)
		}
	}
}

// SeedCategories inserts the given expense categories, failing the test on
// error.
func (db *TestDB) SeedCategories(ctx context.Context, categories ...model.ExpenseCategory) {
	db.t.Helper()
	for _, cat := range categories {
		if err := db.Storage.SaveExpenseCategory(ctx, cat); err != nil {
			db.t.Fatalf("failed to seed category %q: %v", cat.Name, err)
		}
	}
}
