// Package testutil holds helpers shared by repository tests.
package testutil

import (
	"context"
	"testing"

	"github.com/nerrad567/lpwan-core/internal/infrastructure/database"
	_ "github.com/nerrad567/lpwan-core/migrations" // registers the embedded schema
)

// OpenDB returns an in-memory database with every migration applied.
// The database is closed when the test finishes.
func OpenDB(t testing.TB) *database.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // Test cleanup
	})

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}
