// Package testutil provides shared test helpers for content hosts and
// comment stores.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/starford/quill/internal/docstore"
)

// TestStore opens a SQLite comment store in a temp dir that is closed when
// the test ends.
func TestStore(t *testing.T) *docstore.SQLite {
	t.Helper()
	db, err := docstore.OpenSQLite(filepath.Join(t.TempDir(), "quill-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
