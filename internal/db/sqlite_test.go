package db

import (
	"path/filepath"
	"testing"
)

func TestStoreMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	st, err := openStore(path)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	defer st.close()

	steps := []string{
		`CREATE TABLE things (id INTEGER PRIMARY KEY, name TEXT)`,
		`ALTER TABLE things ADD COLUMN size INTEGER DEFAULT 0`,
	}
	if v, err := st.migrate(steps[:1]); err != nil || v != 1 {
		t.Fatalf("migrate(1 step) = %d, %v, want 1, nil", v, err)
	}
	if v, err := st.migrate(steps); err != nil || v != 2 {
		t.Fatalf("migrate(2 steps) = %d, %v, want 2, nil", v, err)
	}
	// Already applied steps are not run again.
	if v, err := st.migrate(steps); err != nil || v != 2 {
		t.Fatalf("re-migrate = %d, %v, want 2, nil", v, err)
	}
	if _, err := st.exec("INSERT INTO things (name, size) VALUES (?, ?)", "a", 3); err != nil {
		t.Errorf("insert after migration: %v", err)
	}

	if _, err := st.migrate(steps[:1]); err == nil {
		t.Error("an older schema list should be rejected")
	}
}

func TestStoreMigrateFailureKeepsVersion(t *testing.T) {
	st, err := openStore(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	defer st.close()

	steps := []string{
		`CREATE TABLE things (id INTEGER PRIMARY KEY)`,
		`NOT SQL AT ALL`,
	}
	if v, err := st.migrate(steps); err == nil || v != 1 {
		t.Errorf("migrate = %d, %v, want 1 and an error", v, err)
	}

	var version int
	if err := st.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatal(err)
	}
	if version != 1 {
		t.Errorf("user_version = %d, want 1", version)
	}
}
