package db

import (
	"path/filepath"
	"testing"
)

func TestOpenAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	database, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer database.Close()

	applied, err := database.MigrateWithInfo()
	if err != nil {
		t.Fatalf("MigrateWithInfo failed: %v", err)
	}
	if len(applied) == 0 {
		t.Error("expected at least one migration applied")
	}

	// Second migrate is a no-op.
	applied, err = database.MigrateWithInfo()
	if err != nil {
		t.Fatalf("second MigrateWithInfo failed: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected no migrations on second run, got %v", applied)
	}

	// The schema should be usable.
	if _, err := database.Exec("INSERT INTO files (path, size_bytes) VALUES ('/x', 1)"); err != nil {
		t.Fatalf("insert into files failed: %v", err)
	}
	if _, err := database.Exec("INSERT INTO event_log (event_type) VALUES ('test')"); err != nil {
		t.Fatalf("insert into event_log failed: %v", err)
	}
}

func TestMigrationStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	database, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer database.Close()

	applied, pending, err := database.MigrationStatus()
	if err != nil {
		t.Fatalf("MigrationStatus failed: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected no applied migrations, got %v", applied)
	}
	if len(pending) == 0 {
		t.Error("expected pending migrations on fresh catalog")
	}

	if err := database.RequiresMigrationError(); err == nil {
		t.Error("expected RequiresMigrationError on fresh catalog")
	}

	if err := database.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if err := database.RequiresMigrationError(); err != nil {
		t.Errorf("expected no error after migrate, got %v", err)
	}
}

func TestOpenReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	database, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := database.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	database.Close()

	ro, err := OpenReadOnly(path)
	if err != nil {
		t.Fatalf("OpenReadOnly failed: %v", err)
	}
	defer ro.Close()

	var count int
	if err := ro.QueryRow("SELECT COUNT(*) FROM files").Scan(&count); err != nil {
		t.Fatalf("read over read-only connection failed: %v", err)
	}

	if _, err := ro.Exec("INSERT INTO files (path) VALUES ('/nope')"); err == nil {
		t.Error("expected write over read-only connection to fail")
	}
}

func TestOpenReadOnlyMissing(t *testing.T) {
	if _, err := OpenReadOnly(filepath.Join(t.TempDir(), "missing.db")); err == nil {
		t.Error("expected error for missing catalog")
	}
}
