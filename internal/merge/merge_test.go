package merge

import (
	"database/sql"
	"errors"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/abhe/dedup/internal/db"
	"github.com/abhe/dedup/internal/domain"
)

// setupCatalog creates a migrated catalog in a temp dir.
func setupCatalog(t *testing.T, name string) *db.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	database, err := db.Open(path)
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}
	if err := database.Migrate(); err != nil {
		t.Fatalf("failed to migrate catalog: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

type row struct {
	path      string
	sizeBytes *int64
	optimized *int64
}

func i64(v int64) *int64 { return &v }

func insertRows(t *testing.T, database *db.DB, rows []row) {
	t.Helper()
	for _, r := range rows {
		var size, opt any
		if r.sizeBytes != nil {
			size = *r.sizeBytes
		}
		if r.optimized != nil {
			opt = *r.optimized
		}
		if _, err := database.Exec(
			"INSERT INTO files (path, size_bytes, optimized) VALUES (?, ?, ?)",
			r.path, size, opt,
		); err != nil {
			t.Fatalf("failed to insert %s: %v", r.path, err)
		}
	}
}

func readRow(t *testing.T, database *db.DB, path string) row {
	t.Helper()
	var size, opt sql.NullInt64
	err := database.QueryRow(
		"SELECT size_bytes, optimized FROM files WHERE path = ?", path,
	).Scan(&size, &opt)
	if err != nil {
		t.Fatalf("failed to read row %s: %v", path, err)
	}
	r := row{path: path}
	if size.Valid {
		r.sizeBytes = &size.Int64
	}
	if opt.Valid {
		r.optimized = &opt.Int64
	}
	return r
}

func assertRow(t *testing.T, database *db.DB, path string, wantSize, wantOpt *int64) {
	t.Helper()
	got := readRow(t, database, path)
	if !eq(got.sizeBytes, wantSize) {
		t.Errorf("%s: size_bytes = %s, want %s", path, fmtPtr(got.sizeBytes), fmtPtr(wantSize))
	}
	if !eq(got.optimized, wantOpt) {
		t.Errorf("%s: optimized = %s, want %s", path, fmtPtr(got.optimized), fmtPtr(wantOpt))
	}
}

func eq(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func fmtPtr(v *int64) string {
	if v == nil {
		return "NULL"
	}
	return strconv.FormatInt(*v, 10)
}

func countRows(t *testing.T, database *db.DB) int64 {
	t.Helper()
	var count int64
	if err := database.QueryRow("SELECT COUNT(*) FROM files").Scan(&count); err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return count
}

func TestMergeScenarios(t *testing.T) {
	// Scenarios from the merge contract: smaller size wins only when both
	// sides are measured; the primary's optimized determination sticks.
	primary := setupCatalog(t, "primary.db")
	source := setupCatalog(t, "source.db")

	insertRows(t, primary, []row{
		{path: "a.txt", sizeBytes: i64(100), optimized: nil},
		{path: "b.txt", sizeBytes: nil, optimized: i64(0)},
		{path: "c.txt", sizeBytes: i64(10), optimized: nil},
	})
	insertRows(t, source, []row{
		{path: "a.txt", sizeBytes: i64(50), optimized: i64(1)},
		{path: "b.txt", sizeBytes: i64(30), optimized: i64(1)},
	})

	stats, err := Merge(primary, source.Path(), DefaultRules())
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if stats.RowsMatched != 2 {
		t.Errorf("RowsMatched = %d, want 2", stats.RowsMatched)
	}

	// Scenario A: both sides measured, source smaller; primary adopts
	// the source's optimized flag because its own was unset.
	assertRow(t, primary, "a.txt", i64(50), i64(1))

	// Scenario B: primary size unmeasured poisons the minimum to NULL;
	// optimized stays false because the primary had recorded one.
	assertRow(t, primary, "b.txt", nil, i64(0))

	// Scenario C: no source row, untouched.
	assertRow(t, primary, "c.txt", i64(10), nil)
}

func TestMergeNullPropagation(t *testing.T) {
	primary := setupCatalog(t, "primary.db")
	source := setupCatalog(t, "source.db")

	insertRows(t, primary, []row{
		{path: "x.txt", sizeBytes: i64(40), optimized: nil},
	})
	insertRows(t, source, []row{
		{path: "x.txt", sizeBytes: nil, optimized: nil},
	})

	if _, err := Merge(primary, source.Path(), DefaultRules()); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	// The source's unmeasured size wipes the primary's measurement; this
	// is the null-propagating minimum, not a null-skipping one.
	assertRow(t, primary, "x.txt", nil, nil)
}

func TestMergeDoesNotInsertOrDelete(t *testing.T) {
	primary := setupCatalog(t, "primary.db")
	source := setupCatalog(t, "source.db")

	insertRows(t, primary, []row{
		{path: "kept.txt", sizeBytes: i64(1)},
	})
	insertRows(t, source, []row{
		{path: "kept.txt", sizeBytes: i64(1)},
		{path: "source-only.txt", sizeBytes: i64(2)},
	})

	before := countRows(t, primary)
	if _, err := Merge(primary, source.Path(), DefaultRules()); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if after := countRows(t, primary); after != before {
		t.Errorf("primary row count changed: %d -> %d", before, after)
	}

	var n int64
	primary.QueryRow("SELECT COUNT(*) FROM files WHERE path = 'source-only.txt'").Scan(&n)
	if n != 0 {
		t.Error("source-only row was inserted into primary")
	}
}

func TestMergeLeavesSourceUnchanged(t *testing.T) {
	primary := setupCatalog(t, "primary.db")
	source := setupCatalog(t, "source.db")

	insertRows(t, primary, []row{
		{path: "a.txt", sizeBytes: i64(10), optimized: i64(1)},
	})
	insertRows(t, source, []row{
		{path: "a.txt", sizeBytes: i64(99), optimized: nil},
	})

	if _, err := Merge(primary, source.Path(), DefaultRules()); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	assertRow(t, source, "a.txt", i64(99), nil)
	if n := countRows(t, source); n != 1 {
		t.Errorf("source row count changed: %d", n)
	}
}

func TestMergeIdempotent(t *testing.T) {
	primary := setupCatalog(t, "primary.db")
	source := setupCatalog(t, "source.db")

	insertRows(t, primary, []row{
		{path: "a.txt", sizeBytes: i64(100), optimized: nil},
		{path: "b.txt", sizeBytes: nil, optimized: i64(0)},
	})
	insertRows(t, source, []row{
		{path: "a.txt", sizeBytes: i64(50), optimized: i64(1)},
		{path: "b.txt", sizeBytes: i64(30), optimized: i64(1)},
	})

	if _, err := Merge(primary, source.Path(), DefaultRules()); err != nil {
		t.Fatalf("first Merge failed: %v", err)
	}
	first := []row{readRow(t, primary, "a.txt"), readRow(t, primary, "b.txt")}

	if _, err := Merge(primary, source.Path(), DefaultRules()); err != nil {
		t.Fatalf("second Merge failed: %v", err)
	}
	second := []row{readRow(t, primary, "a.txt"), readRow(t, primary, "b.txt")}

	for i := range first {
		if !eq(first[i].sizeBytes, second[i].sizeBytes) || !eq(first[i].optimized, second[i].optimized) {
			t.Errorf("row %s changed on repeated merge", first[i].path)
		}
	}
}

func TestMergeAtomicRollback(t *testing.T) {
	primary := setupCatalog(t, "primary.db")
	source := setupCatalog(t, "source.db")

	insertRows(t, primary, []row{
		{path: "a.txt", sizeBytes: i64(100), optimized: nil},
		{path: "poison.txt", sizeBytes: i64(200), optimized: nil},
	})
	insertRows(t, source, []row{
		{path: "a.txt", sizeBytes: i64(50), optimized: i64(1)},
		{path: "poison.txt", sizeBytes: i64(60), optimized: i64(1)},
	})

	// Force a mid-update failure so the transaction must roll back.
	if _, err := primary.Exec(`
		CREATE TRIGGER poison BEFORE UPDATE ON files
		WHEN OLD.path = 'poison.txt'
		BEGIN
			SELECT RAISE(ABORT, 'poisoned');
		END
	`); err != nil {
		t.Fatalf("failed to create trigger: %v", err)
	}

	_, err := Merge(primary, source.Path(), DefaultRules())
	if err == nil {
		t.Fatal("expected Merge to fail")
	}
	var txErr *domain.TransactionError
	if !errors.As(err, &txErr) {
		t.Fatalf("expected TransactionError, got %T: %v", err, err)
	}

	// Every row must be in its pre-merge state, including ones the UPDATE
	// had already visited.
	assertRow(t, primary, "a.txt", i64(100), nil)
	assertRow(t, primary, "poison.txt", i64(200), nil)
}

func TestMergeSourceNotFound(t *testing.T) {
	primary := setupCatalog(t, "primary.db")

	_, err := Merge(primary, filepath.Join(t.TempDir(), "missing.db"), DefaultRules())
	if err == nil {
		t.Fatal("expected Merge to fail")
	}
	var notFound *domain.StoreNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected StoreNotFoundError, got %T: %v", err, err)
	}
}

func TestMergeSchemaMismatch(t *testing.T) {
	primary := setupCatalog(t, "primary.db")

	// A source with a files table missing the optimized column.
	sourcePath := filepath.Join(t.TempDir(), "bare.db")
	source, err := db.Open(sourcePath)
	if err != nil {
		t.Fatalf("failed to open source: %v", err)
	}
	defer source.Close()
	if _, err := source.Exec("CREATE TABLE files (path TEXT PRIMARY KEY, size_bytes INTEGER)"); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}

	_, err = Merge(primary, sourcePath, DefaultRules())
	if err == nil {
		t.Fatal("expected Merge to fail")
	}
	var mismatch *domain.SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected SchemaMismatchError, got %T: %v", err, err)
	}
}

func TestMergeBareSourceSchema(t *testing.T) {
	// A source exposing only the three merge columns is enough; the
	// supplementary catalog columns are not required.
	primary := setupCatalog(t, "primary.db")

	sourcePath := filepath.Join(t.TempDir(), "bare.db")
	source, err := db.Open(sourcePath)
	if err != nil {
		t.Fatalf("failed to open source: %v", err)
	}
	defer source.Close()
	if _, err := source.Exec("CREATE TABLE files (path TEXT PRIMARY KEY, size_bytes INTEGER, optimized INTEGER)"); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	if _, err := source.Exec("INSERT INTO files VALUES ('a.txt', 5, 1)"); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}

	insertRows(t, primary, []row{{path: "a.txt", sizeBytes: i64(9), optimized: nil}})

	stats, err := Merge(primary, sourcePath, DefaultRules())
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if stats.RowsMatched != 1 {
		t.Errorf("RowsMatched = %d, want 1", stats.RowsMatched)
	}
	assertRow(t, primary, "a.txt", i64(5), i64(1))
}

func TestMergeRuleValidation(t *testing.T) {
	primary := setupCatalog(t, "primary.db")

	if _, err := Merge(primary, "unused.db", nil); err == nil {
		t.Error("expected error for empty rule list")
	}
	if _, err := Merge(primary, "unused.db", []Rule{{Column: "size_bytes; DROP TABLE files", Combinator: MinNullable}}); err == nil {
		t.Error("expected error for malformed column name")
	}
}

func TestMergeCustomRules(t *testing.T) {
	// The rule list is declarative: a single-column merge only touches
	// that column.
	primary := setupCatalog(t, "primary.db")
	source := setupCatalog(t, "source.db")

	insertRows(t, primary, []row{{path: "a.txt", sizeBytes: i64(100), optimized: nil}})
	insertRows(t, source, []row{{path: "a.txt", sizeBytes: i64(50), optimized: i64(1)}})

	rules := []Rule{{Column: "optimized", Combinator: CoalescePrimary}}
	if _, err := Merge(primary, source.Path(), rules); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	assertRow(t, primary, "a.txt", i64(100), i64(1))
}
