// Package store provides the persistence layer for the file catalog,
// wrapping row scanning and transaction handling around internal/db.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/abhe/dedup/internal/db"
	"github.com/abhe/dedup/internal/domain"
)

// FileStore persists and queries catalog rows.
type FileStore struct {
	db *db.DB
}

// New creates a FileStore wrapping the given catalog connection.
func New(database *db.DB) *FileStore {
	return &FileStore{db: database}
}

// DB returns the underlying catalog connection (for read-only queries).
func (s *FileStore) DB() *db.DB {
	return s.db
}

// withTx executes fn within a transaction. If fn returns nil, the
// transaction is committed; otherwise it is rolled back.
func (s *FileStore) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// Upsert inserts the record, replacing any existing row for the same path.
func (s *FileStore) Upsert(rec *domain.FileRecord) error {
	if err := domain.ValidatePath(rec.Path); err != nil {
		return err
	}
	if err := domain.ValidateSizeBytes(rec.SizeBytes); err != nil {
		return err
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO files (path, size_bytes, checksum, optimized, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.Path, nullInt64(rec.SizeBytes), nullString(rec.Checksum),
		nullBool(rec.Optimized), nullUnix(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert file %s: %w", rec.Path, err)
	}
	return nil
}

// UpsertBatch inserts records in a single transaction.
func (s *FileStore) UpsertBatch(recs []domain.FileRecord) error {
	return s.withTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO files (path, size_bytes, checksum, optimized, created_at)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		for i := range recs {
			rec := &recs[i]
			if err := domain.ValidatePath(rec.Path); err != nil {
				return err
			}
			if err := domain.ValidateSizeBytes(rec.SizeBytes); err != nil {
				return err
			}
			if _, err := stmt.Exec(rec.Path, nullInt64(rec.SizeBytes), nullString(rec.Checksum),
				nullBool(rec.Optimized), nullUnix(rec.CreatedAt)); err != nil {
				return fmt.Errorf("failed to upsert file %s: %w", rec.Path, err)
			}
		}
		return nil
	})
}

// GetByPath returns the record for path, or sql.ErrNoRows wrapped.
func (s *FileStore) GetByPath(path string) (*domain.FileRecord, error) {
	row := s.db.QueryRow(`
		SELECT path, size_bytes, checksum, optimized, created_at
		FROM files
		WHERE path = ?
	`, path)

	rec, err := scanFile(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s: %w", path, err)
	}
	return rec, nil
}

// SetOptimized records an optimization determination and the re-measured size.
func (s *FileStore) SetOptimized(path string, optimized bool, sizeBytes int64) error {
	res, err := s.db.Exec(`
		UPDATE files SET optimized = ?, size_bytes = ? WHERE path = ?
	`, boolToInt(optimized), sizeBytes, path)
	if err != nil {
		return fmt.Errorf("failed to mark file %s optimized: %w", path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no catalog row for %s", path)
	}
	return nil
}

// Count returns the number of catalog rows.
func (s *FileStore) Count() (int64, error) {
	var count int64
	if err := s.db.QueryRow("SELECT COUNT(path) FROM files").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return count, nil
}

// CountRedundant returns the number of rows beyond the first in each
// duplicate group, i.e. how many files could be removed without losing data.
func (s *FileStore) CountRedundant() (int64, error) {
	var count sql.NullInt64
	err := s.db.QueryRow(`
		SELECT SUM(cnt - 1)
		FROM (
			SELECT COUNT(*) AS cnt
			FROM files
			WHERE checksum IS NOT NULL AND size_bytes IS NOT NULL
			GROUP BY checksum, size_bytes
			HAVING cnt > 1
		)
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count redundant files: %w", err)
	}
	return count.Int64, nil
}

// FindDuplicates returns all rows sharing the given checksum and size.
func (s *FileStore) FindDuplicates(checksum string, sizeBytes int64) ([]domain.FileRecord, error) {
	rows, err := s.db.Query(`
		SELECT path, size_bytes, checksum, optimized, created_at
		FROM files
		WHERE checksum = ? AND size_bytes = ?
	`, checksum, sizeBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicates: %w", err)
	}
	defer rows.Close()

	return collectFiles(rows)
}

// DuplicateGroups returns every (checksum, size) pair recorded more than once.
func (s *FileStore) DuplicateGroups() ([]domain.DuplicateGroup, error) {
	rows, err := s.db.Query(`
		SELECT checksum, size_bytes, COUNT(*) AS cnt
		FROM files
		WHERE checksum IS NOT NULL AND size_bytes IS NOT NULL
		GROUP BY checksum, size_bytes
		HAVING cnt > 1
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicate groups: %w", err)
	}
	defer rows.Close()

	var groups []domain.DuplicateGroup
	for rows.Next() {
		var g domain.DuplicateGroup
		if err := rows.Scan(&g.Checksum, &g.SizeBytes, &g.Count); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate duplicate groups: %w", err)
	}
	return groups, nil
}

// ListUnique returns one representative row per (checksum, size) group.
// With ordered set, the earliest created_at in each group wins, and results
// come back in creation order; otherwise the pick is arbitrary.
func (s *FileStore) ListUnique(ordered bool) ([]domain.FileRecord, error) {
	query := `
		SELECT path, size_bytes, checksum, optimized, created_at FROM (
			SELECT path, size_bytes, checksum, optimized, created_at,
			       ROW_NUMBER() OVER (PARTITION BY checksum, size_bytes) AS rn
			FROM files
		) ranked
		WHERE rn = 1
	`
	if ordered {
		query = `
			SELECT path, size_bytes, checksum, optimized, created_at FROM (
				SELECT path, size_bytes, checksum, optimized, created_at,
				       ROW_NUMBER() OVER (PARTITION BY checksum, size_bytes ORDER BY created_at ASC) AS rn
				FROM files
			) ranked
			WHERE rn = 1
			ORDER BY created_at ASC
		`
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query unique files: %w", err)
	}
	defer rows.Close()

	return collectFiles(rows)
}

// ListPaths returns every path in the catalog, sorted.
func (s *FileStore) ListPaths() ([]string, error) {
	rows, err := s.db.Query("SELECT path FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("failed to query paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan path: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate paths: %w", err)
	}
	return paths, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*domain.FileRecord, error) {
	var rec domain.FileRecord
	var size sql.NullInt64
	var checksum sql.NullString
	var optimized sql.NullInt64
	var createdAt sql.NullInt64

	if err := row.Scan(&rec.Path, &size, &checksum, &optimized, &createdAt); err != nil {
		return nil, err
	}

	if size.Valid {
		rec.SizeBytes = &size.Int64
	}
	if checksum.Valid {
		rec.Checksum = &checksum.String
	}
	if optimized.Valid {
		b := optimized.Int64 != 0
		rec.Optimized = &b
	}
	if createdAt.Valid {
		t := time.Unix(createdAt.Int64, 0).UTC()
		rec.CreatedAt = &t
	}
	return &rec, nil
}

func collectFiles(rows *sql.Rows) ([]domain.FileRecord, error) {
	var recs []domain.FileRecord
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate file rows: %w", err)
	}
	return recs, nil
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullBool(v *bool) any {
	if v == nil {
		return nil
	}
	return boolToInt(*v)
}

func nullUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
