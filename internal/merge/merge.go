// Package merge reconciles file metadata between two catalogs. It updates
// every row in the primary catalog whose path also exists in the source
// catalog, combining columns under a declarative rule list. It never inserts
// rows, never deletes rows, and never writes to the source catalog.
package merge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/abhe/dedup/internal/db"
	"github.com/abhe/dedup/internal/domain"
)

// Combinator selects how a matched row's column value is reconciled.
type Combinator int

const (
	// MinNullable takes the smaller of the two values, but yields NULL when
	// either side is NULL. This mirrors SQLite's scalar two-argument min(),
	// which propagates NULL rather than skipping it. An unmeasured size on
	// either side therefore poisons the merged size to NULL; callers who
	// find that surprising should still expect it.
	MinNullable Combinator = iota

	// CoalescePrimary keeps the primary's existing value when it is
	// non-NULL and adopts the source's value (which may itself be NULL)
	// otherwise.
	CoalescePrimary
)

func (c Combinator) String() string {
	switch c {
	case MinNullable:
		return "min"
	case CoalescePrimary:
		return "coalesce"
	default:
		return fmt.Sprintf("combinator(%d)", int(c))
	}
}

// expr renders the combinator as a SQL expression over the primary table
// "files" and the attached source schema "src".
func (c Combinator) expr(column string) (string, error) {
	switch c {
	case MinNullable:
		return fmt.Sprintf("(SELECT min(files.%[1]s, s.%[1]s) FROM src.files AS s WHERE s.path = files.path)", column), nil
	case CoalescePrimary:
		return fmt.Sprintf("coalesce(files.%[1]s, (SELECT s.%[1]s FROM src.files AS s WHERE s.path = files.path))", column), nil
	default:
		return "", fmt.Errorf("unknown combinator %d", int(c))
	}
}

// Rule binds a column of the files table to a combinator.
type Rule struct {
	Column     string
	Combinator Combinator
}

// DefaultRules returns the standard catalog reconciliation rules: the
// smaller size measurement wins (NULL-propagating), and the primary's
// optimized determination is authoritative with the source as fallback.
func DefaultRules() []Rule {
	return []Rule{
		{Column: "size_bytes", Combinator: MinNullable},
		{Column: "optimized", Combinator: CoalescePrimary},
	}
}

// Stats reports what a merge touched.
type Stats struct {
	RowsMatched int64 `json:"rows_matched"`
}

var columnPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Merge applies the rule list to every primary row whose path exists in the
// source catalog at sourcePath. The whole update runs as one transaction:
// either every matched row is updated or none are. Rows present only in the
// primary, and all rows of the source, are left untouched.
func Merge(primary *db.DB, sourcePath string, rules []Rule) (Stats, error) {
	var stats Stats

	if len(rules) == 0 {
		return stats, fmt.Errorf("no merge rules given")
	}
	for _, r := range rules {
		if !columnPattern.MatchString(r.Column) {
			return stats, fmt.Errorf("invalid rule column %q", r.Column)
		}
	}

	if _, err := os.Stat(sourcePath); err != nil {
		return stats, &domain.StoreNotFoundError{Path: sourcePath, Err: err}
	}

	// Validate both schemas before any transaction is started. The source
	// is checked over its own read-only connection; the merge transaction
	// below only ever SELECTs from it.
	if err := validateSchemaReadOnly(sourcePath, rules); err != nil {
		return stats, err
	}
	if err := validateSchema(primary, primary.Path(), rules); err != nil {
		return stats, err
	}

	// ATTACH cannot run inside a transaction, and database/sql hands out
	// pooled connections, so the attach, the transaction, and the detach
	// must all be pinned to one connection.
	ctx := context.Background()
	conn, err := primary.DB.Conn(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "ATTACH DATABASE ? AS src", sourcePath); err != nil {
		return stats, classifyAttachError(sourcePath, err)
	}
	defer conn.ExecContext(ctx, "DETACH DATABASE src")

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return stats, classifyWriteError(primary.Path(), err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(buildUpdate(rules))
	if err != nil {
		return stats, classifyWriteError(primary.Path(), err)
	}

	matched, err := res.RowsAffected()
	if err != nil {
		return stats, &domain.TransactionError{Err: err}
	}

	if err := tx.Commit(); err != nil {
		return stats, classifyWriteError(primary.Path(), err)
	}

	stats.RowsMatched = matched
	return stats, nil
}

// buildUpdate renders the merge as a single UPDATE with one combined SET
// clause listing every rule's assignment, restricted to matched paths.
func buildUpdate(rules []Rule) string {
	assignments := make([]string, 0, len(rules))
	for _, r := range rules {
		expr, err := r.Combinator.expr(r.Column)
		if err != nil {
			// Rules were validated by Merge before reaching here.
			panic(err)
		}
		assignments = append(assignments, fmt.Sprintf("%s = %s", r.Column, expr))
	}
	return fmt.Sprintf(`
		UPDATE files
		SET %s
		WHERE path IN (SELECT path FROM src.files)
	`, strings.Join(assignments, ",\n\t\t    "))
}

// validateSchema confirms the files table exposes the path key and every
// rule column. Extra columns are fine; a bare files(path, size_bytes,
// optimized) store merges the same as a full catalog.
func validateSchema(database *db.DB, path string, rules []Rule) error {
	columns := make([]string, 0, len(rules)+1)
	columns = append(columns, "path")
	for _, r := range rules {
		columns = append(columns, r.Column)
	}

	query := fmt.Sprintf("SELECT %s FROM files LIMIT 0", strings.Join(columns, ", "))
	rows, err := database.Query(query)
	if err != nil {
		return classifyProbeError(path, err)
	}
	rows.Close()
	return rows.Err()
}

func validateSchemaReadOnly(path string, rules []Rule) error {
	source, err := db.OpenReadOnly(path)
	if err != nil {
		return &domain.StoreNotFoundError{Path: path, Err: err}
	}
	defer source.Close()

	return validateSchema(source, path, rules)
}

func classifyProbeError(path string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrNotADB, sqlite3.ErrCantOpen:
			return &domain.StoreNotFoundError{Path: path, Err: err}
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return &domain.LockContentionError{Path: path, Err: err}
		}
	}
	// "no such table: files" and "no such column: ..." both land here.
	return &domain.SchemaMismatchError{Path: path, Err: err}
}

func classifyAttachError(path string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return &domain.LockContentionError{Path: path, Err: err}
		}
	}
	return &domain.StoreNotFoundError{Path: path, Err: err}
}

func classifyWriteError(path string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return &domain.LockContentionError{Path: path, Err: err}
		}
	}
	return &domain.TransactionError{Err: err}
}
