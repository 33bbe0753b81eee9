package domain

import "fmt"

// StoreNotFoundError is returned when a catalog file does not exist or is
// not a usable SQLite database. No transaction has been started.
type StoreNotFoundError struct {
	Path string
	Err  error
}

func (e *StoreNotFoundError) Error() string {
	return fmt.Sprintf("catalog not found at %s: %v", e.Path, e.Err)
}

func (e *StoreNotFoundError) Unwrap() error { return e.Err }

// SchemaMismatchError is returned when a catalog is missing the files table
// or one of its expected columns. No transaction has been started.
type SchemaMismatchError struct {
	Path string
	Err  error
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("catalog at %s has unexpected schema: %v", e.Path, e.Err)
}

func (e *SchemaMismatchError) Unwrap() error { return e.Err }

// LockContentionError is returned when the primary catalog is locked by
// another writer. The caller may retry; this package never retries itself.
type LockContentionError struct {
	Path string
	Err  error
}

func (e *LockContentionError) Error() string {
	return fmt.Sprintf("catalog at %s is locked by another writer: %v", e.Path, e.Err)
}

func (e *LockContentionError) Unwrap() error { return e.Err }

// TransactionError is returned when an update fails mid-transaction. The
// transaction has been rolled back in full; no partial update was committed.
type TransactionError struct {
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("merge transaction rolled back: %v", e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }
