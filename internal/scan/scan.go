// Package scan walks source directories and records file metadata in the
// catalog: path, size, content checksum, and a creation timestamp.
package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/abhe/dedup/internal/domain"
	"github.com/abhe/dedup/internal/events"
	"github.com/abhe/dedup/internal/hash"
	"github.com/abhe/dedup/internal/store"
)

// Result summarizes one scan run.
type Result struct {
	RunID      string
	FilesSeen  int
	FilesAdded int
	Errors     []error
}

// Scanner walks directories and upserts catalog rows.
type Scanner struct {
	store   *store.FileStore
	events  *events.Writer
	workers int

	// ErrLog receives a line per unreadable file; nil silences it.
	ErrLog func(path string, err error)
}

// New creates a Scanner with the given worker count (minimum 1).
func New(fileStore *store.FileStore, writer *events.Writer, workers int) *Scanner {
	if workers < 1 {
		workers = 1
	}
	return &Scanner{store: fileStore, events: writer, workers: workers}
}

// Run scans every source directory, hashing files concurrently and
// upserting rows as they complete. Files that cannot be read are reported
// and skipped; they do not fail the run.
func (s *Scanner) Run(sources []string) (*Result, error) {
	result := &Result{RunID: uuid.New().String()}

	paths := make(chan string)
	var mu sync.Mutex
	var storeErr error

	// Workers drain the channel even after a catalog write fails so the
	// walker below never blocks on send.
	g := new(errgroup.Group)
	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			for path := range paths {
				mu.Lock()
				fatal := storeErr != nil
				mu.Unlock()
				if fatal {
					continue
				}

				rec, err := s.processFile(path)

				mu.Lock()
				result.FilesSeen++
				if err != nil {
					result.Errors = append(result.Errors, fmt.Errorf("%s: %w", path, err))
					if s.ErrLog != nil {
						s.ErrLog(path, err)
					}
					mu.Unlock()
					continue
				}
				mu.Unlock()

				if err := s.store.Upsert(rec); err != nil {
					mu.Lock()
					if storeErr == nil {
						storeErr = err
					}
					mu.Unlock()
					continue
				}

				mu.Lock()
				result.FilesAdded++
				mu.Unlock()
			}
			return nil
		})
	}

	walkErr := func() error {
		defer close(paths)
		for _, source := range sources {
			err := filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.Type().IsRegular() {
					return nil
				}
				paths <- path
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to walk %s: %w", source, err)
			}
		}
		return nil
	}()

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if storeErr != nil {
		return nil, storeErr
	}
	if walkErr != nil {
		return nil, walkErr
	}

	if s.events != nil {
		if err := s.events.LogScanCompleted(result.RunID, result.FilesSeen, result.FilesAdded, len(result.Errors)); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// processFile stats and hashes one file into a catalog record. The creation
// timestamp is the file's mtime.
func (s *Scanner) processFile(path string) (*domain.FileRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	checksum, err := hash.File(path)
	if err != nil {
		return nil, err
	}

	size := info.Size()
	created := info.ModTime().UTC()
	return &domain.FileRecord{
		Path:      path,
		SizeBytes: &size,
		Checksum:  &checksum,
		CreatedAt: &created,
	}, nil
}
