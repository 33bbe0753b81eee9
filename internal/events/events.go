package events

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/abhe/dedup/internal/db"
)

// Writer handles writing events to the event log
type Writer struct {
	db *db.DB
}

// NewWriter creates a new event writer
func NewWriter(database *db.DB) *Writer {
	return &Writer{db: database}
}

// Log writes an event to the event log. Within a transaction, pass tx;
// otherwise pass nil to write directly.
func (w *Writer) Log(tx *sql.Tx, eventType string, payload map[string]any) error {
	var payloadStr any
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode event payload: %w", err)
		}
		payloadStr = string(data)
	}

	executor := w.getExecutor(tx)
	_, err := executor.Exec(`
		INSERT INTO event_log (event_type, payload) VALUES (?, ?)
	`, eventType, payloadStr)
	if err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// LogScanCompleted logs a scan.completed event
func (w *Writer) LogScanCompleted(runID string, filesSeen, filesAdded, errors int) error {
	return w.Log(nil, "scan.completed", map[string]any{
		"run_id":      runID,
		"files_seen":  filesSeen,
		"files_added": filesAdded,
		"errors":      errors,
	})
}

// LogMergeCompleted logs a merge.completed event
func (w *Writer) LogMergeCompleted(sourcePath string, rowsMatched int64) error {
	return w.Log(nil, "merge.completed", map[string]any{
		"source":       sourcePath,
		"rows_matched": rowsMatched,
	})
}

// LogOptimizeCompleted logs an optimize.completed event
func (w *Writer) LogOptimizeCompleted(path string, sizeBefore, sizeAfter int64) error {
	return w.Log(nil, "optimize.completed", map[string]any{
		"path":        path,
		"size_before": sizeBefore,
		"size_after":  sizeAfter,
	})
}

// getExecutor returns the appropriate executor (tx or db)
func (w *Writer) getExecutor(tx *sql.Tx) interface {
	Exec(query string, args ...any) (sql.Result, error)
} {
	if tx != nil {
		return tx
	}
	return w.db
}
