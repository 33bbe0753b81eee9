package domain

import "time"

// FileRecord represents one catalog row. SizeBytes and Optimized are
// nullable: a file may be recorded before it has been measured or before
// an optimization pass has made a determination about it.
type FileRecord struct {
	Path      string     `json:"path" db:"path"`
	SizeBytes *int64     `json:"size_bytes,omitempty" db:"size_bytes"`
	Checksum  *string    `json:"checksum,omitempty" db:"checksum"`
	Optimized *bool      `json:"optimized,omitempty" db:"optimized"`
	CreatedAt *time.Time `json:"created_at,omitempty" db:"created_at"`
}

// DuplicateGroup is a set of rows sharing the same checksum and size.
type DuplicateGroup struct {
	Checksum  string `json:"checksum"`
	SizeBytes int64  `json:"size_bytes"`
	Count     int64  `json:"count"`
}
