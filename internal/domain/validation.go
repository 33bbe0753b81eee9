package domain

import "fmt"

// ValidatePath validates a catalog path key
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("invalid path: must not be empty")
	}
	return nil
}

// ValidateSizeBytes validates an optional size measurement
func ValidateSizeBytes(size *int64) error {
	if size != nil && *size < 0 {
		return fmt.Errorf("invalid size_bytes: must be non-negative, got %d", *size)
	}
	return nil
}
