// Package hash computes file content digests for duplicate detection.
package hash

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
)

// File returns the SHA-256 digest of the file's contents, encoded as
// unpadded base64url. This is the checksum format stored in the catalog.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}
