// Package archive lays out a deduplicated tree of catalog files, one link
// per unique (checksum, size) group, organized by media type and year.
package archive

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/abhe/dedup/internal/domain"
	"github.com/abhe/dedup/internal/store"
)

// Options controls a build run.
type Options struct {
	Destination string
	// Selector keeps only files whose media type matches (e.g. "image",
	// "video"). Empty keeps everything.
	Selector string
	// SplitAt starts a new shard_N directory every SplitAt bytes. Zero
	// disables sharding.
	SplitAt int64
}

// Result summarizes a build run.
type Result struct {
	FilesLinked int
	TotalBytes  int64
	Skipped     int
}

// Builder links unique catalog files into an archive tree.
type Builder struct {
	store *store.FileStore
}

// New creates a Builder over the given catalog store.
func New(fileStore *store.FileStore) *Builder {
	return &Builder{store: fileStore}
}

// Run builds the archive tree. Files are symlinked on unix and copied
// elsewhere. Name collisions within a directory get a numeric suffix.
func (b *Builder) Run(opts Options) (*Result, error) {
	if opts.Destination == "" {
		return nil, fmt.Errorf("destination not specified")
	}

	files, err := b.store.ListUnique(opts.SplitAt > 0)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for i := range files {
		file := &files[i]

		mediaType := mediaTypeOf(file.Path)
		if opts.Selector != "" && mediaType != opts.Selector {
			result.Skipped++
			continue
		}

		if file.SizeBytes != nil {
			result.TotalBytes += *file.SizeBytes
		}

		destDir := layoutDir(opts, file, mediaType, result.TotalBytes)
		if err := os.MkdirAll(destDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", destDir, err)
		}

		destPath, err := collisionFreePath(destDir, file)
		if err != nil {
			return nil, err
		}

		if err := place(file.Path, destPath); err != nil {
			return nil, err
		}
		result.FilesLinked++
	}

	return result, nil
}

// layoutDir picks dest[/shard_N]/<media-type>/<year> for a file.
func layoutDir(opts Options, file *domain.FileRecord, mediaType string, totalBytes int64) string {
	year := "unknown"
	if file.CreatedAt != nil {
		year = fmt.Sprintf("%d", file.CreatedAt.Year())
	}

	if opts.SplitAt > 0 {
		shard := fmt.Sprintf("shard_%d", (totalBytes/opts.SplitAt)+1)
		return filepath.Join(opts.Destination, shard, mediaType, year)
	}
	return filepath.Join(opts.Destination, mediaType, year)
}

// collisionFreePath names the link after the file's timestamp, suffixing on
// collision. Ten colliding timestamps in one directory is an error.
func collisionFreePath(destDir string, file *domain.FileRecord) (string, error) {
	ext := strings.TrimPrefix(filepath.Ext(file.Path), ".")
	if ext == "" {
		ext = "bin"
	}

	base := "unknown"
	if file.CreatedAt != nil {
		base = file.CreatedAt.Format("02-01-2006_15:04:05")
	}

	destPath := filepath.Join(destDir, fmt.Sprintf("%s.%s", base, ext))
	for i := 1; i < 10; i++ {
		if _, err := os.Lstat(destPath); os.IsNotExist(err) {
			return destPath, nil
		}
		destPath = filepath.Join(destDir, fmt.Sprintf("%s_%d.%s", base, i, ext))
	}
	if _, err := os.Lstat(destPath); err == nil {
		return "", fmt.Errorf("too many name collisions for %s in %s", base, destDir)
	}
	return destPath, nil
}

func place(source, dest string) error {
	if runtime.GOOS != "windows" {
		if err := os.Symlink(source, dest); err != nil {
			return fmt.Errorf("failed to link %s: %w", dest, err)
		}
		return nil
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", source, err)
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return fmt.Errorf("failed to copy to %s: %w", dest, err)
	}
	return nil
}

// mediaTypeOf returns the top-level media type ("image", "video", ...) for
// a path, based on its extension. Unknown extensions map to "other".
func mediaTypeOf(path string) string {
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		return "other"
	}
	if idx := strings.Index(mimeType, "/"); idx > 0 {
		return mimeType[:idx]
	}
	return mimeType
}
