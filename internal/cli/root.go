package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dedup",
	Short: "File deduplication and catalog tool",
	Long: `dedup maintains a SQLite catalog of files discovered on disk. It
detects redundant copies by content checksum, builds deduplicated archive
trees, optimizes media files, and merges metadata from a second catalog.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().String("catalog", "", "Path to catalog file (overrides DEDUP_CATALOG_PATH)")
}
