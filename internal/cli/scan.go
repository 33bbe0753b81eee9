package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhe/dedup/internal/events"
	"github.com/abhe/dedup/internal/scan"
	"github.com/abhe/dedup/internal/store"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Walk source directories and record file metadata in the catalog",
	RunE:  runScan,
}

var (
	scanSources []string
	scanThreads int
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringSliceVarP(&scanSources, "source", "s", nil, "Source directory to scan (repeatable)")
	scanCmd.Flags().IntVar(&scanThreads, "threads", 0, "Hashing worker count (defaults to config)")
	scanCmd.MarkFlagRequired("source")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := openCatalog(cmd, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	threads := scanThreads
	if threads <= 0 {
		threads = cfg.Threads
	}

	scanner := scan.New(store.New(database), events.NewWriter(database), threads)
	scanner.ErrLog = func(path string, err error) {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", path, err)
	}

	result, err := scanner.Run(scanSources)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d file(s): %d recorded, %d skipped\n",
		result.FilesSeen, result.FilesAdded, len(result.Errors))
	return nil
}
