package cli

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/abhe/dedup/internal/events"
	"github.com/abhe/dedup/internal/merge"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge file metadata from a source catalog into the primary one",
	Long: `Updates every primary row whose path also exists in the source catalog.
Sizes combine under a null-propagating two-argument minimum: the smaller
measurement wins, but an unmeasured size on either side yields an unmeasured
result. The optimized flag keeps the primary's determination and falls back
to the source's only when the primary has never recorded one.

The source catalog is read, never written. Rows present only in the source
are not imported; rows present only in the primary are untouched. The whole
update is one transaction.`,
	RunE: runMerge,
}

var (
	mergeSourcePath string
	mergeReportPath string
)

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().StringVar(&mergeSourcePath, "source", "", "Source catalog path (defaults to DEDUP_SOURCE_PATH)")
	mergeCmd.Flags().StringVar(&mergeReportPath, "report", "", "Write JSON merge stats to path")
}

type mergeReport struct {
	PrimaryCatalog string      `json:"primary_catalog"`
	SourceCatalog  string      `json:"source_catalog"`
	Stats          merge.Stats `json:"stats"`
}

func runMerge(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sourcePath := mergeSourcePath
	if sourcePath == "" {
		sourcePath = cfg.SourcePath
	}

	database, err := openCatalog(cmd, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	stats, err := merge.Merge(database, sourcePath, merge.DefaultRules())
	if err != nil {
		return err
	}

	if err := events.NewWriter(database).LogMergeCompleted(sourcePath, stats.RowsMatched); err != nil {
		return err
	}

	if mergeReportPath != "" {
		report := mergeReport{
			PrimaryCatalog: database.Path(),
			SourceCatalog:  sourcePath,
			Stats:          stats,
		}
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		if err := os.WriteFile(mergeReportPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Merged %s -> %s: %d row(s) updated\n",
		sourcePath, database.Path(), stats.RowsMatched)
	return nil
}
