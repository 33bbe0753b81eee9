package cli

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/abhe/dedup/internal/db"
	"github.com/abhe/dedup/internal/store"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show path differences between the primary and a source catalog",
	RunE:  runDiff,
}

var diffSourcePath string

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().StringVar(&diffSourcePath, "source", "", "Source catalog path (defaults to DEDUP_SOURCE_PATH)")
}

func runDiff(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sourcePath := diffSourcePath
	if sourcePath == "" {
		sourcePath = cfg.SourcePath
	}

	database, err := openCatalog(cmd, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	source, err := db.OpenReadOnly(sourcePath)
	if err != nil {
		return err
	}
	defer source.Close()

	primaryPaths, err := store.New(database).ListPaths()
	if err != nil {
		return err
	}
	sourcePaths, err := store.New(source).ListPaths()
	if err != nil {
		return err
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        pathLines(primaryPaths),
		B:        pathLines(sourcePaths),
		FromFile: database.Path(),
		ToFile:   sourcePath,
		Context:  3,
	})
	if err != nil {
		return fmt.Errorf("failed to compute diff: %w", err)
	}

	if diff == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "Catalogs list the same paths")
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), diff)
	return nil
}

func pathLines(paths []string) []string {
	lines := make([]string, len(paths))
	for i, p := range paths {
		lines[i] = p + "\n"
	}
	return lines
}
