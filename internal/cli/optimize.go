package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhe/dedup/internal/events"
	"github.com/abhe/dedup/internal/store"
	"github.com/abhe/dedup/internal/transcode"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize <path> <output>",
	Short: "Transcode a catalog video and record the result",
	Long: `Re-encodes the given catalog file with ffmpeg, re-measures the output,
and marks the row optimized with its new size. The catalog row keeps its
original path; the transcoded file is written to <output>.`,
	Args: cobra.ExactArgs(2),
	RunE: runOptimize,
}

func init() {
	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	input, output := args[0], args[1]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := openCatalog(cmd, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	fileStore := store.New(database)
	rec, err := fileStore.GetByPath(input)
	if err != nil {
		return err
	}

	var sizeBefore int64
	if rec.SizeBytes != nil {
		sizeBefore = *rec.SizeBytes
	}

	if err := transcode.Transcode(input, output); err != nil {
		return err
	}

	info, err := os.Stat(output)
	if err != nil {
		return fmt.Errorf("failed to stat transcoded output: %w", err)
	}

	if err := fileStore.SetOptimized(input, true, info.Size()); err != nil {
		return err
	}
	if err := events.NewWriter(database).LogOptimizeCompleted(input, sizeBefore, info.Size()); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Optimized %s: %d -> %d bytes\n", input, sizeBefore, info.Size())
	return nil
}
