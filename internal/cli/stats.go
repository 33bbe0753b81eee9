package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhe/dedup/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog totals and redundancy counts",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
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

	total, err := fileStore.Count()
	if err != nil {
		return err
	}
	redundant, err := fileStore.CountRedundant()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Total files: %d\n", total)
	fmt.Fprintf(out, "Redundant files: %d\n", redundant)
	return nil
}
