package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhe/dedup/internal/db"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new catalog and apply the schema",
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := resolveCatalogPath(cmd, cfg)
	database, err := db.Open(path)
	if err != nil {
		return fmt.Errorf("failed to create catalog: %w", err)
	}
	defer database.Close()

	applied, err := database.MigrateWithInfo()
	if err != nil {
		return fmt.Errorf("failed to migrate catalog: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Catalog ready at %s (%d migration(s) applied)\n", path, len(applied))
	return nil
}
