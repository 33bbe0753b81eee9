package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhe/dedup/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending catalog schema migrations",
	RunE:  runMigrate,
}

var migrateStatus bool

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "Show migration status without applying")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := db.Open(resolveCatalogPath(cmd, cfg))
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer database.Close()

	out := cmd.OutOrStdout()

	if migrateStatus {
		applied, pending, err := database.MigrationStatus()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Applied: %d\n", len(applied))
		for _, m := range applied {
			fmt.Fprintf(out, "  %s\n", m)
		}
		fmt.Fprintf(out, "Pending: %d\n", len(pending))
		for _, m := range pending {
			fmt.Fprintf(out, "  %s\n", m)
		}
		return nil
	}

	applied, err := database.MigrateWithInfo()
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if len(applied) == 0 {
		fmt.Fprintln(out, "Catalog is up to date")
		return nil
	}
	for _, m := range applied {
		fmt.Fprintf(out, "Applied %s\n", m)
	}
	return nil
}
