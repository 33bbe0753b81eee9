package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhe/dedup/internal/config"
	"github.com/abhe/dedup/internal/db"
	"github.com/abhe/dedup/internal/domain"
)

// resolveCatalogPath picks the catalog path from --catalog, env, or config.
func resolveCatalogPath(cmd *cobra.Command, cfg *config.Config) string {
	if flag := cmd.Flag("catalog"); flag != nil && flag.Value.String() != "" {
		return flag.Value.String()
	}
	return cfg.CatalogPath
}

// openCatalog opens an existing, fully migrated catalog. It refuses to
// create one; 'dedup init' owns creation.
func openCatalog(cmd *cobra.Command, cfg *config.Config) (*db.DB, error) {
	path := resolveCatalogPath(cmd, cfg)
	if _, err := os.Stat(path); err != nil {
		return nil, &domain.StoreNotFoundError{Path: path, Err: fmt.Errorf("run 'dedup init': %w", err)}
	}

	database, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	if err := database.RequiresMigrationError(); err != nil {
		database.Close()
		return nil, err
	}

	return database, nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
