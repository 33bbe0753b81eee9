package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	CatalogPath string `yaml:"catalog_path"`
	// SourcePath is the conventional location of the secondary catalog
	// consumed by merge and diff when --source is not given.
	SourcePath string `yaml:"source_path"`
	Threads    int    `yaml:"threads"`
	Output     string `yaml:"output"`
}

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. ~/.config/dedup/config.yaml (YAML)
func Load() (*Config, error) {
	cfg := &Config{
		Threads: 4,
		Output:  "table",
	}

	// Load .env.local if it exists (walking up parent directories)
	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	// Load ~/.config/dedup/config.yaml if it exists
	if err := loadYAMLConfig(cfg); err != nil {
		// YAML config is optional, so we don't fail if it doesn't exist
	}

	// Override with environment variables
	if catalogPath := os.Getenv("DEDUP_CATALOG_PATH"); catalogPath != "" {
		cfg.CatalogPath = catalogPath
	}
	if sourcePath := os.Getenv("DEDUP_SOURCE_PATH"); sourcePath != "" {
		cfg.SourcePath = sourcePath
	}
	if output := os.Getenv("DEDUP_OUTPUT"); output != "" {
		cfg.Output = output
	}

	// Set defaults if not configured
	if cfg.CatalogPath == "" {
		// Check for project-local catalog first
		if _, err := os.Stat(".dedup/catalog.db"); err == nil {
			cfg.CatalogPath = ".dedup/catalog.db"
		} else {
			// Fall back to user-global catalog
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			cfg.CatalogPath = filepath.Join(homeDir, ".local", "share", "dedup", "catalog.db")
		}
	}

	if cfg.SourcePath == "" {
		// The source catalog conventionally sits next to the primary one.
		dir := filepath.Dir(cfg.CatalogPath)
		cfg.SourcePath = filepath.Join(dir, "catalog-source.db")
	}

	if cfg.Threads < 1 {
		cfg.Threads = 1
	}

	return cfg, nil
}

// loadYAMLConfig loads configuration from ~/.config/dedup/config.yaml
func loadYAMLConfig(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(homeDir, ".config", "dedup", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
// Returns the path to .env.local if found, empty string otherwise.
func findEnvLocal() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// If we can't get home dir, just check cwd
		if _, err := os.Stat(".env.local"); err == nil {
			return ".env.local"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	// Clean paths for reliable comparison
	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}

		// Stop if we've reached home directory
		if dir == homeDir {
			break
		}

		// Get parent directory
		parent := filepath.Dir(dir)

		// Stop if we've reached the filesystem root
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}
