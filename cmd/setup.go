package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/tutor/internal/app"
	"github.com/abhisek/tutor/internal/config"
	"github.com/abhisek/tutor/internal/logger"
	"github.com/abhisek/tutor/internal/store"
)

// loadConfig reads the config file, then environment variables (.env
// included), then persistent flags. Later sources win.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return config.Config{}, err
	}
	file, _ := cmd.Flags().GetString("config")
	if file == "" {
		file = os.Getenv(config.EnvConfigFile)
	}
	cfg, err := config.Load(file)
	if err != nil {
		return config.Config{}, err
	}

	overrides := map[string]*string{
		"db":       &cfg.DBPath,
		"catalog":  &cfg.CatalogPath,
		"bank":     &cfg.BankPath,
		"log-mode": &cfg.LogMode,
	}
	for flag, dst := range overrides {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			*dst = v
		}
	}
	return cfg, cfg.Validate()
}

// resolveDBPath returns the configured database path, falling back to the
// default XDG location.
func resolveDBPath(cfg config.Config) (string, error) {
	if cfg.DBPath != "" {
		return cfg.DBPath, store.EnsureDir(cfg.DBPath)
	}
	return store.DefaultDBPath()
}

// openStore opens only the interaction log, for commands that need no
// catalog.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	dbPath, err := resolveDBPath(cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

// openApp loads configuration and assembles the engine. opts may carry
// per-command settings such as a seeded Rand.
func openApp(cmd *cobra.Command, opts app.Options) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	opts.Config = cfg
	opts.Logger = log
	a, err := app.New(opts)
	if err != nil {
		log.Sync()
		return nil, err
	}
	return a, nil
}
