// Package cli implements the journal-engine CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xaenox/journal-engine/internal/engine"
	"github.com/xaenox/journal-engine/internal/storage"
	"github.com/xaenox/journal-engine/pkg/config"
)

var (
	configPath string
	verbose    bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "journal-engine",
	Short: "Ask questions and extract tags over a personal journal",
	Long: "journal-engine answers questions about your journal with citations back to the\n" +
		"entries it drew from, and suggests controlled-vocabulary tags for entries.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

// openEngine builds the engine and its storage backend from config. The
// returned closer shuts the storage down.
func openEngine() (*engine.Engine, func(), error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading config: %w", err)
	}

	logger, err := buildLogger()
	if err != nil {
		return nil, nil, err
	}

	var store storage.Storage
	if cfg.Database.UseInMemory {
		store = storage.NewMemoryStorage()
	} else {
		store, err = storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("error opening database: %w", err)
		}
	}

	eng := engine.New(cfg, store, logger)
	closer := func() {
		store.Close()
		logger.Sync()
	}
	return eng, closer, nil
}

func buildLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
