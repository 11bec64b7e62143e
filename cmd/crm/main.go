package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/crm/internal/config"
	"github.com/steveyegge/crm/internal/logger"
	"github.com/steveyegge/crm/internal/merge"
	"github.com/steveyegge/crm/internal/storage"
)

var (
	dbPath     string
	configPath string
	cfg        *config.Config
	store      storage.Storage
	engine     *merge.Engine
)

// skipStoreAnnotation marks commands that run without an open store
const skipStoreAnnotation = "crm/skip-store"

var rootCmd = &cobra.Command{
	Use:   "crm",
	Short: "Contact deduplication and reconciliation",
	Long: `crm finds contacts that represent the same person and merges them,
folding their conversation cards into one.

Detection is read-only. Merges are multi-step writes with no transaction
across contacts and cards, so only one merge runs at a time per project.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := logger.Setup(cfg.Log.Options()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if cmd.Annotations[skipStoreAnnotation] == "true" {
			return
		}

		if err := resolveDatabasePath(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx := context.Background()
		store, err = storage.NewStorage(ctx, cfg.Storage)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to open database: %v\n", err)
			os.Exit(1)
		}

		engine, err = merge.NewEngine(store, cfg.Dedup, merge.WithEventRecorder(store))
		if err != nil {
			_ = store.Close()
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			if err := store.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
	},
}

// resolveDatabasePath settles the SQLite path: --db wins, then CRM_DB_PATH
// (already applied by config), then .crm/*.db in the working directory.
func resolveDatabasePath() error {
	if cfg.Storage.Backend != storage.BackendSQLite && cfg.Storage.Backend != "" {
		return nil
	}
	if dbPath != "" {
		cfg.Storage.Path = dbPath
		return nil
	}
	if os.Getenv("CRM_DB_PATH") == "" && cfg.Storage.Path == storage.DefaultPath {
		discovered, err := storage.DiscoverDatabase()
		if err != nil {
			return err
		}
		cfg.Storage.Path = discovered
	}
	dbPath = cfg.Storage.Path
	return nil
}

// lockDir is where the merge lock lives for the configured backend.
// Server backends have no database file, so the lock sits in .crm/.
func lockDir() string {
	if cfg.Storage.Backend == storage.BackendSQLite || cfg.Storage.Backend == "" {
		return storage.LockDir(dbPath)
	}
	return storage.ProjectDir
}

// withMergeLock runs fn while holding the project merge lock. The lock is
// released before the error is returned, so callers may exit on it.
func withMergeLock(command string, fn func() error) error {
	lockPath, err := storage.AcquireMergeLock(lockDir(), command)
	if err != nil {
		return err
	}
	defer func() {
		if err := storage.ReleaseMergeLock(lockPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}()
	return fn()
}

// errReported marks a failure already shown to the user
var errReported = errors.New("failure reported")

// exitOnError prints err and exits. The store is closed first since
// os.Exit skips PersistentPostRun.
func exitOnError(err error) {
	if err == nil {
		return
	}
	if !errors.Is(err, errReported) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	if store != nil {
		_ = store.Close()
	}
	os.Exit(1)
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default: auto-discover .crm/*.db)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: .crm/config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
