package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/steveyegge/crm/internal/config"
	"github.com/steveyegge/crm/internal/storage"
)

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Initialize a contact store in the current directory",
	Long: `Initialize a contact store by creating a .crm/ directory with a SQLite
database and a default config file.

This creates:
  - .crm/<name>.db (SQLite database, default name: crm)
  - .crm/config.yaml (written only if missing)
  - .crm/.gitignore

Example:
  cd ~/shop
  crm init              # Creates .crm/crm.db
  crm init customers    # Creates .crm/customers.db`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{skipStoreAnnotation: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		name := ""
		if len(args) > 0 {
			name = args[0]
		}

		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to get current directory: %v\n", err)
			os.Exit(1)
		}

		path, err := storage.InitProject(cwd, name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		// Opening the database applies the schema
		ctx := context.Background()
		db, err := storage.NewStorage(ctx, &storage.Config{Backend: storage.BackendSQLite, Path: path})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to initialize database: %v\n", err)
			os.Exit(1)
		}
		_ = db.Close()

		configFile := filepath.Join(cwd, config.DefaultPath)
		wroteConfig, err := writeDefaultConfig(configFile, path, cwd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s Initialized contact store\n\n", green("✓"))
		fmt.Printf("  Database: %s\n", cyan(path))
		if wroteConfig {
			fmt.Printf("  Config:   %s\n", cyan(configFile))
		} else {
			fmt.Printf("  Config:   %s %s\n", cyan(configFile), gray("(kept existing)"))
		}
		fmt.Println()
		fmt.Printf("  Next: %s\n\n", gray("crm import contacts.json && crm detect"))
	},
}

// writeDefaultConfig writes the built-in config to path unless a file is
// already there. The database path is stored relative to root.
func writeDefaultConfig(path, dbFile, root string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	c := config.Default()
	if rel, err := filepath.Rel(root, dbFile); err == nil {
		c.Storage.Path = rel
	} else {
		c.Storage.Path = dbFile
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return false, fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

func init() {
	rootCmd.AddCommand(initCmd)
}
