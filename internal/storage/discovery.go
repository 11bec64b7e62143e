package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ProjectDir is the per-project directory holding the database, config and lock
const ProjectDir = ".crm"

// DiscoverDatabase looks for .crm/*.db in the current directory only.
// Returns the absolute path to the database file, or an error if not found.
// CRM_DB_PATH, when set, is returned as-is without discovery.
func DiscoverDatabase() (string, error) {
	if dbPath := os.Getenv("CRM_DB_PATH"); dbPath != "" {
		// Allow special values like ":memory:" or explicit paths
		return dbPath, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return discoverDatabaseInDir(dir)
}

// discoverDatabaseInDir checks for .crm/*.db in dir. It does not walk up
// the tree, so a nested project never picks up its parent's contacts.
func discoverDatabaseInDir(dir string) (string, error) {
	crmDir := filepath.Join(dir, ProjectDir)

	if info, err := os.Stat(crmDir); err == nil && info.IsDir() {
		entries, err := os.ReadDir(crmDir)
		if err == nil {
			for _, entry := range entries {
				if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".db") {
					absPath, err := filepath.Abs(filepath.Join(crmDir, entry.Name()))
					if err != nil {
						return "", fmt.Errorf("failed to get absolute path: %w", err)
					}
					return absPath, nil
				}
			}
		}
	}

	return "", fmt.Errorf(
		"no %s/*.db found in %s\n"+
			"  Run 'crm init' to create a contact store in this directory\n"+
			"  Or use --db flag to specify database path explicitly",
		ProjectDir, dir)
}

// GetProjectRoot returns the directory containing the .crm/ directory
// for a given database path.
//
// Example:
//
//	dbPath: /home/user/shop/.crm/crm.db
//	returns: /home/user/shop
func GetProjectRoot(dbPath string) (string, error) {
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	dbDir := filepath.Dir(absPath)
	if filepath.Base(dbDir) != ProjectDir {
		return "", fmt.Errorf("database must be in a %s/ directory, got: %s", ProjectDir, dbPath)
	}
	return filepath.Dir(dbDir), nil
}

// InitProject creates the .crm directory and returns the database path to
// use. The database itself is created on first connection.
func InitProject(projectDir, name string) (string, error) {
	if _, err := os.Stat(projectDir); os.IsNotExist(err) {
		return "", fmt.Errorf("project directory does not exist: %s", projectDir)
	}

	crmDir := filepath.Join(projectDir, ProjectDir)
	if err := os.MkdirAll(crmDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", ProjectDir, err)
	}

	dbName := name
	if dbName == "" {
		dbName = "crm"
	}
	if !strings.HasSuffix(dbName, ".db") {
		dbName += ".db"
	}

	dbPath := filepath.Join(crmDir, dbName)
	if _, err := os.Stat(dbPath); err == nil {
		return "", fmt.Errorf("database already exists: %s", dbPath)
	}

	// keep the lock file and local env out of version control
	ignore := filepath.Join(crmDir, ".gitignore")
	if err := os.WriteFile(ignore, []byte(mergeLockFile+"\n*.db-wal\n*.db-shm\n"), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", ignore, err)
	}

	return dbPath, nil
}
