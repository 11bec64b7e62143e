package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverDatabaseInDirCurrentDirOnly(t *testing.T) {
	tmpRoot := t.TempDir()
	parentDir := filepath.Join(tmpRoot, "parent")
	childDir := filepath.Join(parentDir, "child")

	require.NoError(t, os.MkdirAll(filepath.Join(parentDir, ProjectDir), 0755))
	parentDB := filepath.Join(parentDir, ProjectDir, "crm.db")
	require.NoError(t, os.WriteFile(parentDB, nil, 0644))
	require.NoError(t, os.MkdirAll(childDir, 0755))

	_, err := discoverDatabaseInDir(childDir)
	assert.Error(t, err, "child must not see the parent's database")

	dbPath, err := discoverDatabaseInDir(parentDir)
	require.NoError(t, err)
	assert.Equal(t, parentDB, dbPath)
}

func TestDiscoverDatabaseInDirIgnoresNonDBFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ProjectDir), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectDir, "config.yaml"), nil, 0644))

	_, err := discoverDatabaseInDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crm init")
}

func TestDiscoverDatabaseEnvOverride(t *testing.T) {
	t.Setenv("CRM_DB_PATH", ":memory:")
	path, err := DiscoverDatabase()
	require.NoError(t, err)
	assert.Equal(t, ":memory:", path)

	t.Setenv("CRM_DB_PATH", "/tmp/contacts.db")
	path, err = DiscoverDatabase()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/contacts.db", path)
}

func TestGetProjectRoot(t *testing.T) {
	tests := []struct {
		name     string
		dbPath   string
		expected string
		wantErr  bool
	}{
		{"valid path", "/home/user/shop/.crm/crm.db", "/home/user/shop", false},
		{"nested project", "/a/b/c/.crm/x.db", "/a/b/c", false},
		{"not in .crm", "/home/user/shop/crm.db", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GetProjectRoot(tt.dbPath)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestInitProject(t *testing.T) {
	dir := t.TempDir()

	dbPath, err := InitProject(dir, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ProjectDir, "crm.db"), dbPath)
	assert.FileExists(t, filepath.Join(dir, ProjectDir, ".gitignore"))

	require.NoError(t, os.WriteFile(dbPath, nil, 0644))
	_, err = InitProject(dir, "crm")
	assert.Error(t, err, "existing database must not be clobbered")

	_, err = InitProject(filepath.Join(dir, "missing"), "")
	assert.Error(t, err)
}
