package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/crm/internal/config"
	"github.com/steveyegge/crm/internal/storage"
)

func TestWriteDefaultConfig(t *testing.T) {
	t.Setenv("CRM_DB_PATH", "")
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, storage.ProjectDir), 0755))
	path := filepath.Join(root, storage.ProjectDir, "config.yaml")
	dbFile := filepath.Join(root, storage.ProjectDir, "shop.db")

	wrote, err := writeDefaultConfig(path, dbFile, root)
	require.NoError(t, err)
	assert.True(t, wrote)

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(storage.ProjectDir, "shop.db"), loaded.Storage.Path)
	assert.Equal(t, config.Default().Dedup.MergeTimeout, loaded.Dedup.MergeTimeout)

	// an existing file is left alone
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0644))
	wrote, err = writeDefaultConfig(path, dbFile, root)
	require.NoError(t, err)
	assert.False(t, wrote)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "debug")
}
