package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/steveyegge/crm/internal/storage"
)

func newTestStore(t *testing.T) storage.Storage {
	t.Helper()
	s, err := storage.NewStorage(context.Background(), &storage.Config{
		Backend: storage.BackendSQLite,
		Path:    filepath.Join(t.TempDir(), ".crm", "crm.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}
