package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeLockExclusive(t *testing.T) {
	dir := t.TempDir()

	lockPath, err := AcquireMergeLock(dir, "sync")
	require.NoError(t, err)
	assert.FileExists(t, lockPath)

	// held by this (live) process
	_, err = AcquireMergeLock(dir, "merge")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync")

	require.NoError(t, ReleaseMergeLock(lockPath))
	assert.NoFileExists(t, lockPath)
	assert.NoError(t, ReleaseMergeLock(lockPath), "double release is harmless")

	lockPath, err = AcquireMergeLock(dir, "merge")
	require.NoError(t, err)
	require.NoError(t, ReleaseMergeLock(lockPath))
}

func TestMergeLockStaleIsTakenOver(t *testing.T) {
	dir := t.TempDir()
	hostname, err := os.Hostname()
	require.NoError(t, err)

	stale, err := json.Marshal(MergeLock{
		Holder:    "crm",
		PID:       999999999,
		Hostname:  hostname,
		StartedAt: time.Now().Add(-time.Hour),
		Command:   "sync",
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, mergeLockFile), stale, 0644))

	lockPath, err := AcquireMergeLock(dir, "merge")
	require.NoError(t, err)
	defer func() { _ = ReleaseMergeLock(lockPath) }()

	data, err := os.ReadFile(lockPath)
	require.NoError(t, err)
	var lock MergeLock
	require.NoError(t, json.Unmarshal(data, &lock))
	assert.Equal(t, os.Getpid(), lock.PID)
	assert.Equal(t, "merge", lock.Command)
}

func TestMergeLockConcurrentAcquire(t *testing.T) {
	const acquirers = 8

	for round := 0; round < 20; round++ {
		dir := t.TempDir()

		var wg sync.WaitGroup
		paths := make(chan string, acquirers)
		start := make(chan struct{})
		for i := 0; i < acquirers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if p, err := AcquireMergeLock(dir, "sync"); err == nil {
					paths <- p
				}
			}()
		}
		close(start)
		wg.Wait()
		close(paths)

		var got []string
		for p := range paths {
			got = append(got, p)
		}
		require.Len(t, got, 1, "round %d: exactly one acquirer holds the lock", round)
		require.NoError(t, ReleaseMergeLock(got[0]))
	}
}

func TestMergeLockEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, mergeLockFile)
	require.NoError(t, os.WriteFile(path, nil, 0644))

	// just created: another process is still writing it
	_, err := AcquireMergeLock(dir, "merge")
	require.Error(t, err)

	// left behind by a crash mid-write
	old := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(path, old, old))
	lockPath, err := AcquireMergeLock(dir, "merge")
	require.NoError(t, err)
	require.NoError(t, ReleaseMergeLock(lockPath))
}

func TestMergeLockRemoteHostCountsAsAlive(t *testing.T) {
	assert.True(t, isProcessAlive(1, "some-other-host.invalid"))
}

func TestLockDir(t *testing.T) {
	assert.Equal(t, filepath.Join("/srv/shop", ProjectDir), LockDir("/srv/shop/.crm/crm.db"))
	assert.Equal(t, "/data", LockDir("/data/contacts.db"))
	assert.Equal(t, os.TempDir(), LockDir(":memory:"))
}
