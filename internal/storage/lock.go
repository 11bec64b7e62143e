package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

const mergeLockFile = ".merge-lock"

// lockWriteGrace is how long an empty lock file counts as being written
const lockWriteGrace = 10 * time.Second

// MergeLock is the lock file format that keeps a second crm process from
// merging while one is already in flight. Merges are multi-step and not
// transactional, so two interleaved merges over the same group would race
// on the survivor write.
type MergeLock struct {
	Holder    string    `json:"holder"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
	Command   string    `json:"command"`
}

// LockDir returns the directory the merge lock lives in for a database path.
// Databases outside a .crm/ directory (or ":memory:") lock next to the file.
func LockDir(dbPath string) string {
	if root, err := GetProjectRoot(dbPath); err == nil {
		return filepath.Join(root, ProjectDir)
	}
	if dbPath == "" || dbPath == ":memory:" {
		return os.TempDir()
	}
	return filepath.Dir(dbPath)
}

// AcquireMergeLock creates the merge lock file in dir with an exclusive
// create, so of several concurrent callers exactly one succeeds. A lock left
// behind by a dead process on this host is removed and the create retried
// once. Returns the lock file path for ReleaseMergeLock.
func AcquireMergeLock(dir, command string) (lockPath string, err error) {
	lockPath = filepath.Join(dir, mergeLockFile)

	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to get hostname: %w", err)
	}
	data, err := json.MarshalIndent(MergeLock{
		Holder:    "crm",
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
		Command:   command,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal lock: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create lock directory: %w", err)
	}

	err = createLockFile(lockPath, data)
	if errors.Is(err, fs.ErrExist) {
		if held := heldLockError(lockPath); held != nil {
			return "", held
		}
		// stale: remove and race the other takers for a fresh create
		if rmErr := os.Remove(lockPath); rmErr != nil && !os.IsNotExist(rmErr) {
			return "", fmt.Errorf("failed to remove stale merge lock: %w", rmErr)
		}
		err = createLockFile(lockPath, data)
		if errors.Is(err, fs.ErrExist) {
			if held := heldLockError(lockPath); held != nil {
				return "", held
			}
			return "", fmt.Errorf("merge lock %s was taken concurrently, try again", lockPath)
		}
	}
	if err != nil {
		return "", fmt.Errorf("failed to create merge lock: %w", err)
	}
	return lockPath, nil
}

// createLockFile writes data to path, failing with fs.ErrExist if the file
// is already there.
func createLockFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

// heldLockError returns an error naming the holder when the lock at path
// belongs to a live process. An unreadable or stale lock returns nil.
func heldLockError(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var existing MergeLock
	if err := json.Unmarshal(data, &existing); err != nil {
		// a holder between create and write looks like this
		if len(data) == 0 {
			if info, statErr := os.Stat(path); statErr == nil && time.Since(info.ModTime()) < lockWriteGrace {
				return fmt.Errorf("another crm process is acquiring the merge lock")
			}
		}
		return nil
	}
	if !isProcessAlive(existing.PID, existing.Hostname) {
		return nil
	}
	return fmt.Errorf("another crm %s is already running (PID %d on %s, started %s)",
		existing.Command, existing.PID, existing.Hostname, existing.StartedAt.Format(time.RFC3339))
}

// ReleaseMergeLock removes the lock file. A missing file is not an error.
func ReleaseMergeLock(lockPath string) error {
	if lockPath == "" {
		return nil
	}
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove merge lock: %w", err)
	}
	return nil
}

// isProcessAlive checks if a process with the given PID exists on the given
// hostname. Processes on other hosts cannot be checked and count as alive.
func isProcessAlive(pid int, hostname string) bool {
	currentHost, err := os.Hostname()
	if err != nil {
		return true
	}
	if !strings.EqualFold(hostname, currentHost) {
		return true
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Signal 0 probes without delivering anything
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM: exists, owned by someone else
	return err == syscall.EPERM
}
