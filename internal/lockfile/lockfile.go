// Package lockfile implements the crash-safe single-instance lock described
// in spec.md §4.1. The protocol (write PID to a temp file, hard-link it to
// the well-known lock path, unlink the temp name) is a direct port of
// RegistrarWorker's lockfile handling in the Blockstack client this spec was
// distilled from; os.Link gives the same atomic hard-link semantics as
// Python's os.link on POSIX.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Lock represents an acquired lockfile. Release removes the lock path.
type Lock struct {
	path string
}

// ErrHeld is returned by Acquire when another process already holds a valid
// (non-stale) lock.
var ErrHeld = fmt.Errorf("lockfile: already held by a running registrar")

// Path returns the lockfile path for a given config directory, per spec.md
// §4.1: "<configDir>/registrar.lock".
func Path(configDir string) string {
	return filepath.Join(configDir, "registrar.lock")
}

// Acquire attempts to take ownership of the lockfile at path. If a stale
// lock (PID not equal to the current process's PID) is found, it is removed
// first, matching RegistrarWorker.run()'s stale-lock recovery in the
// original implementation. Only PID equality is checked — spec.md §9 notes
// this as a known weak liveness check and explicitly preserves it rather
// than signalling the PID.
func Acquire(path string) (*Lock, error) {
	if _, err := os.Stat(path); err == nil {
		if !isStale(path) {
			return nil, ErrHeld
		}
		_ = os.Remove(path)
	}

	dir := filepath.Dir(path)
	tmpPath := filepath.Join(dir, ".registrar.lock."+uuid.NewString())

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("lockfile: create temp: %w", err)
	}

	if _, err := f.WriteString(strconv.Itoa(os.Getpid()) + "\n"); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("lockfile: write pid: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("lockfile: close temp: %w", err)
	}

	if err := os.Link(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return nil, ErrHeld
	}
	os.Remove(tmpPath)

	return &Lock{path: path}, nil
}

// Release removes the lockfile. It is idempotent and safe to call more than
// once (e.g. from a deferred cleanup and an explicit shutdown path).
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	err := os.Remove(l.path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// isStale reports whether the lockfile at path belongs to a PID other than
// this process's. A corrupt or unreadable lockfile is treated as stale.
func isStale(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return true
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return true
	}
	return pid != os.Getpid()
}
