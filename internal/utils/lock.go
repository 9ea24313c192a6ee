package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 250 * time.Millisecond

// StateLock is an advisory lock file next to the state database. Writers hold
// it so two runs never interleave their updates.
type StateLock struct {
	file *flock.Flock
}

func NewStateLock(dbPath string) (*StateLock, error) {
	abs, err := GetAbsDBPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("resolving state lock path: %w", err)
	}
	return &StateLock{file: flock.New(abs + ".lock")}, nil
}

func (l *StateLock) Path() string { return l.file.Path() }

// Lock blocks until the lock is held.
func (l *StateLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.Path()), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	ok, err := l.file.TryLock()
	if err != nil {
		return fmt.Errorf("locking %s: %w", l.Path(), err)
	}
	if ok {
		return nil
	}

	Log.Warnf("State database is busy, waiting for %s", l.Path())
	if _, err := l.file.TryLockContext(context.Background(), lockRetryDelay); err != nil {
		return fmt.Errorf("locking %s: %w", l.Path(), err)
	}
	return nil
}

func (l *StateLock) Unlock() error {
	if err := l.file.Unlock(); err != nil {
		return fmt.Errorf("unlocking %s: %w", l.Path(), err)
	}
	return nil
}

// GetAbsDBPath resolves the state database path. Empty means
// ~/.config/leaguebundle/state.sqlite.
func GetAbsDBPath(dbPath string) (string, error) {
	if dbPath != "" {
		return filepath.Abs(dbPath)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "leaguebundle", "state.sqlite"), nil
}
