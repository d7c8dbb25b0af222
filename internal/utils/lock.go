package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// WriteLock serialises writers of one history database across processes.
// The lock lives next to the database as <db>.lock.
type WriteLock struct {
	fl *flock.Flock
}

// NewWriteLock returns an unheld lock for the database at dbPath.
func NewWriteLock(dbPath string) *WriteLock {
	return &WriteLock{fl: flock.New(dbPath + ".lock")}
}

// Path is the lock file location.
func (l *WriteLock) Path() string {
	return l.fl.Path()
}

// Lock blocks until the lock is held. A busy lock is reported once on the
// log so a waiting command does not look hung.
func (l *WriteLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.Path()), 0o755); err != nil {
		return fmt.Errorf("history lock %s: %w", l.Path(), err)
	}
	ok, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("history lock %s: %w", l.Path(), err)
	}
	if ok {
		return nil
	}

	Log.Infof("History is busy (%s), waiting for the other writer", l.Path())
	start := time.Now()
	if err := l.fl.Lock(); err != nil {
		return fmt.Errorf("history lock %s: %w", l.Path(), err)
	}
	Log.Debugf("Got history lock after %s", time.Since(start).Round(time.Millisecond))
	return nil
}

// Unlock releases the lock. Releasing a lock that was never taken is a no-op.
func (l *WriteLock) Unlock() error {
	if !l.fl.Locked() {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("history unlock %s: %w", l.Path(), err)
	}
	return nil
}

// HistoryPath turns the configured database path into an absolute one.
// Empty means ~/.config/riskscope/riskscope.sqlite.
func HistoryPath(configured string) (string, error) {
	if configured != "" {
		return filepath.Abs(configured)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("no home directory for the default history path: %w", err)
	}
	return filepath.Join(home, ".config", "riskscope", "riskscope.sqlite"), nil
}
