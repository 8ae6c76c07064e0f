package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/steveyegge/muster/internal/constants"
)

// Lock is the cross-process advisory lock guarding the state file.
//
// The daemon takes it once per tick and releases it before sleeping, so
// management commands can interleave between ticks. Holders must never
// keep it across a blocking external call.
type Lock struct {
	fl *flock.Flock
}

// NewLock returns the state lock for a depot root.
func NewLock(root string) *Lock {
	return &Lock{fl: flock.New(filepath.Join(root, constants.DirMuster, constants.FileStateLock))}
}

// TryLock attempts to acquire the lock without blocking.
// Returns false if another process holds it.
func (l *Lock) TryLock() (bool, error) {
	ok, err := l.fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquiring state lock: %w", err)
	}
	return ok, nil
}

// Lock acquires the lock, blocking until it is available.
func (l *Lock) Lock() error {
	if err := l.fl.Lock(); err != nil {
		return fmt.Errorf("acquiring state lock: %w", err)
	}
	return nil
}

// Unlock releases the lock.
func (l *Lock) Unlock() error {
	return l.fl.Unlock()
}

// WithLock runs fn while holding the lock, blocking to acquire it.
// This is the path management commands use; the daemon uses TryLock so a
// busy lock skips the tick instead of stalling the loop.
func WithLock(root string, fn func() error) error {
	if err := os.MkdirAll(filepath.Join(root, constants.DirMuster), 0755); err != nil {
		return fmt.Errorf("creating depot directory: %w", err)
	}
	l := NewLock(root)
	if err := l.Lock(); err != nil {
		return err
	}
	defer l.Unlock() //nolint:errcheck // release is best-effort
	return fn()
}

// Mutate loads the state under the lock, applies fn, and saves it if fn
// succeeds. The standard read-modify-write cycle for CLI commands.
func Mutate(root string, fn func(st *State) error) error {
	return WithLock(root, func() error {
		st, err := Load(root)
		if err != nil {
			return err
		}
		if err := fn(st); err != nil {
			return err
		}
		return st.Save(root)
	})
}
