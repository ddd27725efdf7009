// Package lock keeps a second relay from watching the same mailbox and
// writing the same stores.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

var ErrHeld = errors.New("another relay is already running")

type Guard struct {
	handle *flock.Flock
}

// Acquire takes an exclusive flock on path without waiting.
func Acquire(path string) (*Guard, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	handle := flock.New(path)
	locked, err := handle.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock held: %s)", ErrHeld, path)
	}
	return &Guard{handle: handle}, nil
}

func (g *Guard) Path() string {
	return g.handle.Path()
}

func (g *Guard) Release() error {
	if g == nil || g.handle == nil {
		return nil
	}
	if err := g.handle.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	g.handle = nil
	return nil
}
