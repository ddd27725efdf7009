package inject

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TokenLocks hands out one lock per session token. Acquire gives up after
// the timeout with ErrLockTimeout.
type TokenLocks struct {
	timeout time.Duration
	locks   sync.Map // token -> chan struct{}
}

func NewTokenLocks(timeout time.Duration) *TokenLocks {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &TokenLocks{timeout: timeout}
}

func (l *TokenLocks) sem(token string) chan struct{} {
	actual, _ := l.locks.LoadOrStore(token, make(chan struct{}, 1))
	return actual.(chan struct{})
}

func (l *TokenLocks) Acquire(ctx context.Context, token string) error {
	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case l.sem(token) <- struct{}{}:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w %s after %s", ErrLockTimeout, token, l.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *TokenLocks) Release(token string) {
	select {
	case <-l.sem(token):
	default:
	}
}
