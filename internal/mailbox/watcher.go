package mailbox

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tprelay/internal/clock"
)

const (
	DefaultPollInterval = 90 * time.Second
	DefaultSearchWindow = 24 * time.Hour
	DefaultMaxParallel  = 4
)

// Disposition is what the watcher should do with a message after a
// handler has seen it.
type Disposition int

const (
	// Retry leaves the message unseen so the next scan offers it again.
	Retry Disposition = iota
	// Ignore leaves the message unseen but never offers it again during
	// this process's lifetime.
	Ignore
	// Done means the handler recorded the message as processed; the
	// watcher sets \Seen on the server.
	Done
)

func (d Disposition) String() string {
	switch d {
	case Ignore:
		return "ignore"
	case Done:
		return "done"
	default:
		return "retry"
	}
}

type Handler interface {
	Handle(ctx context.Context, email Email) Disposition
}

type HandlerFunc func(ctx context.Context, email Email) Disposition

func (f HandlerFunc) Handle(ctx context.Context, email Email) Disposition {
	return f(ctx, email)
}

type WatcherConfig struct {
	Handler      Handler
	Clock        clock.Clock
	Logger       *slog.Logger
	PollInterval time.Duration
	SearchWindow time.Duration
	MaxParallel  int
}

// Watcher scans a mailbox for unseen replies. A Watcher outlives the
// connections it runs on so that the set of ignored messages survives
// reconnects.
type Watcher struct {
	cfg WatcherConfig

	mu      sync.Mutex
	ignored map[string]struct{}
}

func NewWatcher(cfg WatcherConfig) *Watcher {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.SearchWindow <= 0 {
		cfg.SearchWindow = DefaultSearchWindow
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	return &Watcher{cfg: cfg, ignored: map[string]struct{}{}}
}

// Run scans once, then rescans whenever the server reports new mail or
// the poll interval passes. It returns the first transport error, or the
// context error once ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, conn Conn) error {
	for {
		if err := w.Scan(ctx, conn); err != nil {
			return err
		}
		if err := conn.WaitForChange(ctx, w.cfg.PollInterval); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// Scan processes every unseen message inside the search window once.
func (w *Watcher) Scan(ctx context.Context, conn Conn) error {
	since := w.cfg.Clock.Now().Add(-w.cfg.SearchWindow)
	uids, err := conn.SearchUnseen(ctx, since)
	if err != nil {
		return err
	}

	validity := conn.UIDValidity()
	pending := make([]uint32, 0, len(uids))
	for _, uid := range uids {
		if !w.isIgnored(uidKey(validity, uid)) {
			pending = append(pending, uid)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	messages, err := conn.Fetch(ctx, pending)
	if err != nil {
		return err
	}
	w.cfg.Logger.Debug("fetched unseen messages", "count", len(messages))

	emails := make([]Email, 0, len(messages))
	for _, raw := range messages {
		email, err := ParseMessage(bytes.NewReader(raw.Body))
		if err != nil {
			w.cfg.Logger.Warn("skipping unparseable message", "uid", raw.UID, "error", err)
			w.ignore(uidKey(validity, raw.UID))
			continue
		}
		email.UID = raw.UID
		email.UIDValidity = validity
		emails = append(emails, email)
	}

	dispositions := w.handleBatch(ctx, emails)
	for i, email := range emails {
		switch dispositions[i] {
		case Done:
			if err := conn.MarkSeen(ctx, email.UID); err != nil {
				return err
			}
		case Ignore:
			w.ignore(uidKey(validity, email.UID))
		}
	}
	return nil
}

// handleBatch runs the handler for each email concurrently, at most
// MaxParallel at a time.
func (w *Watcher) handleBatch(ctx context.Context, emails []Email) []Disposition {
	dispositions := make([]Disposition, len(emails))
	slots := make(chan struct{}, w.cfg.MaxParallel)

	var wg sync.WaitGroup
	for i, email := range emails {
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return dispositions
		}

		wg.Add(1)
		go func(i int, email Email) {
			defer wg.Done()
			defer func() { <-slots }()
			dispositions[i] = w.cfg.Handler.Handle(ctx, email)
		}(i, email)
	}
	wg.Wait()
	return dispositions
}

func (w *Watcher) isIgnored(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.ignored[key]
	return ok
}

func (w *Watcher) ignore(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ignored[key] = struct{}{}
}

func uidKey(validity, uid uint32) string {
	return fmt.Sprintf("%d:%d", validity, uid)
}
