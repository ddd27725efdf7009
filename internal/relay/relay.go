// Package relay wires the mailbox watcher to the injection engine and
// keeps the mailbox connection alive.
package relay

import (
	"context"
	"log/slog"
	"time"

	"tprelay/internal/clock"
	"tprelay/internal/mailbox"
)

const DefaultReconnectBackoff = 10 * time.Second

type Config struct {
	Dialer  mailbox.Dialer
	Watcher *mailbox.Watcher
	Clock   clock.Clock
	Logger  *slog.Logger
	Backoff time.Duration
}

type Relay struct {
	cfg Config
}

func New(cfg Config) *Relay {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultReconnectBackoff
	}
	return &Relay{cfg: cfg}
}

// Run connects and watches until ctx is cancelled. Connection failures of
// any kind are logged and retried after the backoff, indefinitely.
func (r *Relay) Run(ctx context.Context) error {
	for {
		err := r.session(ctx)
		if ctx.Err() != nil {
			r.cfg.Logger.Info("relay stopped")
			return nil
		}
		r.cfg.Logger.Warn("mailbox connection lost", "error", err, "retry_in", r.cfg.Backoff)
		if err := clock.Sleep(ctx, r.cfg.Clock, r.cfg.Backoff); err != nil {
			r.cfg.Logger.Info("relay stopped")
			return nil
		}
	}
}

func (r *Relay) session(ctx context.Context) error {
	conn, err := r.cfg.Dialer.Dial(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			r.cfg.Logger.Debug("close mailbox connection", "error", err)
		}
	}()
	return r.cfg.Watcher.Run(ctx, conn)
}
