package processed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tprelay/internal/clock"
)

// Ledger owns the processed-message store for the relay process. Markers
// past the retention window are pruned when the ledger opens.
type Ledger struct {
	store     Store
	clock     clock.Clock
	logger    *slog.Logger
	retention time.Duration
	mu        sync.Mutex
}

func OpenLedger(ctx context.Context, store Store, c clock.Clock, retention time.Duration, logger *slog.Logger) (*Ledger, error) {
	if c == nil {
		c = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if retention <= 0 {
		retention = DefaultRetention
	}

	ledger := &Ledger{
		store:     store,
		clock:     c,
		logger:    logger,
		retention: retention,
	}

	removed, err := store.Prune(ctx, c.Now().Add(-retention))
	if err != nil {
		return nil, fmt.Errorf("prune processed markers on open: %w", err)
	}
	if removed > 0 {
		logger.Info("pruned processed markers", "removed", removed, "retention", retention)
	}
	return ledger, nil
}

func (l *Ledger) Seen(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.store.Has(ctx, key)
}

func (l *Ledger) Record(ctx context.Context, key, token string, outcome Outcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	marker := Marker{
		Key:         key,
		Token:       token,
		Outcome:     outcome,
		ProcessedAt: l.clock.Now().UTC(),
	}
	if err := l.store.Mark(ctx, marker); err != nil {
		return fmt.Errorf("record processed marker %s: %w", key, err)
	}
	return nil
}
