package sessions

import (
	"context"
	"testing"
	"time"

	"tprelay/internal/clock"
)

type sqliteTestHarness struct {
	Ctx      context.Context
	Store    *SQLiteStore
	Clock    *clock.FakeClock
	Registry *Registry
}

func newSQLiteTestHarness(t *testing.T) *sqliteTestHarness {
	t.Helper()

	dbPath := t.TempDir() + "/state.db"
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	fake := clock.Fake(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	return &sqliteTestHarness{
		Ctx:      context.Background(),
		Store:    store,
		Clock:    fake,
		Registry: NewRegistry(store, fake, nil),
	}
}
