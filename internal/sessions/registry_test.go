package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"tprelay/internal/clock"
)

func newMemoryRegistry() (*Registry, *MemoryStore, *clock.FakeClock) {
	store := NewMemoryStore()
	fake := clock.Fake(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	return NewRegistry(store, fake, nil), store, fake
}

func TestResolveIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry, _, _ := newMemoryRegistry()

	created, err := registry.Create(ctx, CreateParams{Token: "abc123", TmuxSession: "claude-main", WorkDir: "/src/app"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if created.Token != "ABC123" {
		t.Fatalf("expected normalized token ABC123, got %q", created.Token)
	}

	session, found, err := registry.Resolve(ctx, "aBc123")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if !found {
		t.Fatalf("expected session to resolve")
	}
	if session.TmuxSession != "claude-main" || session.WorkDir != "/src/app" {
		t.Fatalf("unexpected session: %#v", session)
	}
	if session.Kind != KindInteractiveTerminal {
		t.Fatalf("expected default kind, got %q", session.Kind)
	}
}

func TestResolveReturnsNotFoundAtExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry, store, fake := newMemoryRegistry()

	if _, err := registry.Create(ctx, CreateParams{Token: "EXP1", TmuxSession: "s", TTL: time.Hour}); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	fake.Advance(time.Hour)

	_, found, err := registry.Resolve(ctx, "EXP1")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if found {
		t.Fatalf("expected expired session to be not-found")
	}

	if _, stillStored, _ := store.GetSession(ctx, "EXP1"); stillStored {
		t.Fatalf("expected expired session to be deleted lazily")
	}
}

func TestResolveReturnsNotFoundWhenLimitReached(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry, _, _ := newMemoryRegistry()

	if _, err := registry.Create(ctx, CreateParams{Token: "LIM1", TmuxSession: "s", CommandLimit: 2}); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, found, _ := registry.Resolve(ctx, "LIM1"); !found {
			t.Fatalf("expected session usable before command %d", i+1)
		}
		if _, err := registry.RecordCommand(ctx, "LIM1"); err != nil {
			t.Fatalf("RecordCommand error: %v", err)
		}
	}

	if _, found, _ := registry.Resolve(ctx, "LIM1"); found {
		t.Fatalf("expected exhausted session to be not-found")
	}
}

func TestRecordCommandMissingSession(t *testing.T) {
	t.Parallel()

	registry, _, _ := newMemoryRegistry()
	if _, err := registry.RecordCommand(context.Background(), "NOPE"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestCreateRejectsDuplicateAndInvalidTokens(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry, _, _ := newMemoryRegistry()

	if _, err := registry.Create(ctx, CreateParams{Token: "DUP", TmuxSession: "s"}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := registry.Create(ctx, CreateParams{Token: "dup", TmuxSession: "s"}); !errors.Is(err, ErrSessionExists) {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}
	if _, err := registry.Create(ctx, CreateParams{Token: "bad-token", TmuxSession: "s"}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestCreateGeneratesToken(t *testing.T) {
	t.Parallel()

	registry, _, _ := newMemoryRegistry()
	session, err := registry.Create(context.Background(), CreateParams{TmuxSession: "s"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if len(session.Token) != 8 || !ValidToken(session.Token) {
		t.Fatalf("unexpected generated token %q", session.Token)
	}
	if session.Token != NormalizeToken(session.Token) {
		t.Fatalf("expected upper-case generated token, got %q", session.Token)
	}
}
