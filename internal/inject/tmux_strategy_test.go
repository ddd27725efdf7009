package inject

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"tprelay/internal/clock"
	"tprelay/internal/tmux"
)

func newTestTmuxStrategy(client tmux.Client, c *clock.FakeClock) *TmuxStrategy {
	return NewTmuxStrategy(TmuxConfig{
		Client:                client,
		Clock:                 c,
		CreateMissing:         true,
		LaunchCommand:         "claude",
		FallbackLaunchCommand: "/opt/bin/claude",
	})
}

func TestTmuxStrategyScriptedConfirmation(t *testing.T) {
	t.Parallel()

	fake := newFakeTmux("proceed? 1.Yes 2.Yes-dont-ask", "in progress…", "> ")
	c := clock.Fake(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	strategy := newTestTmuxStrategy(fake, c)

	attempt, err := strategy.Attempt(context.Background(), Target{Token: "XYZ789", TmuxSession: "claude-xyz"}, "run the build")
	if err != nil {
		t.Fatalf("Attempt returned error: %v", err)
	}

	expected := []string{
		"has claude-xyz",
		"keys C-u",
		"literal run the build",
		"keys Enter",
		"capture",
		"keys 2",
		"capture",
		"capture",
	}
	if got := fake.Calls(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("unexpected calls:\n got %#v\nwant %#v", got, expected)
	}
	if !reflect.DeepEqual(attempt.Confirmations, []string{"proceed-multi-option:2"}) {
		t.Fatalf("unexpected confirmations: %#v", attempt.Confirmations)
	}
	if attempt.Target != "tmux:claude-xyz" || attempt.Manual {
		t.Fatalf("unexpected attempt: %#v", attempt)
	}
	if waits := c.Waits(); len(waits) != 3 {
		t.Fatalf("expected 3 confirmation waits, got %v", waits)
	}
}

func TestTmuxStrategyExhaustionIsNotFailure(t *testing.T) {
	t.Parallel()

	fake := newFakeTmux("in progress…")
	c := clock.Fake(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	strategy := newTestTmuxStrategy(fake, c)

	if _, err := strategy.Attempt(context.Background(), Target{Token: "A1", TmuxSession: "s1"}, "ls"); err != nil {
		t.Fatalf("expected exhaustion to succeed, got %v", err)
	}

	captures := 0
	for _, call := range fake.Calls() {
		if call == "capture" {
			captures++
		}
	}
	if captures != DefaultConfirmAttempts {
		t.Fatalf("expected %d captures, got %d", DefaultConfirmAttempts, captures)
	}
}

func TestTmuxStrategyStopsOnError(t *testing.T) {
	t.Parallel()

	fake := newFakeTmux("Error: rate limited", "> ")
	c := clock.Fake(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	strategy := newTestTmuxStrategy(fake, c)

	if _, err := strategy.Attempt(context.Background(), Target{Token: "A1", TmuxSession: "s1"}, "ls"); err != nil {
		t.Fatalf("Attempt returned error: %v", err)
	}
	calls := fake.Calls()
	if calls[len(calls)-1] != "capture" || len(calls) != 5 {
		t.Fatalf("expected a single capture before aborting, got %#v", calls)
	}
}

func TestTmuxStrategyUnrecognizedWaitsLonger(t *testing.T) {
	t.Parallel()

	fake := newFakeTmux("compiling module graph", "> ")
	c := clock.Fake(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	strategy := newTestTmuxStrategy(fake, c)

	if _, err := strategy.Attempt(context.Background(), Target{Token: "A1", TmuxSession: "s1"}, "ls"); err != nil {
		t.Fatalf("Attempt returned error: %v", err)
	}
	expected := []time.Duration{DefaultConfirmInterval, DefaultConfirmInterval, DefaultConfirmInterval}
	if got := c.Waits(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("unexpected waits: %v", got)
	}
}

func TestTmuxStrategyUnavailable(t *testing.T) {
	t.Parallel()

	fake := newFakeTmux()
	fake.available = false
	strategy := newTestTmuxStrategy(fake, clock.Fake(time.Now()))

	_, err := strategy.Attempt(context.Background(), Target{Token: "A1", TmuxSession: "s1"}, "ls")
	if !errors.Is(err, ErrAutomationUnavailable) {
		t.Fatalf("expected ErrAutomationUnavailable, got %v", err)
	}
}

func TestTmuxStrategyLaunchesMissingSessionWithFallback(t *testing.T) {
	t.Parallel()

	fake := newFakeTmux("> ")
	fake.alive = false
	fake.newSessionErr = []error{errors.New("tmux new-session: exit status 127"), nil}
	c := clock.Fake(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	strategy := newTestTmuxStrategy(fake, c)

	if _, err := strategy.Attempt(context.Background(), Target{Token: "A1", TmuxSession: "s1", WorkDir: "/src/app"}, "ls"); err != nil {
		t.Fatalf("Attempt returned error: %v", err)
	}

	calls := fake.Calls()
	if calls[1] != "new s1 /src/app claude" || calls[2] != "new s1 /src/app /opt/bin/claude" {
		t.Fatalf("expected primary then fallback launch, got %#v", calls)
	}
	if waits := c.Waits(); waits[0] != DefaultWarmUp {
		t.Fatalf("expected warm-up wait first, got %v", waits)
	}
}

func TestTmuxStrategyNegativeWarmUpSkipsWait(t *testing.T) {
	t.Parallel()

	fake := newFakeTmux("> ")
	fake.alive = false
	c := clock.Fake(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	strategy := NewTmuxStrategy(TmuxConfig{
		Client:          fake,
		Clock:           c,
		CreateMissing:   true,
		WarmUp:          -1,
		ConfirmInterval: time.Second,
	})

	if _, err := strategy.Attempt(context.Background(), Target{Token: "A1", TmuxSession: "s1"}, "ls"); err != nil {
		t.Fatalf("Attempt returned error: %v", err)
	}
	if waits := c.Waits(); len(waits) == 0 || waits[0] != time.Second {
		t.Fatalf("expected the first wait to be a confirmation check, got %v", waits)
	}
}

func TestTmuxStrategyLaunchFailure(t *testing.T) {
	t.Parallel()

	fake := newFakeTmux()
	fake.alive = false
	fake.newSessionErr = []error{errors.New("boom"), errors.New("boom again")}
	strategy := newTestTmuxStrategy(fake, clock.Fake(time.Now()))

	_, err := strategy.Attempt(context.Background(), Target{Token: "A1", TmuxSession: "s1"}, "ls")
	if !errors.Is(err, ErrLaunchFailed) {
		t.Fatalf("expected ErrLaunchFailed, got %v", err)
	}
}

func TestTmuxStrategyMissingSessionWithoutCreate(t *testing.T) {
	t.Parallel()

	fake := newFakeTmux()
	fake.alive = false
	strategy := NewTmuxStrategy(TmuxConfig{Client: fake, Clock: clock.Fake(time.Now())})

	_, err := strategy.Attempt(context.Background(), Target{Token: "A1", TmuxSession: "s1"}, "ls")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestTmuxStrategySendFailure(t *testing.T) {
	t.Parallel()

	fake := newFakeTmux()
	fake.sendErr = errors.New("tmux send-keys: can't find pane")
	strategy := newTestTmuxStrategy(fake, clock.Fake(time.Now()))

	_, err := strategy.Attempt(context.Background(), Target{Token: "A1", TmuxSession: "s1"}, "ls")
	if !errors.Is(err, ErrInjectionFailed) {
		t.Fatalf("expected ErrInjectionFailed, got %v", err)
	}
}
