package inject

import (
	"context"
	"errors"
	"strings"
	"sync"

	"tprelay/internal/wezterm"
)

type fakeTmux struct {
	mu            sync.Mutex
	available     bool
	alive         bool
	captures      []string
	newSessionErr []error
	sendErr       error
	calls         []string
}

func newFakeTmux(captures ...string) *fakeTmux {
	return &fakeTmux{available: true, alive: true, captures: captures}
}

func (f *fakeTmux) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeTmux) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeTmux) Available(context.Context) bool {
	return f.available
}

func (f *fakeTmux) HasSession(_ context.Context, name string) (bool, error) {
	f.record("has " + name)
	return f.alive, nil
}

func (f *fakeTmux) NewSession(_ context.Context, name, workDir, command string) error {
	f.record("new " + name + " " + workDir + " " + command)
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.newSessionErr) > 0 {
		err := f.newSessionErr[0]
		f.newSessionErr = f.newSessionErr[1:]
		if err != nil {
			return err
		}
	}
	f.alive = true
	return nil
}

func (f *fakeTmux) SendLiteral(_ context.Context, _ string, text string) error {
	f.record("literal " + text)
	return f.sendErr
}

func (f *fakeTmux) SendKeys(_ context.Context, _ string, keys ...string) error {
	f.record("keys " + strings.Join(keys, " "))
	return f.sendErr
}

func (f *fakeTmux) CapturePane(context.Context, string, int) (string, error) {
	f.record("capture")
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.captures) == 0 {
		return "", errors.New("no more captures")
	}
	next := f.captures[0]
	if len(f.captures) > 1 {
		f.captures = f.captures[1:]
	}
	return next, nil
}

type fakeWezterm struct {
	available bool
	panes     []wezterm.Pane
	activated []int64
	sent      []string
}

func (f *fakeWezterm) Available(context.Context) bool {
	return f.available
}

func (f *fakeWezterm) ListPanes(context.Context) ([]wezterm.Pane, error) {
	return f.panes, nil
}

func (f *fakeWezterm) ActivatePane(_ context.Context, paneID int64) error {
	f.activated = append(f.activated, paneID)
	return nil
}

func (f *fakeWezterm) SendText(_ context.Context, _ int64, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

type stubStrategy struct {
	name    string
	attempt Attempt
	err     error
	calls   int
}

func (s *stubStrategy) Name() string {
	return s.name
}

func (s *stubStrategy) Attempt(context.Context, Target, string) (Attempt, error) {
	s.calls++
	return s.attempt, s.err
}
