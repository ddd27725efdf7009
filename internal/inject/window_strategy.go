package inject

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"tprelay/internal/wezterm"
)

var DefaultWindowApps = []string{"claude"}

// WindowStrategy reaches a program running directly in a WezTerm pane: it
// focuses the pane whose working directory matches the target (or whose
// title names a known app) and types the command into it.
type WindowStrategy struct {
	client wezterm.Client
	apps   []string
	logger *slog.Logger
}

func NewWindowStrategy(client wezterm.Client, apps []string, logger *slog.Logger) *WindowStrategy {
	if len(apps) == 0 {
		apps = DefaultWindowApps
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WindowStrategy{client: client, apps: apps, logger: logger}
}

func (s *WindowStrategy) Name() string {
	return "window"
}

func (s *WindowStrategy) Attempt(ctx context.Context, target Target, command string) (Attempt, error) {
	if s.client == nil || !s.client.Available(ctx) {
		return Attempt{}, fmt.Errorf("%w: wezterm is not available", ErrAutomationUnavailable)
	}

	panes, err := s.client.ListPanes(ctx)
	if err != nil {
		return Attempt{}, fmt.Errorf("%w: %w", ErrAutomationUnavailable, err)
	}
	pane, ok := s.pick(panes, target.WorkDir)
	if !ok {
		return Attempt{}, fmt.Errorf("%w: no wezterm pane for %s", ErrSessionNotFound, target.Token)
	}

	if err := s.client.ActivatePane(ctx, pane.PaneID); err != nil {
		return Attempt{}, fmt.Errorf("%w: %w", ErrInjectionFailed, err)
	}
	if err := s.client.SendText(ctx, pane.PaneID, command+"\r"); err != nil {
		return Attempt{}, fmt.Errorf("%w: %w", ErrInjectionFailed, err)
	}
	return Attempt{Target: "wezterm:pane/" + strconv.FormatInt(pane.PaneID, 10)}, nil
}

func (s *WindowStrategy) pick(panes []wezterm.Pane, workDir string) (wezterm.Pane, bool) {
	if strings.TrimSpace(workDir) != "" {
		want := filepath.Clean(workDir)
		for _, pane := range panes {
			if pane.Cwd != "" && filepath.Clean(pane.Cwd) == want {
				return pane, true
			}
		}
	}
	for _, pane := range panes {
		title := strings.ToLower(pane.Title)
		for _, app := range s.apps {
			if app != "" && strings.Contains(title, strings.ToLower(app)) {
				return pane, true
			}
		}
	}
	return wezterm.Pane{}, false
}
