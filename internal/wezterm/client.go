// Package wezterm drives a running WezTerm GUI through `wezterm cli`. The
// relay uses it as a secondary way to reach an interactive assistant that
// is not running inside tmux.
package wezterm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

type Pane struct {
	PaneID    int64  `json:"pane_id"`
	Workspace string `json:"workspace"`
	Title     string `json:"title"`
	Cwd       string `json:"cwd"`
}

type Client interface {
	Available(ctx context.Context) bool
	ListPanes(ctx context.Context) ([]Pane, error)
	ActivatePane(ctx context.Context, paneID int64) error
	SendText(ctx context.Context, paneID int64, text string) error
}

type ExecFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

type CLIClient struct {
	exec ExecFunc
}

func NewCLIClient() *CLIClient {
	return &CLIClient{exec: defaultExec}
}

func NewCLIClientWithExec(execFn ExecFunc) *CLIClient {
	return &CLIClient{exec: execFn}
}

func (c *CLIClient) Available(ctx context.Context) bool {
	_, err := c.exec(ctx, "wezterm", "--version")
	return err == nil
}

func (c *CLIClient) ActivatePane(ctx context.Context, paneID int64) error {
	_, err := c.exec(ctx, "wezterm", "cli", "activate-pane", "--pane-id", strconv.FormatInt(paneID, 10))
	if err != nil {
		return fmt.Errorf("wezterm activate-pane %d: %w", paneID, err)
	}
	return nil
}

// SendText types text into the pane as keystrokes rather than as a
// bracketed paste, so a trailing carriage return submits the line.
func (c *CLIClient) SendText(ctx context.Context, paneID int64, text string) error {
	_, err := c.exec(ctx, "wezterm", "cli", "send-text", "--pane-id", strconv.FormatInt(paneID, 10), "--no-paste", "--", text)
	if err != nil {
		return fmt.Errorf("wezterm send-text %d: %w", paneID, err)
	}
	return nil
}

func (c *CLIClient) ListPanes(ctx context.Context) ([]Pane, error) {
	output, err := c.exec(ctx, "wezterm", "cli", "list", "--format", "json")
	if err != nil {
		return nil, fmt.Errorf("wezterm list: %w", err)
	}
	return parseListPanesJSON(output)
}

func parseListPanesJSON(raw []byte) ([]Pane, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("decode wezterm list json: %w", err)
	}

	entries := make([]Pane, 0)
	walkPanes(generic, "", &entries)
	return dedupePanes(entries), nil
}

func walkPanes(node any, inheritedWorkspace string, out *[]Pane) {
	switch typed := node.(type) {
	case map[string]any:
		workspace := inheritedWorkspace
		if value, ok := typed["workspace"].(string); ok && strings.TrimSpace(value) != "" {
			workspace = value
		}
		if paneID, ok := extractPaneID(typed); ok {
			title, _ := typed["title"].(string)
			cwd, _ := typed["cwd"].(string)
			*out = append(*out, Pane{
				PaneID:    paneID,
				Workspace: workspace,
				Title:     title,
				Cwd:       CwdPath(cwd),
			})
		}
		for _, value := range typed {
			walkPanes(value, workspace, out)
		}
	case []any:
		for _, value := range typed {
			walkPanes(value, inheritedWorkspace, out)
		}
	}
}

func extractPaneID(node map[string]any) (int64, bool) {
	value, ok := node["pane_id"]
	if !ok {
		return 0, false
	}

	switch typed := value.(type) {
	case float64:
		return int64(typed), true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func dedupePanes(entries []Pane) []Pane {
	seen := map[int64]Pane{}
	order := make([]int64, 0, len(entries))
	for _, entry := range entries {
		if existing, ok := seen[entry.PaneID]; ok {
			if existing.Workspace == "" && entry.Workspace != "" {
				existing.Workspace = entry.Workspace
			}
			if existing.Cwd == "" {
				existing.Cwd = entry.Cwd
			}
			if existing.Title == "" {
				existing.Title = entry.Title
			}
			seen[entry.PaneID] = existing
			continue
		}
		seen[entry.PaneID] = entry
		order = append(order, entry.PaneID)
	}

	result := make([]Pane, 0, len(seen))
	for _, paneID := range order {
		result = append(result, seen[paneID])
	}
	return result
}

// CwdPath converts the file:// URL wezterm reports for a pane's working
// directory into a plain path.
func CwdPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "file://") {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return strings.TrimPrefix(raw, "file://")
	}
	return parsed.Path
}
