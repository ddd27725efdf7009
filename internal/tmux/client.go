// Package tmux drives a tmux server through its CLI: session lookup and
// creation, literal text and control-key input, and pane capture.
package tmux

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrNoServer           = errors.New("no tmux server running")
	ErrSessionNotFound    = errors.New("tmux session not found")
	ErrSessionExists      = errors.New("tmux session already exists")
	ErrInvalidSessionName = errors.New("invalid tmux session name")
)

var validSessionName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type Client interface {
	Available(ctx context.Context) bool
	HasSession(ctx context.Context, name string) (bool, error)
	NewSession(ctx context.Context, name, workDir, command string) error
	SendLiteral(ctx context.Context, target, text string) error
	SendKeys(ctx context.Context, target string, keys ...string) error
	CapturePane(ctx context.Context, target string, lines int) (string, error)
}

type ExecFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

type CLIClient struct {
	exec       ExecFunc
	socketPath string
}

// NewCLIClient targets the default tmux server, or the server listening on
// socketPath when it is non-empty.
func NewCLIClient(socketPath string) *CLIClient {
	return &CLIClient{exec: defaultExec, socketPath: socketPath}
}

func NewCLIClientWithExec(socketPath string, execFn ExecFunc) *CLIClient {
	return &CLIClient{exec: execFn, socketPath: socketPath}
}

func (c *CLIClient) run(ctx context.Context, args ...string) (string, error) {
	full := []string{"-u"}
	if c.socketPath != "" {
		full = append(full, "-S", c.socketPath)
	}
	full = append(full, args...)

	output, err := c.exec(ctx, "tmux", full...)
	if err != nil {
		return "", classify(err, args[0])
	}
	return string(output), nil
}

func classify(err error, subcommand string) error {
	message := err.Error()
	switch {
	case strings.Contains(message, "no server running"),
		strings.Contains(message, "error connecting to"),
		strings.Contains(message, "server exited unexpectedly"):
		return fmt.Errorf("tmux %s: %w", subcommand, ErrNoServer)
	case strings.Contains(message, "duplicate session"):
		return fmt.Errorf("tmux %s: %w", subcommand, ErrSessionExists)
	case strings.Contains(message, "can't find session"),
		strings.Contains(message, "session not found"),
		strings.Contains(message, "can't find pane"):
		return fmt.Errorf("tmux %s: %w", subcommand, ErrSessionNotFound)
	}
	return fmt.Errorf("tmux %s: %w", subcommand, err)
}

func (c *CLIClient) Available(ctx context.Context) bool {
	_, err := c.exec(ctx, "tmux", "-V")
	return err == nil
}

// HasSession matches the session name exactly; a bare -t would also accept
// a prefix of another session's name.
func (c *CLIClient) HasSession(ctx context.Context, name string) (bool, error) {
	if err := ValidateSessionName(name); err != nil {
		return false, err
	}
	_, err := c.run(ctx, "has-session", "-t", "="+name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrNoServer) {
		return false, nil
	}
	return false, err
}

func (c *CLIClient) NewSession(ctx context.Context, name, workDir, command string) error {
	if err := ValidateSessionName(name); err != nil {
		return err
	}
	args := []string{"new-session", "-d", "-s", name}
	if strings.TrimSpace(workDir) != "" {
		args = append(args, "-c", workDir)
	}
	if strings.TrimSpace(command) != "" {
		args = append(args, command)
	}
	_, err := c.run(ctx, args...)
	return err
}

// SendLiteral types text into the target pane without interpreting key
// names, so a command containing "Enter" or "C-c" arrives verbatim.
func (c *CLIClient) SendLiteral(ctx context.Context, target, text string) error {
	_, err := c.run(ctx, "send-keys", "-t", target, "-l", "--", text)
	return err
}

func (c *CLIClient) SendKeys(ctx context.Context, target string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	args := append([]string{"send-keys", "-t", target}, keys...)
	_, err := c.run(ctx, args...)
	return err
}

// CapturePane returns the visible pane, plus up to lines of scrollback when
// lines is positive.
func (c *CLIClient) CapturePane(ctx context.Context, target string, lines int) (string, error) {
	args := []string{"capture-pane", "-p", "-t", target}
	if lines > 0 {
		args = append(args, "-S", "-"+strconv.Itoa(lines))
	}
	return c.run(ctx, args...)
}

func ValidateSessionName(name string) error {
	if !validSessionName.MatchString(name) {
		return fmt.Errorf("%w %q: must match %s", ErrInvalidSessionName, name, validSessionName.String())
	}
	return nil
}
