package inject

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"tprelay/internal/clock"
	"tprelay/internal/tmux"
)

const (
	DefaultLaunchCommand   = "claude"
	DefaultWarmUp          = 3 * time.Second
	DefaultConfirmAttempts = 8
	DefaultConfirmInterval = 1500 * time.Millisecond
	defaultCaptureLines    = 40
)

type TmuxConfig struct {
	Client tmux.Client
	Clock  clock.Clock
	Logger *slog.Logger

	// CreateMissing starts a detached session running LaunchCommand when
	// the target session is not alive.
	CreateMissing         bool
	LaunchCommand         string
	FallbackLaunchCommand string
	WarmUp                time.Duration

	ConfirmAttempts int
	ConfirmInterval time.Duration
}

// TmuxStrategy types the command into the target's tmux session and then
// answers whatever confirmation prompts the program raises.
type TmuxStrategy struct {
	cfg TmuxConfig
}

func NewTmuxStrategy(cfg TmuxConfig) *TmuxStrategy {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if strings.TrimSpace(cfg.LaunchCommand) == "" {
		cfg.LaunchCommand = DefaultLaunchCommand
	}
	if cfg.FallbackLaunchCommand == "" {
		cfg.FallbackLaunchCommand = qualifyCommand(cfg.LaunchCommand)
	}
	// A negative warm-up disables the wait after launching.
	switch {
	case cfg.WarmUp == 0:
		cfg.WarmUp = DefaultWarmUp
	case cfg.WarmUp < 0:
		cfg.WarmUp = 0
	}
	if cfg.ConfirmAttempts <= 0 {
		cfg.ConfirmAttempts = DefaultConfirmAttempts
	}
	if cfg.ConfirmInterval <= 0 {
		cfg.ConfirmInterval = DefaultConfirmInterval
	}
	return &TmuxStrategy{cfg: cfg}
}

func (s *TmuxStrategy) Name() string {
	return "tmux"
}

func (s *TmuxStrategy) Attempt(ctx context.Context, target Target, command string) (Attempt, error) {
	client := s.cfg.Client
	if client == nil || !client.Available(ctx) {
		return Attempt{}, fmt.Errorf("%w: tmux is not installed", ErrAutomationUnavailable)
	}

	name := strings.TrimSpace(target.TmuxSession)
	if name == "" {
		return Attempt{}, fmt.Errorf("%w: no tmux session recorded for %s", ErrSessionNotFound, target.Token)
	}

	alive, err := client.HasSession(ctx, name)
	if err != nil {
		return Attempt{}, fmt.Errorf("%w: check session %s: %w", ErrInjectionFailed, name, err)
	}
	if !alive {
		if err := s.launch(ctx, name, target.WorkDir); err != nil {
			return Attempt{}, err
		}
	}

	if err := client.SendKeys(ctx, name, "C-u"); err != nil {
		return Attempt{}, fmt.Errorf("%w: clear input in %s: %w", ErrInjectionFailed, name, err)
	}
	if err := client.SendLiteral(ctx, name, command); err != nil {
		return Attempt{}, fmt.Errorf("%w: send text to %s: %w", ErrInjectionFailed, name, err)
	}
	if err := client.SendKeys(ctx, name, "Enter"); err != nil {
		return Attempt{}, fmt.Errorf("%w: submit in %s: %w", ErrInjectionFailed, name, err)
	}

	confirmations, err := s.confirm(ctx, name)
	if err != nil {
		return Attempt{}, err
	}
	return Attempt{
		Target:        "tmux:" + name,
		Confirmations: confirmations,
	}, nil
}

func (s *TmuxStrategy) launch(ctx context.Context, name, workDir string) error {
	if !s.cfg.CreateMissing {
		return fmt.Errorf("%w: tmux session %s is not running", ErrSessionNotFound, name)
	}

	logger := s.cfg.Logger.With("session", name)
	logger.Info("starting tmux session", "command", s.cfg.LaunchCommand, "work_dir", workDir)

	err := s.cfg.Client.NewSession(ctx, name, workDir, s.cfg.LaunchCommand)
	if err != nil && errors.Is(err, tmux.ErrSessionExists) {
		err = nil
	}
	if err != nil {
		fallback := s.cfg.FallbackLaunchCommand
		if fallback == "" || fallback == s.cfg.LaunchCommand {
			return fmt.Errorf("%w: %s: %w", ErrLaunchFailed, name, err)
		}
		logger.Warn("launch failed, retrying with fallback command", "error", err, "command", fallback)
		if retryErr := s.cfg.Client.NewSession(ctx, name, workDir, fallback); retryErr != nil && !errors.Is(retryErr, tmux.ErrSessionExists) {
			return fmt.Errorf("%w: %s: %w", ErrLaunchFailed, name, errors.Join(err, retryErr))
		}
	}

	if s.cfg.WarmUp == 0 {
		return nil
	}
	return clock.Sleep(ctx, s.cfg.Clock, s.cfg.WarmUp)
}

// confirm polls the pane and answers prompts until the program settles,
// reports an error, or the attempt budget runs out. Running out is not a
// failure: the command itself was already submitted.
func (s *TmuxStrategy) confirm(ctx context.Context, name string) ([]string, error) {
	var confirmations []string
	logger := s.cfg.Logger.With("session", name)

	for attempt := 1; attempt <= s.cfg.ConfirmAttempts; attempt++ {
		if err := clock.Sleep(ctx, s.cfg.Clock, s.cfg.ConfirmInterval); err != nil {
			return confirmations, err
		}

		output, err := s.cfg.Client.CapturePane(ctx, name, defaultCaptureLines)
		if err != nil {
			logger.Warn("capture pane", "attempt", attempt, "error", err)
			return confirmations, nil
		}

		screen := Classify(output)
		step := Decide(screen)
		logger.Debug("confirmation check", "attempt", attempt, "prompt", screen.Prompt.String())

		switch step.Action {
		case ActionSend:
			if err := s.cfg.Client.SendKeys(ctx, name, step.Keys...); err != nil {
				logger.Warn("answer prompt", "prompt", screen.Prompt.String(), "error", err)
				return confirmations, nil
			}
			confirmations = append(confirmations, screen.Prompt.String()+":"+strings.Join(step.Keys, "+"))
		case ActionDone:
			return confirmations, nil
		case ActionAbort:
			logger.Warn("target reported an error, leaving confirmation loop", "attempt", attempt)
			return confirmations, nil
		case ActionWaitLonger:
			if err := clock.Sleep(ctx, s.cfg.Clock, s.cfg.ConfirmInterval); err != nil {
				return confirmations, err
			}
		}
	}

	logger.Debug("confirmation budget exhausted", "attempts", s.cfg.ConfirmAttempts)
	return confirmations, nil
}

// qualifyCommand resolves the program in command to an absolute path, for
// daemons whose PATH lacks the user's shell additions.
func qualifyCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	resolved, err := exec.LookPath(fields[0])
	if err != nil || resolved == fields[0] {
		return ""
	}
	fields[0] = resolved
	return strings.Join(fields, " ")
}
