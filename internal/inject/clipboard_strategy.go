package inject

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/atotto/clipboard"
	"github.com/gen2brain/beeep"
)

// ClipboardStrategy is the last resort: the command goes onto the system
// clipboard and the operator gets an alert asking them to paste it.
type ClipboardStrategy struct {
	write  func(text string) error
	alert  func(title, message string) error
	system bool
	logger *slog.Logger
}

func NewClipboardStrategy(logger *slog.Logger) *ClipboardStrategy {
	strategy := NewClipboardStrategyWith(clipboard.WriteAll, func(title, message string) error {
		return beeep.Alert(title, message, "")
	}, logger)
	strategy.system = true
	return strategy
}

func NewClipboardStrategyWith(write func(string) error, alert func(title, message string) error, logger *slog.Logger) *ClipboardStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClipboardStrategy{write: write, alert: alert, logger: logger}
}

func (s *ClipboardStrategy) Name() string {
	return "clipboard"
}

func (s *ClipboardStrategy) Attempt(_ context.Context, target Target, command string) (Attempt, error) {
	if s.system && clipboard.Unsupported {
		return Attempt{}, fmt.Errorf("%w: no clipboard utility found", ErrAutomationUnavailable)
	}
	if err := s.write(command); err != nil {
		return Attempt{}, fmt.Errorf("%w: copy to clipboard: %w", ErrInjectionFailed, err)
	}

	title := fmt.Sprintf("tprelay: paste command for %s", target.Token)
	message := fmt.Sprintf("Automatic delivery failed. The command is on your clipboard; paste it into %s.", describe(target))
	if s.alert != nil {
		if err := s.alert(title, message); err != nil {
			s.logger.Warn("desktop alert failed", "token", target.Token, "error", err)
		}
	}
	return Attempt{Target: "clipboard", Manual: true}, nil
}

func describe(target Target) string {
	switch {
	case target.TmuxSession != "":
		return "tmux session " + target.TmuxSession
	case target.WorkDir != "":
		return "the session in " + target.WorkDir
	default:
		return "the target session"
	}
}
