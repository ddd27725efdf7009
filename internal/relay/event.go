package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gen2brain/beeep"
)

type EventKind string

const (
	EventInjected EventKind = "injected"
	EventManual   EventKind = "manual"
	EventFailed   EventKind = "failed"
	EventRejected EventKind = "rejected"
)

// Event reports the outcome of one inbound message.
type Event struct {
	Kind       EventKind
	Token      string
	Target     string
	Strategy   string
	Reason     string
	MessageKey string
	Time       time.Time
}

type Sink interface {
	Emit(ctx context.Context, event Event)
}

type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Emit(ctx context.Context, event Event) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if event.Kind == EventFailed {
		level = slog.LevelError
	}
	logger.Log(ctx, level, "relay outcome",
		"event", string(event.Kind),
		"token", event.Token,
		"target", event.Target,
		"strategy", event.Strategy,
		"reason", event.Reason,
		"key", event.MessageKey,
	)
}

// DesktopSink raises a desktop notification for each event.
type DesktopSink struct {
	notify func(title, message string) error
	logger *slog.Logger
}

func NewDesktopSink(logger *slog.Logger) *DesktopSink {
	return NewDesktopSinkWith(func(title, message string) error {
		return beeep.Notify(title, message, "")
	}, logger)
}

func NewDesktopSinkWith(notify func(title, message string) error, logger *slog.Logger) *DesktopSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &DesktopSink{notify: notify, logger: logger}
}

func (s *DesktopSink) Emit(_ context.Context, event Event) {
	title, message := describeEvent(event)
	if err := s.notify(title, message); err != nil {
		s.logger.Warn("desktop notification failed", "token", event.Token, "error", err)
	}
}

func describeEvent(event Event) (string, string) {
	switch event.Kind {
	case EventInjected:
		return "Command delivered", fmt.Sprintf("Session %s: command sent to %s.", event.Token, event.Target)
	case EventManual:
		return "Command needs pasting", fmt.Sprintf("Session %s: automatic delivery failed, the command is on the clipboard.", event.Token)
	case EventFailed:
		return "Command not delivered", fmt.Sprintf("Session %s: %s", event.Token, event.Reason)
	default:
		return "Reply rejected", fmt.Sprintf("Session %s: %s", event.Token, event.Reason)
	}
}

type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, event Event) {
	for _, sink := range m {
		sink.Emit(ctx, event)
	}
}
