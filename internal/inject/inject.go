// Package inject delivers extracted commands into live interactive
// sessions. An Engine walks an ordered list of strategies (tmux, then
// window automation, then the clipboard) and stops at the first one that
// lands the command.
package inject

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"tprelay/internal/clock"
	"tprelay/internal/sessions"
)

var (
	ErrSessionNotFound       = errors.New("target session not found")
	ErrAutomationUnavailable = errors.New("automation unavailable")
	ErrLaunchFailed          = errors.New("launch failed")
	ErrInjectionFailed       = errors.New("injection failed")
	ErrAllStrategiesFailed   = errors.New("all injection strategies failed")
	ErrLockTimeout           = errors.New("timed out waiting for session lock")
)

const DefaultLockTimeout = 2 * time.Minute

// Target identifies where a command should go.
type Target struct {
	Token       string
	Kind        sessions.Kind
	TmuxSession string
	WorkDir     string
}

func TargetFor(session sessions.Session) Target {
	return Target{
		Token:       session.Token,
		Kind:        session.Kind,
		TmuxSession: session.TmuxSession,
		WorkDir:     session.WorkDir,
	}
}

// Attempt describes a delivery one strategy completed. Manual is set when
// the operator still has to paste the command themselves.
type Attempt struct {
	Target        string
	Confirmations []string
	Manual        bool
}

type Strategy interface {
	Name() string
	Attempt(ctx context.Context, target Target, command string) (Attempt, error)
}

type Result struct {
	Strategy      string
	Target        string
	Confirmations []string
	Manual        bool
	AuditID       string
}

type EngineConfig struct {
	Strategies  []Strategy
	Audit       sessions.AuditLog
	Clock       clock.Clock
	Logger      *slog.Logger
	LockTimeout time.Duration
}

type Engine struct {
	strategies []Strategy
	audit      sessions.AuditLog
	clock      clock.Clock
	logger     *slog.Logger
	locks      *TokenLocks
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		strategies: cfg.Strategies,
		audit:      cfg.Audit,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		locks:      NewTokenLocks(cfg.LockTimeout),
	}
}

// Inject delivers command to target. Injections for the same token are
// serialized; a caller that cannot take the token's lock within the lock
// timeout gets ErrLockTimeout. When every strategy fails the returned
// error wraps ErrAllStrategiesFailed and each strategy's own error.
func (e *Engine) Inject(ctx context.Context, target Target, command string) (Result, error) {
	if strings.TrimSpace(command) == "" {
		return Result{}, fmt.Errorf("%w: empty command", ErrInjectionFailed)
	}
	if len(e.strategies) == 0 {
		return Result{}, fmt.Errorf("%w: no strategies configured", ErrAllStrategiesFailed)
	}

	if err := e.locks.Acquire(ctx, target.Token); err != nil {
		return Result{}, err
	}
	defer e.locks.Release(target.Token)

	failures := []error{ErrAllStrategiesFailed}
	for _, strategy := range e.strategies {
		attempt, err := strategy.Attempt(ctx, target, command)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			e.logger.Warn("injection strategy failed",
				"token", target.Token,
				"strategy", strategy.Name(),
				"error", err,
			)
			failures = append(failures, fmt.Errorf("%s: %w", strategy.Name(), err))
			continue
		}

		result := Result{
			Strategy:      strategy.Name(),
			Target:        attempt.Target,
			Confirmations: attempt.Confirmations,
			Manual:        attempt.Manual,
		}
		result.AuditID = e.record(ctx, target, command, result)
		e.logger.Info("command delivered",
			"token", target.Token,
			"strategy", result.Strategy,
			"target", result.Target,
			"manual", result.Manual,
			"confirmations", len(result.Confirmations),
		)
		return result, nil
	}
	return Result{}, errors.Join(failures...)
}

// record writes the audit entry. A failed audit write is logged and does
// not undo a delivery that already happened.
func (e *Engine) record(ctx context.Context, target Target, command string, result Result) string {
	if e.audit == nil {
		return ""
	}
	entry := sessions.Injection{
		ID:            uuid.NewString(),
		Token:         target.Token,
		Target:        result.Target,
		Strategy:      result.Strategy,
		Command:       command,
		Confirmations: result.Confirmations,
		Manual:        result.Manual,
		InjectedAt:    e.clock.Now().UTC(),
	}
	if err := e.audit.RecordInjection(ctx, entry); err != nil {
		e.logger.Warn("record injection audit entry", "token", target.Token, "error", err)
		return ""
	}
	return entry.ID
}
