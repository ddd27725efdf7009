package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tprelay/internal/clock"
)

const (
	DefaultTTL          = 24 * time.Hour
	DefaultCommandLimit = 10
	generatedTokenLen   = 8
)

// Registry resolves reply tokens to execution targets. It is the only
// writer of its store within the process; read-modify-write cycles are
// serialized by mu.
type Registry struct {
	store  Store
	clock  clock.Clock
	logger *slog.Logger
	mu     sync.Mutex
}

func NewRegistry(store Store, c clock.Clock, logger *slog.Logger) *Registry {
	if c == nil {
		c = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:  store,
		clock:  c,
		logger: logger,
	}
}

type CreateParams struct {
	Token        string
	Kind         Kind
	TmuxSession  string
	WorkDir      string
	TTL          time.Duration
	CommandLimit int
}

func (r *Registry) Create(ctx context.Context, params CreateParams) (Session, error) {
	token := NormalizeToken(params.Token)
	if token == "" {
		token = GenerateToken()
	}
	if !ValidToken(token) {
		return Session{}, fmt.Errorf("%w %q: must be alphanumeric", ErrInvalidToken, params.Token)
	}
	if strings.TrimSpace(params.TmuxSession) == "" {
		return Session{}, fmt.Errorf("tmux session name is required")
	}

	kind := params.Kind
	if kind == "" {
		kind = KindInteractiveTerminal
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	limit := params.CommandLimit
	if limit <= 0 {
		limit = DefaultCommandLimit
	}

	now := r.clock.Now().UTC()
	session := Session{
		Token:        token,
		Kind:         kind,
		TmuxSession:  strings.TrimSpace(params.TmuxSession),
		WorkDir:      strings.TrimSpace(params.WorkDir),
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
		CommandLimit: limit,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.CreateSession(ctx, session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// Resolve returns the session for token when it is still usable. Missing,
// expired and exhausted sessions all report found=false; expired records
// are deleted on the way out.
func (r *Registry) Resolve(ctx context.Context, token string) (Session, bool, error) {
	token = NormalizeToken(token)
	if !ValidToken(token) {
		return Session{}, false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session, found, err := r.store.GetSession(ctx, token)
	if err != nil {
		return Session{}, false, fmt.Errorf("resolve session %s: %w", token, err)
	}
	if !found {
		return Session{}, false, nil
	}

	now := r.clock.Now()
	if session.Expired(now) {
		r.logger.Info("session expired", "token", token, "expires_at", session.ExpiresAt)
		if err := r.store.DeleteSession(ctx, token); err != nil {
			r.logger.Warn("delete expired session", "token", token, "error", err)
		}
		return Session{}, false, nil
	}
	if session.Exhausted() {
		r.logger.Info("session command limit reached",
			"token", token,
			"count", session.CommandCount,
			"limit", session.CommandLimit,
		)
		return Session{}, false, nil
	}

	return session, true, nil
}

// RecordCommand increments the command count after a successful injection.
func (r *Registry) RecordCommand(ctx context.Context, token string) (Session, error) {
	token = NormalizeToken(token)

	r.mu.Lock()
	defer r.mu.Unlock()

	session, found, err := r.store.GetSession(ctx, token)
	if err != nil {
		return Session{}, fmt.Errorf("load session %s: %w", token, err)
	}
	if !found {
		return Session{}, ErrSessionNotFound
	}

	session.CommandCount++
	if err := r.store.UpdateSession(ctx, session); err != nil {
		return Session{}, fmt.Errorf("record command for %s: %w", token, err)
	}
	return session, nil
}

func (r *Registry) List(ctx context.Context) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.store.ListSessions(ctx)
}

// GenerateToken returns a fresh upper-case alphanumeric token.
func GenerateToken() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:generatedTokenLen])
}
