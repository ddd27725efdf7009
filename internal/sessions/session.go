package sessions

import (
	"strings"
	"time"
)

type Kind string

const (
	KindInteractiveTerminal Kind = "interactive-terminal"
)

type Session struct {
	Token        string    `json:"token"`
	Kind         Kind      `json:"kind"`
	TmuxSession  string    `json:"tmux_session"`
	WorkDir      string    `json:"work_dir"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	CommandCount int       `json:"command_count"`
	CommandLimit int       `json:"command_limit"`
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

func (s Session) Exhausted() bool {
	return s.CommandLimit > 0 && s.CommandCount >= s.CommandLimit
}

// Usable reports whether commands may still be delivered to the session.
func (s Session) Usable(now time.Time) bool {
	return !s.Expired(now) && !s.Exhausted()
}

// NormalizeToken upper-cases a token so lookups are case-insensitive.
func NormalizeToken(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

func ValidToken(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
