package sessions

import (
	"context"
	"errors"
)

var (
	ErrSessionExists   = errors.New("session token already registered")
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidToken    = errors.New("invalid session token")
)

type Store interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, token string) (Session, bool, error)
	UpdateSession(ctx context.Context, session Session) error
	DeleteSession(ctx context.Context, token string) error
	ListSessions(ctx context.Context) ([]Session, error)
}
