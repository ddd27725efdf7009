package sessions

import (
	"context"
	"time"
)

// Injection is one audit log entry describing a delivered command.
type Injection struct {
	ID            string    `json:"id"`
	Token         string    `json:"token"`
	Target        string    `json:"target"`
	Strategy      string    `json:"strategy"`
	Command       string    `json:"command"`
	Confirmations []string  `json:"confirmations"`
	Manual        bool      `json:"manual"`
	InjectedAt    time.Time `json:"injected_at"`
}

type AuditLog interface {
	RecordInjection(ctx context.Context, entry Injection) error
	ListInjections(ctx context.Context, limit int) ([]Injection, error)
}
