// Package processed records which inbound messages the relay has already
// acted on, so a re-delivered or re-scanned message is never injected twice.
package processed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const DefaultRetention = 7 * 24 * time.Hour

type Outcome string

const (
	OutcomeInjected       Outcome = "injected"
	OutcomeManual         Outcome = "manual"
	OutcomeRejectedUnsafe Outcome = "rejected_unsafe"
)

type Marker struct {
	Key         string    `json:"key"`
	Token       string    `json:"token"`
	Outcome     Outcome   `json:"outcome"`
	ProcessedAt time.Time `json:"processed_at"`
}

type Store interface {
	Has(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, marker Marker) error
	Prune(ctx context.Context, olderThan time.Time) (int, error)
	List(ctx context.Context, limit int) ([]Marker, error)
}

// Identity carries the identifiers a mail server reports for a message.
type Identity struct {
	UID         uint32
	UIDValidity uint32
	MessageID   string
	Subject     string
	Date        time.Time
}

// Key returns the one canonical dedup key for a message: the UID scoped by
// its UIDVALIDITY when the server supplied one, otherwise the Message-ID,
// otherwise a hash of subject and date.
func Key(id Identity) string {
	if id.UID != 0 {
		return fmt.Sprintf("uid:%d:%d", id.UIDValidity, id.UID)
	}
	if messageID := strings.Trim(strings.TrimSpace(id.MessageID), "<>"); messageID != "" {
		return "mid:" + messageID
	}
	sum := sha256.Sum256([]byte(id.Subject + "|" + id.Date.UTC().Format(time.RFC3339)))
	return "sha:" + hex.EncodeToString(sum[:])
}
