package mailbox

import (
	"context"
	"time"
)

// RawMessage is a fetched message body with its UID.
type RawMessage struct {
	UID  uint32
	Body []byte
}

// Conn is an authenticated session with the inbox selected read-write.
// Any error it returns is treated as a transport failure that ends the
// watch loop.
type Conn interface {
	UIDValidity() uint32
	SearchUnseen(ctx context.Context, since time.Time) ([]uint32, error)
	// Fetch returns full bodies without setting \Seen.
	Fetch(ctx context.Context, uids []uint32) ([]RawMessage, error)
	MarkSeen(ctx context.Context, uid uint32) error
	// WaitForChange blocks until the server reports new mail or wait
	// elapses, whichever comes first.
	WaitForChange(ctx context.Context, wait time.Duration) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}
