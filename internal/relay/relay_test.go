package relay

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"tprelay/internal/clock"
	"tprelay/internal/mailbox"
)

type scriptedDialer struct {
	failures int
	dials    int
	conn     mailbox.Conn
}

func (d *scriptedDialer) Dial(context.Context) (mailbox.Conn, error) {
	d.dials++
	if d.dials <= d.failures {
		return nil, errors.New("dial tcp: connection refused")
	}
	return d.conn, nil
}

type cancellingConn struct {
	cancel context.CancelFunc
	closed bool
}

func (c *cancellingConn) UIDValidity() uint32 { return 1 }

func (c *cancellingConn) SearchUnseen(context.Context, time.Time) ([]uint32, error) {
	return nil, nil
}

func (c *cancellingConn) Fetch(context.Context, []uint32) ([]mailbox.RawMessage, error) {
	return nil, nil
}

func (c *cancellingConn) MarkSeen(context.Context, uint32) error { return nil }

func (c *cancellingConn) WaitForChange(ctx context.Context, _ time.Duration) error {
	c.cancel()
	return ctx.Err()
}

func (c *cancellingConn) Close() error {
	c.closed = true
	return nil
}

func TestRunReconnectsWithBackoff(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := &cancellingConn{cancel: cancel}
	dialer := &scriptedDialer{failures: 2, conn: conn}
	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	relay := New(Config{
		Dialer: dialer,
		Watcher: mailbox.NewWatcher(mailbox.WatcherConfig{
			Handler: mailbox.HandlerFunc(func(context.Context, mailbox.Email) mailbox.Disposition { return mailbox.Done }),
			Clock:   c,
		}),
		Clock: c,
	})

	if err := relay.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if dialer.dials != 3 {
		t.Fatalf("expected 3 dials, got %d", dialer.dials)
	}
	if !conn.closed {
		t.Fatalf("expected connection to be closed on shutdown")
	}
	expected := []time.Duration{DefaultReconnectBackoff, DefaultReconnectBackoff}
	if got := c.Waits(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("unexpected backoff waits: %v", got)
	}
}

func TestDesktopSinkFormatsEvents(t *testing.T) {
	t.Parallel()

	var titles []string
	sink := NewDesktopSinkWith(func(title, _ string) error {
		titles = append(titles, title)
		return nil
	}, nil)

	MultiSink{sink, LogSink{}}.Emit(context.Background(), Event{Kind: EventFailed, Token: "A1", Reason: "boom"})
	if !reflect.DeepEqual(titles, []string{"Command not delivered"}) {
		t.Fatalf("unexpected titles: %v", titles)
	}
}
