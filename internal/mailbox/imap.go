package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

const (
	DefaultIMAPPort    = 993
	DefaultMailbox     = "INBOX"
	DefaultDialTimeout = 30 * time.Second
)

type IMAPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Mailbox  string
	// Plaintext skips TLS, for local test servers only.
	Plaintext          bool
	InsecureSkipVerify bool
	DialTimeout        time.Duration
	Logger             *slog.Logger
}

type IMAPDialer struct {
	cfg IMAPConfig
}

func NewIMAPDialer(cfg IMAPConfig) *IMAPDialer {
	if cfg.Port == 0 {
		cfg.Port = DefaultIMAPPort
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = DefaultMailbox
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &IMAPDialer{cfg: cfg}
}

// Dial connects, logs in and selects the mailbox. The dial timeout covers
// the TCP connect, the TLS handshake and authentication.
func (d *IMAPDialer) Dial(ctx context.Context) (Conn, error) {
	cfg := d.cfg
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	var dialer net.Dialer
	raw, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial imap %s: %w", addr, err)
	}
	if !cfg.Plaintext {
		tlsConn := tls.Client(raw, &tls.Config{
			ServerName:         cfg.Host,
			InsecureSkipVerify: cfg.InsecureSkipVerify, // #nosec G402 -- opt-in for self-signed test servers.
		})
		if err := tlsConn.HandshakeContext(dialCtx); err != nil {
			_ = raw.Close()
			return nil, fmt.Errorf("tls handshake with %s: %w", addr, err)
		}
		raw = tlsConn
	}

	newMail := make(chan struct{}, 1)
	client := imapclient.New(raw, &imapclient.Options{
		UnilateralDataHandler: &imapclient.UnilateralDataHandler{
			Mailbox: func(data *imapclient.UnilateralDataMailbox) {
				if data.NumMessages == nil {
					return
				}
				select {
				case newMail <- struct{}{}:
				default:
				}
			},
		},
	})

	if deadline, ok := dialCtx.Deadline(); ok {
		_ = raw.SetDeadline(deadline)
	}
	if err := client.Login(cfg.Username, cfg.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("imap login as %s: %w", cfg.Username, err)
	}
	selected, err := client.Select(cfg.Mailbox, nil).Wait()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("select %s: %w", cfg.Mailbox, err)
	}
	_ = raw.SetDeadline(time.Time{})

	idle := client.Caps().Has(imap.CapIdle)
	cfg.Logger.Info("imap connected",
		"addr", addr,
		"mailbox", cfg.Mailbox,
		"uidvalidity", selected.UIDValidity,
		"messages", selected.NumMessages,
		"idle", idle,
	)

	return &imapConn{
		client:      client,
		newMail:     newMail,
		uidValidity: selected.UIDValidity,
		idle:        idle,
	}, nil
}

type imapConn struct {
	client      *imapclient.Client
	newMail     chan struct{}
	uidValidity uint32
	idle        bool
}

func (c *imapConn) UIDValidity() uint32 {
	return c.uidValidity
}

func (c *imapConn) SearchUnseen(_ context.Context, since time.Time) ([]uint32, error) {
	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}
	if !since.IsZero() {
		criteria.Since = since
	}
	data, err := c.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("uid search: %w", err)
	}

	found := data.AllUIDs()
	uids := make([]uint32, 0, len(found))
	for _, uid := range found {
		uids = append(uids, uint32(uid))
	}
	return uids, nil
}

func (c *imapConn) Fetch(_ context.Context, uids []uint32) ([]RawMessage, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	set := make([]imap.UID, 0, len(uids))
	for _, uid := range uids {
		set = append(set, imap.UID(uid))
	}

	section := &imap.FetchItemBodySection{Peek: true}
	options := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	}
	messages, err := c.client.Fetch(imap.UIDSetNum(set...), options).Collect()
	if err != nil {
		return nil, fmt.Errorf("uid fetch: %w", err)
	}

	out := make([]RawMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, RawMessage{
			UID:  uint32(msg.UID),
			Body: msg.FindBodySection(section),
		})
	}
	return out, nil
}

func (c *imapConn) MarkSeen(_ context.Context, uid uint32) error {
	flags := &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}
	if err := c.client.Store(imap.UIDSetNum(imap.UID(uid)), flags, nil).Close(); err != nil {
		return fmt.Errorf("mark uid %d seen: %w", uid, err)
	}
	return nil
}

// WaitForChange idles when the server supports IDLE and otherwise just
// sleeps; either way the wait doubles as the periodic poll. Without IDLE a
// dropped connection surfaces on the next search.
func (c *imapConn) WaitForChange(ctx context.Context, wait time.Duration) error {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	if !c.idle {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}

	idle, err := c.client.Idle()
	if err != nil {
		return fmt.Errorf("imap idle: %w", err)
	}

	// Wait returns early only when the connection drops.
	ended := make(chan error, 1)
	go func() {
		ended <- idle.Wait()
	}()

	var waitErr error
	select {
	case <-ctx.Done():
		waitErr = ctx.Err()
	case err := <-ended:
		if err == nil {
			err = errors.New("connection closed")
		}
		return fmt.Errorf("imap idle ended: %w", err)
	case <-c.newMail:
	case <-timer.C:
	}

	if err := idle.Close(); err != nil && waitErr == nil {
		waitErr = fmt.Errorf("end imap idle: %w", err)
	}
	if err := <-ended; err != nil && waitErr == nil {
		waitErr = fmt.Errorf("imap idle: %w", err)
	}
	return waitErr
}

func (c *imapConn) Close() error {
	_ = c.client.Logout().Wait()
	return c.client.Close()
}
