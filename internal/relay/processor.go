package relay

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"tprelay/internal/clock"
	"tprelay/internal/extract"
	"tprelay/internal/inject"
	"tprelay/internal/mailbox"
	"tprelay/internal/processed"
	"tprelay/internal/sessions"
)

type Injector interface {
	Inject(ctx context.Context, target inject.Target, command string) (inject.Result, error)
}

type ProcessorConfig struct {
	AllowedSenders []string
	Extractor      *extract.Extractor
	Registry       *sessions.Registry
	Ledger         *processed.Ledger
	Injector       Injector
	Sink           Sink
	Clock          clock.Clock
	Logger         *slog.Logger
	// ClipboardIsTerminal counts a manual clipboard hand-off as delivered:
	// the message is marked processed and not retried.
	ClipboardIsTerminal bool
	// LockTimeout bounds the wait for another reply to the same session.
	LockTimeout time.Duration
}

// Processor applies the relay policy to one parsed reply.
type Processor struct {
	cfg     ProcessorConfig
	senders []string
	locks   *inject.TokenLocks
}

func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.Extractor == nil {
		cfg.Extractor = extract.New("")
	}
	if cfg.Sink == nil {
		cfg.Sink = LogSink{Logger: cfg.Logger}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	senders := make([]string, 0, len(cfg.AllowedSenders))
	for _, sender := range cfg.AllowedSenders {
		if sender = strings.ToLower(strings.TrimSpace(sender)); sender != "" {
			senders = append(senders, sender)
		}
	}
	return &Processor{cfg: cfg, senders: senders, locks: inject.NewTokenLocks(cfg.LockTimeout)}
}

func (p *Processor) Allowed(from string) bool {
	from = strings.ToLower(from)
	for _, sender := range p.senders {
		if strings.Contains(from, sender) {
			return true
		}
	}
	return false
}

// Handle decides what happens to one email. The processed marker is
// written here, and only once the message has been delivered or rejected
// as unsafe.
func (p *Processor) Handle(ctx context.Context, email mailbox.Email) mailbox.Disposition {
	key := email.Key()
	logger := p.cfg.Logger.With("uid", email.UID, "key", key)

	if !p.Allowed(email.From) {
		logger.Info("ignoring message from sender not on the allow-list", "from", email.From)
		return mailbox.Ignore
	}

	token, ok := p.cfg.Extractor.Token(email.Subject)
	if !ok {
		logger.Debug("ignoring message without a session token", "subject", email.Subject)
		return mailbox.Ignore
	}
	logger = logger.With("token", token)

	seen, err := p.cfg.Ledger.Seen(ctx, key)
	if err != nil {
		logger.Error("check processed store", "error", err)
		return mailbox.Retry
	}
	if seen {
		logger.Info("message already processed")
		return mailbox.Done
	}

	result, err := p.cfg.Extractor.Extract(email.Subject, email.Text, email.HTML)
	switch {
	case errors.Is(err, extract.ErrNoCommand):
		logger.Info("no command in reply")
		p.emit(ctx, Event{Kind: EventRejected, Token: token, Reason: err.Error(), MessageKey: key})
		return mailbox.Ignore
	case errors.Is(err, extract.ErrUnsafeCommand):
		logger.Warn("rejecting unsafe command", "reason", err)
		if markErr := p.cfg.Ledger.Record(ctx, key, token, processed.OutcomeRejectedUnsafe); markErr != nil {
			logger.Error("record unsafe rejection", "error", markErr)
			return mailbox.Retry
		}
		p.emit(ctx, Event{Kind: EventRejected, Token: token, Reason: err.Error(), MessageKey: key})
		return mailbox.Done
	case err != nil:
		logger.Info("extraction rejected message", "error", err)
		return mailbox.Ignore
	}

	return p.deliver(ctx, logger, key, token, result.Command)
}

// deliver resolves, injects and records under the token's lock so replies
// racing for one session see each other's command count.
func (p *Processor) deliver(ctx context.Context, logger *slog.Logger, key, token, command string) mailbox.Disposition {
	if err := p.locks.Acquire(ctx, token); err != nil {
		logger.Warn("session busy, retrying later", "error", err)
		return mailbox.Retry
	}
	defer p.locks.Release(token)

	session, found, err := p.cfg.Registry.Resolve(ctx, token)
	if err != nil {
		logger.Error("resolve session", "error", err)
		return mailbox.Retry
	}
	if !found {
		logger.Info("session unavailable")
		p.emit(ctx, Event{Kind: EventRejected, Token: token, Reason: "session not found, expired or over its command limit", MessageKey: key})
		return mailbox.Ignore
	}

	delivered, err := p.cfg.Injector.Inject(ctx, inject.TargetFor(session), command)
	if err != nil {
		if ctx.Err() != nil {
			return mailbox.Retry
		}
		logger.Error("injection failed", "error", err)
		p.emit(ctx, Event{Kind: EventFailed, Token: token, Reason: err.Error(), MessageKey: key})
		return mailbox.Retry
	}

	event := Event{
		Kind:       EventInjected,
		Token:      token,
		Target:     delivered.Target,
		Strategy:   delivered.Strategy,
		MessageKey: key,
	}
	outcome := processed.OutcomeInjected
	if delivered.Manual {
		event.Kind = EventManual
		outcome = processed.OutcomeManual
		if !p.cfg.ClipboardIsTerminal {
			p.emit(ctx, event)
			return mailbox.Retry
		}
	}

	if _, err := p.cfg.Registry.RecordCommand(ctx, token); err != nil {
		logger.Warn("record command count", "error", err)
	}
	if err := p.cfg.Ledger.Record(ctx, key, token, outcome); err != nil {
		logger.Error("record processed marker", "error", err)
	}
	p.emit(ctx, event)
	return mailbox.Done
}

func (p *Processor) emit(ctx context.Context, event Event) {
	event.Time = p.cfg.Clock.Now().UTC()
	p.cfg.Sink.Emit(ctx, event)
}
