package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"tprelay/internal/clock"
	"tprelay/internal/config"
	"tprelay/internal/extract"
	"tprelay/internal/inject"
	"tprelay/internal/lock"
	"tprelay/internal/mailbox"
	"tprelay/internal/processed"
	"tprelay/internal/relay"
	"tprelay/internal/sessions"
	"tprelay/internal/tmux"
	"tprelay/internal/wezterm"
)

var (
	newTmuxClient    = func(socket string) tmux.Client { return tmux.NewCLIClient(socket) }
	newWezTermClient = func() wezterm.Client { return wezterm.NewCLIClient() }
)

func runWatch(args []string) error {
	fs := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	configPath := fs.String("config", "", "Path to tprelay.yaml (default $TPRELAY_CONFIG)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateWatch(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	guard, err := lock.Acquire(cfg.LockPath())
	if err != nil {
		return err
	}
	defer func() {
		if err := guard.Release(); err != nil {
			logger.Warn("release single-instance lock", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	r, err := buildRelay(ctx, cfg, stores, logger)
	if err != nil {
		return err
	}

	logger.Info("relay starting",
		"host", cfg.IMAP.Host,
		"mailbox", cfg.IMAP.Mailbox,
		"product", cfg.Product,
		"state_dir", cfg.StateDir,
	)
	return r.Run(ctx)
}

func buildRelay(ctx context.Context, cfg *config.Config, stores *storeSet, logger *slog.Logger) (*relay.Relay, error) {
	realClock := clock.Real()

	registry := sessions.NewRegistry(stores.sessions, realClock, logger.With("component", "sessions"))
	ledger, err := processed.OpenLedger(ctx, stores.markers, realClock, cfg.Processed.Retention, logger.With("component", "processed"))
	if err != nil {
		return nil, err
	}

	injectLogger := logger.With("component", "inject")
	strategies := []inject.Strategy{
		inject.NewTmuxStrategy(inject.TmuxConfig{
			Client:                newTmuxClient(cfg.Injection.TmuxSocket),
			Clock:                 realClock,
			Logger:                injectLogger,
			CreateMissing:         cfg.Injection.CreateMissing,
			LaunchCommand:         cfg.Injection.LaunchCommand,
			FallbackLaunchCommand: cfg.Injection.FallbackLaunchCommand,
			WarmUp:                cfg.Injection.WarmUp,
			ConfirmAttempts:       cfg.Injection.ConfirmAttempts,
			ConfirmInterval:       cfg.Injection.ConfirmInterval,
		}),
	}
	if cfg.Injection.Window {
		strategies = append(strategies, inject.NewWindowStrategy(newWezTermClient(), cfg.Injection.WindowApps, injectLogger))
	}
	if cfg.Injection.Clipboard {
		strategies = append(strategies, inject.NewClipboardStrategy(injectLogger))
	}

	engine := inject.NewEngine(inject.EngineConfig{
		Strategies:  strategies,
		Audit:       stores.audit,
		Clock:       realClock,
		Logger:      injectLogger,
		LockTimeout: cfg.Injection.LockTimeout,
	})

	sinks := relay.MultiSink{relay.LogSink{Logger: logger.With("component", "events")}}
	if cfg.Notify.Desktop {
		sinks = append(sinks, relay.NewDesktopSink(logger))
	}

	processor := relay.NewProcessor(relay.ProcessorConfig{
		AllowedSenders:      cfg.AllowedSenders,
		Extractor:           extract.New(cfg.Product),
		Registry:            registry,
		Ledger:              ledger,
		Injector:            engine,
		Sink:                sinks,
		Clock:               realClock,
		Logger:              logger.With("component", "processor"),
		ClipboardIsTerminal: cfg.Injection.ClipboardIsTerminal,
		LockTimeout:         cfg.Injection.LockTimeout,
	})

	mailLogger := logger.With("component", "mailbox")
	watcher := mailbox.NewWatcher(mailbox.WatcherConfig{
		Handler:      processor,
		Clock:        realClock,
		Logger:       mailLogger,
		PollInterval: cfg.IMAP.PollInterval,
		SearchWindow: cfg.IMAP.SearchWindow,
		MaxParallel:  cfg.Relay.MaxParallel,
	})
	dialer := mailbox.NewIMAPDialer(mailbox.IMAPConfig{
		Host:               cfg.IMAP.Host,
		Port:               cfg.IMAP.Port,
		Username:           cfg.IMAP.Username,
		Password:           cfg.IMAPPassword(),
		Mailbox:            cfg.IMAP.Mailbox,
		Plaintext:          cfg.IMAP.Plaintext,
		InsecureSkipVerify: cfg.IMAP.InsecureSkipVerify,
		DialTimeout:        cfg.IMAP.DialTimeout,
		Logger:             mailLogger,
	})

	return relay.New(relay.Config{
		Dialer:  dialer,
		Watcher: watcher,
		Clock:   realClock,
		Logger:  logger.With("component", "relay"),
		Backoff: cfg.Relay.ReconnectBackoff,
	}), nil
}

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	options := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, options)), nil
	}
	return slog.New(slog.NewTextHandler(w, options)), nil
}
