package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"tprelay/internal/clock"
	"tprelay/internal/config"
	"tprelay/internal/extract"
	"tprelay/internal/mailbox"
	"tprelay/internal/sessions"
	"tprelay/internal/ui"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "tprelay error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return printUsage()
	}

	switch args[0] {
	case "watch":
		return runWatch(args[1:])
	case "session":
		return runSession(args[1:])
	case "extract":
		return runExtract(args[1:])
	case "status":
		return runStatus(args[1:])
	default:
		return printUsage()
	}
}

func runSession(args []string) error {
	if len(args) == 0 {
		return printUsage()
	}

	switch args[0] {
	case "add":
		return runSessionAdd(args[1:])
	case "list":
		return runSessionList(args[1:])
	default:
		return printUsage()
	}
}

func runSessionAdd(args []string) error {
	fs := pflag.NewFlagSet("session add", pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	configPath := fs.String("config", "", "Path to tprelay.yaml (default $TPRELAY_CONFIG)")
	token := fs.String("token", "", "Session token (generated when empty)")
	tmuxSession := fs.String("tmux", "", "tmux session that receives commands")
	workDir := fs.String("workdir", "", "Working directory for the session")
	ttl := fs.Duration("ttl", 0, "How long the token stays valid (default sessions.default_ttl)")
	limit := fs.Int("limit", 0, "Maximum commands accepted (default sessions.command_limit)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tmuxSession == "" {
		return fmt.Errorf("--tmux is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	stores, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	if *ttl <= 0 {
		*ttl = cfg.Sessions.DefaultTTL
	}
	if *limit <= 0 {
		*limit = cfg.Sessions.CommandLimit
	}

	registry := sessions.NewRegistry(stores.sessions, clock.Real(), nil)
	session, err := registry.Create(context.Background(), sessions.CreateParams{
		Token:        *token,
		TmuxSession:  *tmuxSession,
		WorkDir:      *workDir,
		TTL:          *ttl,
		CommandLimit: *limit,
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	fmt.Printf("token=%s status=created tmux=%s expires_at=%s subject_marker=%q\n",
		session.Token,
		session.TmuxSession,
		session.ExpiresAt.Format(time.RFC3339),
		fmt.Sprintf("[%s #%s]", cfg.Product, session.Token),
	)
	return nil
}

func runSessionList(args []string) error {
	fs := pflag.NewFlagSet("session list", pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	configPath := fs.String("config", "", "Path to tprelay.yaml (default $TPRELAY_CONFIG)")
	jsonOut := fs.Bool("json", false, "Print sessions as JSON")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	stores, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	list, err := sessions.NewRegistry(stores.sessions, clock.Real(), nil).List(context.Background())
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	if *jsonOut {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(list)
	}
	if len(list) == 0 {
		fmt.Println("no sessions")
		return nil
	}
	now := time.Now()
	for _, session := range list {
		fmt.Printf("token=%s tmux=%s commands=%d/%d usable=%t expires=%q\n",
			session.Token,
			session.TmuxSession,
			session.CommandCount,
			session.CommandLimit,
			session.Usable(now),
			humanize.Time(session.ExpiresAt),
		)
	}
	return nil
}

// runExtract parses a message the way the relay would and prints what it
// would inject, without touching any session.
func runExtract(args []string) error {
	fs := pflag.NewFlagSet("extract", pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	product := fs.String("product", extract.DefaultProduct, "Product name inside the subject marker")

	if err := fs.Parse(args); err != nil {
		return err
	}

	var source io.Reader = os.Stdin
	if fs.NArg() > 0 && fs.Arg(0) != "-" {
		file, err := os.Open(fs.Arg(0))
		if err != nil {
			return fmt.Errorf("open message: %w", err)
		}
		defer file.Close()
		source = file
	}

	email, err := mailbox.ParseMessage(source)
	if err != nil {
		return err
	}

	result, err := extract.New(*product).Extract(email.Subject, email.Text, email.HTML)
	status := "ok"
	switch {
	case errors.Is(err, extract.ErrNoToken):
		status = "no_token"
	case errors.Is(err, extract.ErrNoCommand):
		status = "no_command"
	case errors.Is(err, extract.ErrUnsafeCommand):
		status = "unsafe"
	case err != nil:
		return err
	}

	fmt.Printf("token=%s status=%s from=%s command=%q\n", result.Token, status, email.From, result.Command)
	return nil
}

func runStatus(args []string) error {
	fs := pflag.NewFlagSet("status", pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	configPath := fs.String("config", "", "Path to tprelay.yaml (default $TPRELAY_CONFIG)")
	preview := fs.Bool("preview", false, "Print the dashboard once and exit")
	limit := fs.Int("limit", 20, "Rows shown for processed messages and injections")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	stores, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	load := func() (ui.Model, error) {
		return loadStatusModel(context.Background(), stores, *limit)
	}
	model, err := load()
	if err != nil {
		return err
	}

	if *preview {
		fmt.Print(model.View())
		return nil
	}
	return ui.RunInteractive(model, load, os.Stdin, os.Stdout)
}

func loadStatusModel(ctx context.Context, stores *storeSet, limit int) (ui.Model, error) {
	now := time.Now()

	list, err := stores.sessions.ListSessions(ctx)
	if err != nil {
		return ui.Model{}, fmt.Errorf("list sessions: %w", err)
	}
	markers, err := stores.markers.List(ctx, limit)
	if err != nil {
		return ui.Model{}, fmt.Errorf("list processed messages: %w", err)
	}
	injections, err := stores.audit.ListInjections(ctx, limit)
	if err != nil {
		return ui.Model{}, fmt.Errorf("list injections: %w", err)
	}

	return ui.NewModelFromSections(ui.Sections{
		Sessions:   ui.SessionRows(list, now),
		Processed:  ui.ProcessedRows(markers, now),
		Injections: ui.InjectionRows(injections, now),
	}), nil
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func printUsage() error {
	usage := []string{
		"tprelay usage:",
		"  tprelay watch [--config path]",
		"  tprelay session add --tmux name [--token ABC123] [--workdir dir] [--ttl 24h] [--limit 10] [--config path]",
		"  tprelay session list [--json] [--config path]",
		"  tprelay extract [--product TaskPing] [message.eml|-]",
		"  tprelay status [--preview] [--limit 20] [--config path]",
	}
	fmt.Println(strings.Join(usage, "\n"))
	return nil
}
