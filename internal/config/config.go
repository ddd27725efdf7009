// Package config loads the relay configuration.
//
// Configuration comes from a single YAML file named by the --config flag or
// the TPRELAY_CONFIG environment variable. Fields missing from the file
// keep their defaults. The IMAP password may be given inline or, better,
// through the environment variable named by imap.password_env.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const EnvConfigPath = "TPRELAY_CONFIG"

type Config struct {
	// StateDir holds the sqlite database and the single-instance lock.
	StateDir string `yaml:"state_dir"`

	// Product is the name inside the subject marker, as in [TaskPing #TOKEN].
	Product string `yaml:"product"`

	AllowedSenders []string `yaml:"allowed_senders"`

	IMAP      IMAPConfig      `yaml:"imap"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Processed ProcessedConfig `yaml:"processed"`
	Injection InjectionConfig `yaml:"injection"`
	Relay     RelayConfig     `yaml:"relay"`
	Notify    NotifyConfig    `yaml:"notify"`
	Log       LogConfig       `yaml:"log"`
}

type IMAPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// PasswordEnv names an environment variable holding the password. It
	// is consulted only when Password is empty.
	PasswordEnv        string        `yaml:"password_env"`
	Mailbox            string        `yaml:"mailbox"`
	Plaintext          bool          `yaml:"plaintext"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	DialTimeout        time.Duration `yaml:"dial_timeout"`
	PollInterval       time.Duration `yaml:"poll_interval"`
	SearchWindow       time.Duration `yaml:"search_window"`
}

type SessionsConfig struct {
	// Backend is "sqlite" (the relay database) or "file" (a JSON document
	// shared with an external notifier).
	Backend      string        `yaml:"backend"`
	File         string        `yaml:"file"`
	DefaultTTL   time.Duration `yaml:"default_ttl"`
	CommandLimit int           `yaml:"command_limit"`
}

type ProcessedConfig struct {
	Retention time.Duration `yaml:"retention"`
}

type InjectionConfig struct {
	TmuxSocket            string        `yaml:"tmux_socket"`
	CreateMissing         bool          `yaml:"create_missing"`
	LaunchCommand         string        `yaml:"launch_command"`
	FallbackLaunchCommand string        `yaml:"fallback_launch_command"`
	// WarmUp is the wait after launching a session; negative skips it.
	WarmUp                time.Duration `yaml:"warm_up"`
	ConfirmAttempts       int           `yaml:"confirm_attempts"`
	ConfirmInterval       time.Duration `yaml:"confirm_interval"`
	LockTimeout           time.Duration `yaml:"lock_timeout"`
	// Window enables the WezTerm fallback.
	Window              bool     `yaml:"window"`
	WindowApps          []string `yaml:"window_apps"`
	Clipboard           bool     `yaml:"clipboard"`
	ClipboardIsTerminal bool     `yaml:"clipboard_is_terminal"`
}

type RelayConfig struct {
	MaxParallel      int           `yaml:"max_parallel"`
	ReconnectBackoff time.Duration `yaml:"reconnect_backoff"`
}

type NotifyConfig struct {
	Desktop bool `yaml:"desktop"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Config {
	return &Config{
		StateDir: "${HOME}/.local/state/tprelay",
		Product:  "TaskPing",
		IMAP: IMAPConfig{
			Port:         993,
			Mailbox:      "INBOX",
			DialTimeout:  30 * time.Second,
			PollInterval: 90 * time.Second,
			SearchWindow: 24 * time.Hour,
		},
		Sessions: SessionsConfig{
			Backend:      "sqlite",
			DefaultTTL:   24 * time.Hour,
			CommandLimit: 10,
		},
		Processed: ProcessedConfig{
			Retention: 7 * 24 * time.Hour,
		},
		Injection: InjectionConfig{
			CreateMissing:       true,
			LaunchCommand:       "claude",
			WarmUp:              3 * time.Second,
			ConfirmAttempts:     8,
			ConfirmInterval:     1500 * time.Millisecond,
			LockTimeout:         2 * time.Minute,
			Window:              true,
			WindowApps:          []string{"claude"},
			Clipboard:           true,
			ClipboardIsTerminal: true,
		},
		Relay: RelayConfig{
			MaxParallel:      4,
			ReconnectBackoff: 10 * time.Second,
		},
		Notify: NotifyConfig{
			Desktop: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the file at path, or at $TPRELAY_CONFIG when path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your tprelay.yaml config file, or use --config", EnvConfigPath)
	}
	return LoadFile(path)
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.StateDir = expandVars(c.StateDir, vars)
	vars["STATE_DIR"] = c.StateDir
	c.Sessions.File = expandVars(c.Sessions.File, vars)
	c.Injection.TmuxSocket = expandVars(c.Injection.TmuxSocket, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name := parts[1]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return parts[2]
	})
}

// IMAPPassword returns the inline password or the value of the variable
// named by password_env.
func (c *Config) IMAPPassword() string {
	if c.IMAP.Password != "" {
		return c.IMAP.Password
	}
	if c.IMAP.PasswordEnv != "" {
		return os.Getenv(c.IMAP.PasswordEnv)
	}
	return ""
}

func (c *Config) DatabasePath() string {
	return filepath.Join(c.StateDir, "tprelay.db")
}

func (c *Config) LockPath() string {
	return filepath.Join(c.StateDir, "tprelay.lock")
}

// SessionsFile is the JSON registry used by the file backend.
func (c *Config) SessionsFile() string {
	if c.Sessions.File != "" {
		return c.Sessions.File
	}
	return filepath.Join(c.StateDir, "sessions.json")
}

// Validate checks what every command needs.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.StateDir) == "" {
		errs = append(errs, errors.New("state_dir is required"))
	}
	if strings.TrimSpace(c.Product) == "" {
		errs = append(errs, errors.New("product is required"))
	}
	switch c.Sessions.Backend {
	case "sqlite", "file":
	default:
		errs = append(errs, fmt.Errorf("sessions.backend must be one of: [sqlite file], got %q", c.Sessions.Backend))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be one of: [text json], got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// ValidateWatch adds the checks only the watch command needs.
func (c *Config) ValidateWatch() error {
	errs := []error{c.Validate()}

	if strings.TrimSpace(c.IMAP.Host) == "" {
		errs = append(errs, errors.New("imap.host is required"))
	}
	if strings.TrimSpace(c.IMAP.Username) == "" {
		errs = append(errs, errors.New("imap.username is required"))
	}
	if c.IMAPPassword() == "" {
		errs = append(errs, errors.New("imap.password or imap.password_env is required"))
	}
	if len(c.AllowedSenders) == 0 {
		errs = append(errs, errors.New("allowed_senders must list at least one sender"))
	}
	if c.Relay.MaxParallel < 1 {
		errs = append(errs, errors.New("relay.max_parallel must be at least 1"))
	}

	return errors.Join(errs...)
}

func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log.level must be one of: [debug info warn error], got %q", level)
}
