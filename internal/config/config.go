package config

import (
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/dossier/internal/wire"
)

// Config represents the complete dossier configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Run       RunConfig       `mapstructure:"run" yaml:"run"`
	Tools     ToolsConfig     `mapstructure:"tools" yaml:"tools"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Recording RecordingConfig `mapstructure:"recording" yaml:"recording"`
	TUI       TUIConfig       `mapstructure:"tui" yaml:"tui"`
}

// ServerConfig locates the research service
type ServerConfig struct {
	// URL is the ws:// or wss:// base of the service (default: "ws://localhost:8001")
	URL string `mapstructure:"url" yaml:"url"`
	// Path is the run endpoint joined onto URL (default: "/api/v1/research/run")
	Path string `mapstructure:"path" yaml:"path"`
	// HandshakeTimeoutSeconds bounds the WebSocket handshake
	HandshakeTimeoutSeconds int `mapstructure:"handshake_timeout_seconds" yaml:"handshake_timeout_seconds"`
	// WriteTimeoutSeconds bounds the start message and close frame
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds" yaml:"write_timeout_seconds"`
	// CloseOnTerminal closes the connection after a result or error event (default: true)
	CloseOnTerminal bool `mapstructure:"close_on_terminal" yaml:"close_on_terminal"`
}

// RunConfig holds defaults for the start message
type RunConfig struct {
	KnowledgeBase string `mapstructure:"knowledge_base" yaml:"knowledge_base"`
	// PlanMode is one of quick, medium, deep, auto (default: "medium")
	PlanMode string `mapstructure:"plan_mode" yaml:"plan_mode"`
	// EnabledTools are tool names or glob patterns; empty lets the service decide
	EnabledTools []string `mapstructure:"enabled_tools" yaml:"enabled_tools"`
	SkipRephrase bool     `mapstructure:"skip_rephrase" yaml:"skip_rephrase"`
}

// ToolsConfig controls the tool catalogue
type ToolsConfig struct {
	// Catalog replaces the built-in tool names when non-empty
	Catalog []string `mapstructure:"catalog" yaml:"catalog"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether logging is active (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the minimum log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is where dossier.log is written; empty means <config dir>/logs
	Dir string `mapstructure:"dir" yaml:"dir"`
	// MaxSizeMB is the maximum log file size before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of rotated files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated files
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// RecordingConfig controls frame recording for offline replay
type RecordingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Dir holds <run id>.jsonl files; empty means <config dir>/recordings
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// TUIConfig controls the terminal UI behavior
type TUIConfig struct {
	// MaxLogLines limits how many log lines the log pane keeps (default: 200)
	MaxLogLines int `mapstructure:"max_log_lines" yaml:"max_log_lines"`
	// RenderMarkdown renders the final report with glamour (default: true)
	RenderMarkdown bool `mapstructure:"render_markdown" yaml:"render_markdown"`
	// Plain forces the line printer even on a terminal
	Plain bool `mapstructure:"plain" yaml:"plain"`
}

// Endpoint returns the full WebSocket URL of the run endpoint.
func (s *ServerConfig) Endpoint() (string, error) {
	if s.Path == "" {
		return s.URL, nil
	}
	return url.JoinPath(s.URL, s.Path)
}

// HandshakeTimeout returns the handshake timeout as a time.Duration
func (s *ServerConfig) HandshakeTimeout() time.Duration {
	return time.Duration(s.HandshakeTimeoutSeconds) * time.Second
}

// WriteTimeout returns the write timeout as a time.Duration
func (s *ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSeconds) * time.Second
}

// Params builds the start message for topic from the run defaults. Tool
// patterns are passed through unexpanded.
func (r *RunConfig) Params(topic string) wire.StartParams {
	return wire.StartParams{
		Topic:         topic,
		KnowledgeBase: r.KnowledgeBase,
		PlanMode:      wire.PlanMode(strings.ToLower(r.PlanMode)),
		EnabledTools:  slices.Clone(r.EnabledTools),
		SkipRephrase:  r.SkipRephrase,
	}
}

// ResolveDir expands a configured directory. Empty returns fallback; a
// leading ~ expands to the home directory; relative paths are kept as is.
func ResolveDir(dir, fallback string) string {
	if dir == "" {
		return fallback
	}
	if strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, dir[2:])
		}
	} else if dir == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
	}
	return dir
}

// LogDir returns the resolved logging directory.
func (c *Config) LogDir() string {
	return ResolveDir(c.Logging.Dir, filepath.Join(ConfigDir(), "logs"))
}

// RecordingDir returns the resolved recording directory.
func (c *Config) RecordingDir() string {
	return ResolveDir(c.Recording.Dir, filepath.Join(ConfigDir(), "recordings"))
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:                     "ws://localhost:8001",
			Path:                    "/api/v1/research/run",
			HandshakeTimeoutSeconds: 10,
			WriteTimeoutSeconds:     5,
			CloseOnTerminal:         true,
		},
		Run: RunConfig{
			KnowledgeBase: "",
			PlanMode:      string(wire.PlanMedium),
			EnabledTools:  []string{},
			SkipRephrase:  false,
		},
		Tools: ToolsConfig{
			Catalog: []string{}, // Empty means the built-in catalogue
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
		Recording: RecordingConfig{
			Enabled: false,
		},
		TUI: TUIConfig{
			MaxLogLines:    200,
			RenderMarkdown: true,
			Plain:          false,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Server defaults
	viper.SetDefault("server.url", defaults.Server.URL)
	viper.SetDefault("server.path", defaults.Server.Path)
	viper.SetDefault("server.handshake_timeout_seconds", defaults.Server.HandshakeTimeoutSeconds)
	viper.SetDefault("server.write_timeout_seconds", defaults.Server.WriteTimeoutSeconds)
	viper.SetDefault("server.close_on_terminal", defaults.Server.CloseOnTerminal)

	// Run defaults
	viper.SetDefault("run.knowledge_base", defaults.Run.KnowledgeBase)
	viper.SetDefault("run.plan_mode", defaults.Run.PlanMode)
	viper.SetDefault("run.enabled_tools", defaults.Run.EnabledTools)
	viper.SetDefault("run.skip_rephrase", defaults.Run.SkipRephrase)

	// Tools defaults
	viper.SetDefault("tools.catalog", defaults.Tools.Catalog)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Recording defaults
	viper.SetDefault("recording.enabled", defaults.Recording.Enabled)
	viper.SetDefault("recording.dir", defaults.Recording.Dir)

	// TUI defaults
	viper.SetDefault("tui.max_log_lines", defaults.TUI.MaxLogLines)
	viper.SetDefault("tui.render_markdown", defaults.TUI.RenderMarkdown)
	viper.SetDefault("tui.plain", defaults.TUI.Plain)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dossier")
	}
	// Fall back to ~/.config/dossier
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dossier"
	}
	return filepath.Join(home, ".config", "dossier")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// EnvPrefix is the prefix of environment overrides, e.g. DOSSIER_SERVER_URL.
const EnvPrefix = "DOSSIER"
