package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/Iron-Ham/dossier/internal/toolset"
	"github.com/Iron-Ham/dossier/internal/wire"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "server.url")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidPlanModes returns the list of valid plan modes
func ValidPlanModes() []string {
	modes := wire.PlanModes()
	out := make([]string, len(modes))
	for i, m := range modes {
		out[i] = string(m)
	}
	return out
}

// maxTimeoutSeconds bounds the server timeouts.
const maxTimeoutSeconds = 300

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateRun()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateRecording()...)
	errors = append(errors, c.validateTUI()...)

	return errors
}

// validateServer validates the ServerConfig
func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	u, err := url.Parse(c.Server.URL)
	switch {
	case c.Server.URL == "":
		errors = append(errors, ValidationError{
			Field:   "server.url",
			Value:   c.Server.URL,
			Message: "must not be empty",
		})
	case err != nil:
		errors = append(errors, ValidationError{
			Field:   "server.url",
			Value:   c.Server.URL,
			Message: fmt.Sprintf("is not a valid URL: %v", err),
		})
	case u.Scheme != "ws" && u.Scheme != "wss":
		errors = append(errors, ValidationError{
			Field:   "server.url",
			Value:   c.Server.URL,
			Message: "scheme must be ws or wss",
		})
	case u.Host == "":
		errors = append(errors, ValidationError{
			Field:   "server.url",
			Value:   c.Server.URL,
			Message: "must include a host",
		})
	}

	if c.Server.Path != "" && !strings.HasPrefix(c.Server.Path, "/") {
		errors = append(errors, ValidationError{
			Field:   "server.path",
			Value:   c.Server.Path,
			Message: "must start with /",
		})
	}

	timeouts := []struct {
		field string
		value int
	}{
		{"server.handshake_timeout_seconds", c.Server.HandshakeTimeoutSeconds},
		{"server.write_timeout_seconds", c.Server.WriteTimeoutSeconds},
	}
	for _, tt := range timeouts {
		if tt.value <= 0 {
			errors = append(errors, ValidationError{
				Field:   tt.field,
				Value:   tt.value,
				Message: "must be positive",
			})
		} else if tt.value > maxTimeoutSeconds {
			errors = append(errors, ValidationError{
				Field:   tt.field,
				Value:   tt.value,
				Message: fmt.Sprintf("exceeds maximum of %d seconds", maxTimeoutSeconds),
			})
		}
	}

	return errors
}

// validateRun validates the RunConfig against the tool catalogue
func (c *Config) validateRun() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidPlanModes(), strings.ToLower(c.Run.PlanMode)) {
		errors = append(errors, ValidationError{
			Field:   "run.plan_mode",
			Value:   c.Run.PlanMode,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidPlanModes(), ", ")),
		})
	}

	if _, err := toolset.FromNames(c.Tools.Catalog).Select(c.Run.EnabledTools); err != nil {
		errors = append(errors, ValidationError{
			Field:   "run.enabled_tools",
			Value:   c.Run.EnabledTools,
			Message: err.Error(),
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	errors = append(errors, validateDir("logging.dir", c.Logging.Dir)...)

	return errors
}

// validateRecording validates the RecordingConfig
func (c *Config) validateRecording() []ValidationError {
	return validateDir("recording.dir", c.Recording.Dir)
}

// validateTUI validates the TUIConfig
func (c *Config) validateTUI() []ValidationError {
	var errors []ValidationError

	if c.TUI.MaxLogLines < 0 {
		errors = append(errors, ValidationError{
			Field:   "tui.max_log_lines",
			Value:   c.TUI.MaxLogLines,
			Message: "must be non-negative",
		})
	}

	const maxLogLines = 100000
	if c.TUI.MaxLogLines > maxLogLines {
		errors = append(errors, ValidationError{
			Field:   "tui.max_log_lines",
			Value:   c.TUI.MaxLogLines,
			Message: fmt.Sprintf("exceeds maximum of %d", maxLogLines),
		})
	}

	return errors
}

func validateDir(field, dir string) []ValidationError {
	var errors []ValidationError
	if dir == "" {
		return errors
	}

	// Check for null bytes which are invalid in paths
	if strings.ContainsRune(dir, '\x00') {
		errors = append(errors, ValidationError{
			Field:   field,
			Value:   dir,
			Message: "path contains invalid null character",
		})
	}

	// Reasonable path length limit (most filesystems have limits around 4096)
	const maxPathLength = 4096
	if len(dir) > maxPathLength {
		errors = append(errors, ValidationError{
			Field:   field,
			Value:   dir,
			Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
		})
	}

	return errors
}
