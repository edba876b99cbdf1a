// Package errors provides centralized error definitions and error handling utilities
// for dossier. It defines the error taxonomy of a research run, error
// constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// The taxonomy mirrors how a run can go wrong:
//   - DecodeError: one malformed inbound frame; recovered locally by dropping it
//   - RunError: the research service reported an error for the run
//   - TransportError: the connection failed or closed before a terminal event
//   - TransitionError: an event asked for an illegal task state change
//
// ValidationError is the semantic error for invalid input (start parameters,
// configuration values, tool patterns).
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewDecodeError("envelope is not an object", errors.ErrMalformedEnvelope)
//	err := errors.NewTransportError("dial failed", cause).WithURL(url)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrConnectionClosed) { ... }
//
//	var decodeErr *errors.DecodeError
//	if errors.As(err, &decodeErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
//	if errors.IsUserFacing(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Decode-related sentinel errors
var (
	// ErrMalformedEnvelope indicates a frame that is not a JSON object.
	ErrMalformedEnvelope = New("malformed event envelope")
	// ErrMissingType indicates an envelope without a "type" discriminator.
	ErrMissingType = New("event envelope has no type")
	// ErrInvalidField indicates a known field carrying a value of the wrong shape.
	ErrInvalidField = New("event field has invalid value")
)

// Connection-related sentinel errors
var (
	// ErrHandshakeFailed indicates the connection could not be opened.
	ErrHandshakeFailed = New("connection handshake failed")
	// ErrConnectionClosed indicates the connection closed before the run finished.
	ErrConnectionClosed = New("connection closed before run finished")
	// ErrConnectionLost indicates a read or write failure on an open connection.
	ErrConnectionLost = New("connection lost")
	// ErrNoActiveRun indicates an operation that needs a live run found none.
	ErrNoActiveRun = New("no active run")
)

// Run-related sentinel errors
var (
	// ErrRunFailed indicates the research service reported a failure.
	ErrRunFailed = New("research run failed")
	// ErrInvalidTransition indicates a task state change outside the allowed path.
	ErrInvalidTransition = New("invalid task transition")
	// ErrIterationRegressed indicates an iteration counter moving backwards.
	ErrIterationRegressed = New("task iteration regressed")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// DossierError is the base interface for all dossier errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type DossierError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and a new run
	// may succeed.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// prefixed renders "<kind> [k=v, ...]: message: cause".
func (e *baseError) prefixed(kind string, parts []string) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// DecodeError represents a single inbound frame that could not be decoded.
// Decode errors never end a run; the frame is dropped and logged.
//
// Example:
//
//	err := errors.NewDecodeError("unexpected end of JSON input", errors.ErrMalformedEnvelope)
//	err = err.WithEventType("progress").WithFrame(raw)
type DecodeError struct {
	baseError
	EventType string
	Field     string
	Frame     string // Truncated copy of the offending frame
}

// maxFrameExcerpt bounds the frame copy kept on a DecodeError.
const maxFrameExcerpt = 256

// NewDecodeError creates a new DecodeError.
func NewDecodeError(message string, cause error) *DecodeError {
	return &DecodeError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: false,
		},
	}
}

// WithEventType adds the envelope type (if it could be read) to the error context.
func (e *DecodeError) WithEventType(eventType string) *DecodeError {
	e.EventType = eventType
	return e
}

// WithField adds the offending field name to the error context.
func (e *DecodeError) WithField(field string) *DecodeError {
	e.Field = field
	return e
}

// WithFrame records a truncated excerpt of the raw frame.
func (e *DecodeError) WithFrame(raw []byte) *DecodeError {
	frame := string(raw)
	if len(frame) > maxFrameExcerpt {
		frame = frame[:maxFrameExcerpt-3] + "..."
	}
	e.Frame = frame
	return e
}

// Error returns the formatted error message.
func (e *DecodeError) Error() string {
	var parts []string
	if e.EventType != "" {
		parts = append(parts, fmt.Sprintf("type=%s", e.EventType))
	}
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	return e.prefixed("decode error", parts)
}

// Is checks if this error matches the target.
func (e *DecodeError) Is(target error) bool {
	if _, ok := target.(*DecodeError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// RunError represents a failure the research service reported for a run.
//
// Example:
//
//	err := errors.NewRunError("knowledge base not found").WithRunID(id)
type RunError struct {
	baseError
	RunID string
}

// NewRunError creates a new RunError wrapping ErrRunFailed.
func NewRunError(message string) *RunError {
	return &RunError{
		baseError: baseError{
			message:    message,
			cause:      ErrRunFailed,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithRunID adds a run ID to the error context.
func (e *RunError) WithRunID(id string) *RunError {
	e.RunID = id
	return e
}

// Error returns the formatted error message.
func (e *RunError) Error() string {
	var parts []string
	if e.RunID != "" {
		parts = append(parts, fmt.Sprintf("run=%s", e.RunID))
	}
	return e.prefixed("run error", parts)
}

// Is checks if this error matches the target.
func (e *RunError) Is(target error) bool {
	if _, ok := target.(*RunError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TransportError represents a connection-level failure.
//
// Example:
//
//	err := errors.NewTransportError("dial failed", errors.ErrHandshakeFailed).
//		WithURL("ws://localhost:8001/api/v1/research/run").
//		WithRunID(id)
type TransportError struct {
	baseError
	URL   string
	RunID string
}

// NewTransportError creates a new TransportError. Transport errors are
// retryable: starting a new run may succeed.
func NewTransportError(message string, cause error) *TransportError {
	return &TransportError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  true,
			userFacing: true,
		},
	}
}

// WithURL adds the endpoint URL to the error context.
func (e *TransportError) WithURL(url string) *TransportError {
	e.URL = url
	return e
}

// WithRunID adds a run ID to the error context.
func (e *TransportError) WithRunID(id string) *TransportError {
	e.RunID = id
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *TransportError) WithRetryable(r bool) *TransportError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *TransportError) Error() string {
	var parts []string
	if e.RunID != "" {
		parts = append(parts, fmt.Sprintf("run=%s", e.RunID))
	}
	if e.URL != "" {
		parts = append(parts, fmt.Sprintf("url=%s", e.URL))
	}
	return e.prefixed("transport error", parts)
}

// Is checks if this error matches the target.
func (e *TransportError) Is(target error) bool {
	if _, ok := target.(*TransportError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TransitionError represents an event that asked a task to move outside
// its allowed status path, or to move its iteration counter backwards.
// The change is not applied; the prior value is kept.
//
// Example:
//
//	err := errors.NewTransitionError("t1", "failed", "running")
type TransitionError struct {
	baseError
	TaskID string
	From   string
	To     string
}

// NewTransitionError creates a new TransitionError wrapping ErrInvalidTransition.
func NewTransitionError(taskID, from, to string) *TransitionError {
	return &TransitionError{
		baseError: baseError{
			message:    fmt.Sprintf("%s -> %s not allowed", from, to),
			cause:      ErrInvalidTransition,
			severity:   SeverityDebug,
			retryable:  false,
			userFacing: false,
		},
		TaskID: taskID,
		From:   from,
		To:     to,
	}
}

// NewIterationError creates a TransitionError for a regressing iteration.
func NewIterationError(taskID string, from, to int) *TransitionError {
	return &TransitionError{
		baseError: baseError{
			message:    fmt.Sprintf("iteration %d -> %d not allowed", from, to),
			cause:      ErrIterationRegressed,
			severity:   SeverityDebug,
			retryable:  false,
			userFacing: false,
		},
		TaskID: taskID,
		From:   fmt.Sprint(from),
		To:     fmt.Sprint(to),
	}
}

// Error returns the formatted error message.
func (e *TransitionError) Error() string {
	var parts []string
	if e.TaskID != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.TaskID))
	}
	return e.prefixed("transition error", parts)
}

// Is checks if this error matches the target.
func (e *TransitionError) Is(target error) bool {
	if _, ok := target.(*TransitionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("topic cannot be empty")
//	err = err.WithField("topic").WithValue("")
type ValidationError struct {
	Message string
	Field   string
	Value   any
	cause   error
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		Message: message,
		cause:   ErrInvalidInput,
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation error")
	if e.Field != "" {
		sb.WriteString(fmt.Sprintf(" [%s]", e.Field))
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Value != nil {
		sb.WriteString(fmt.Sprintf(" (got: %v)", e.Value))
	}
	return sb.String()
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// where starting a new run may succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var dossierErr DossierError
	if As(err, &dossierErr) {
		return dossierErr.IsRetryable()
	}

	return false
}

// IsUserFacing returns true if the error message is safe to display to end users.
// ValidationError is always user-facing.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var dossierErr DossierError
	if As(err, &dossierErr) {
		return dossierErr.IsUserFacing()
	}

	var validation *ValidationError
	return As(err, &validation)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement DossierError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var dossierErr DossierError
	if As(err, &dossierErr) {
		return dossierErr.Severity()
	}

	return SeverityError
}

// UserMessage returns the text to show a user for err. User-facing errors
// and errors outside the taxonomy (flag parsing, file access) keep their
// text; classified errors that are not user-facing collapse to a generic
// line.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var dossierErr DossierError
	if IsUserFacing(err) || !As(err, &dossierErr) {
		return err.Error()
	}
	return "internal error"
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
