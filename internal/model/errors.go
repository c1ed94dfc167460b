// errors.go defines the recoverable error taxonomy shared by the prober
// and the termination engine, the classifier that maps raw OS/Docker
// errors onto it, and the CLIError/ExitCode pair used at the process
// boundary.
package model

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
)

// Sentinel errors for the recoverable failure taxonomy. Components compare
// against these with errors.Is; raw OS errors are classified once at the
// point of failure and never propagated upward.
var (
	// ErrProbeTimeout indicates a single port probe exceeded its bounded
	// timeout. Treated as an empty result for that port; the scan cycle
	// continues.
	ErrProbeTimeout = errors.New("port probe timed out")

	// ErrPermissionDenied indicates the OS or Docker refused an operation
	// on a target owned by another user. Surfaced in KillOutcome.Error,
	// never retried automatically.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrTargetVanished indicates a kill target no longer existed when the
	// engine acted. Treated as success for termination intent.
	ErrTargetVanished = errors.New("target no longer exists")

	// ErrToolUnavailable indicates the underlying OS query or kill
	// mechanism itself is missing (e.g., taskkill not on PATH). Fatal for
	// the affected component, surfaced once at startup rather than per
	// cycle.
	ErrToolUnavailable = errors.New("platform tool unavailable")
)

// ClassifyKillError maps a raw error from a signal, taskkill, or Docker
// operation onto a KillResult. It recognizes the two errno values that
// matter for termination semantics (ESRCH → vanished, EPERM/EACCES →
// permission denied) plus the string forms that taskkill and the Docker
// daemon report, and falls back to ResultFailed for everything else.
func ClassifyKillError(err error) KillResult {
	if err == nil {
		return ResultKilled
	}
	if errors.Is(err, ErrTargetVanished) || errors.Is(err, syscall.ESRCH) {
		return ResultVanished
	}
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EACCES) {
		return ResultPermissionDenied
	}

	// Tool and daemon errors arrive as opaque strings (taskkill output,
	// Docker API messages), so fall back to substring matching.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such process"),
		strings.Contains(msg, "no such container"),
		strings.Contains(msg, "not found"),
		strings.Contains(msg, "process does not exist"):
		return ResultVanished
	case strings.Contains(msg, "permission denied"),
		strings.Contains(msg, "access is denied"),
		strings.Contains(msg, "operation not permitted"):
		return ResultPermissionDenied
	default:
		return ResultFailed
	}
}

// ExitCode defines standard CLI exit codes. These codes allow scripts and
// CI systems to programmatically determine the outcome of a command.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitInvalidConfig indicates the watch configuration (ports, ignore
	// lists, intervals) was rejected during validation.
	ExitInvalidConfig ExitCode = 2

	// ExitDockerUnavailable indicates container support was requested but
	// the Docker daemon is not accessible.
	ExitDockerUnavailable ExitCode = 3

	// ExitToolUnavailable indicates the platform's process query or kill
	// mechanism is missing.
	ExitToolUnavailable ExitCode = 4

	// ExitKillFailed indicates at least one kill target genuinely failed
	// (permission denied or survived all escalation steps).
	ExitKillFailed ExitCode = 5
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
