package errors

import (
	"errors"
	"fmt"
)

// Process exit codes reported by the CLI.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitUsage        = 2
	ExitPartialWrite = 3
)

// AppError is a classified failure carrying the exit code the process should report.
type AppError struct {
	Code     string
	Message  string
	ExitCode int
	Internal error
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches AppErrors by code so wrapped copies still match their sentinel.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// Error classes of a warm run.
var (
	// ErrNotCommandLine rejects invocation from a web server gateway.
	ErrNotCommandLine = &AppError{
		Code:     "NOT_COMMAND_LINE",
		Message:  "must be executed from the command line",
		ExitCode: ExitFailure,
	}

	ErrInvalidOptions = &AppError{
		Code:     "INVALID_OPTIONS",
		Message:  "invalid options",
		ExitCode: ExitUsage,
	}

	ErrSourceUnavailable = &AppError{
		Code:     "SOURCE_UNAVAILABLE",
		Message:  "client database unavailable",
		ExitCode: ExitFailure,
	}

	ErrCacheUnavailable = &AppError{
		Code:     "CACHE_UNAVAILABLE",
		Message:  "cache endpoint unavailable",
		ExitCode: ExitFailure,
	}

	// ErrPartialWrite reports that some snapshots could not be written.
	ErrPartialWrite = &AppError{
		Code:     "PARTIAL_WRITE",
		Message:  "some snapshots were not cached",
		ExitCode: ExitPartialWrite,
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string, exitCode int) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		ExitCode: exitCode,
	}
}

// Wrap turns any error into a generic failure while keeping the original error.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:     "INTERNAL_ERROR",
		Message:  message,
		ExitCode: ExitFailure,
		Internal: err,
	}
}

// InvalidOptions wraps a validation failure as ErrInvalidOptions.
func InvalidOptions(err error) *AppError {
	return ErrInvalidOptions.WithInternal(err)
}

// ExitCode maps err to the process exit status. Unclassified errors exit with ExitFailure.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.ExitCode
	}
	return ExitFailure
}
