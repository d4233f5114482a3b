package sweep

import (
	"errors"
	"fmt"

	"Skysweep/internal/core/retention"
)

// Kind is the outcome class of a failed pass
type Kind string

const (
	// KindBadCredential means the remote service rejected the account's credentials.
	// Re-running with the same credential will fail the same way.
	KindBadCredential Kind = "bad credential"
	// KindConfiguration means the pass could not start from its settings
	KindConfiguration Kind = "configuration error"
	// KindEngine covers everything else: feed fetches, removals, interruption
	KindEngine Kind = "engine error"
)

// Exit statuses for each outcome
const (
	ExitOK            = 0
	ExitEngine        = 1
	ExitConfiguration = 2
	ExitBadCredential = 3
)

// Error is the result of a pass that did not complete
type Error struct {
	Err    error
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ExitCode maps the error to the process exit status.
func (e *Error) ExitCode() int {
	switch e.Kind {
	case KindBadCredential:
		return ExitBadCredential
	case KindConfiguration:
		return ExitConfiguration
	default:
		return ExitEngine
	}
}

// ConfigurationError wraps err as a configuration failure.
func ConfigurationError(err error) *Error {
	return &Error{Kind: KindConfiguration, Detail: err.Error(), Err: err}
}

// Classify turns any error from a pass into an *Error. It returns nil for nil and passes an
// *Error through unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var sweepErr *Error
	if errors.As(err, &sweepErr) {
		return sweepErr
	}

	var resolutionErr *retention.AccountResolutionError
	switch {
	case errors.Is(err, retention.ErrInvalidCredential):
		return &Error{Kind: KindBadCredential, Detail: err.Error(), Err: err}
	case errors.As(err, &resolutionErr):
		return ConfigurationError(err)
	case retention.IsSessionError(err):
		// An unreachable host may recover by the next scheduled pass
		return &Error{Kind: KindEngine, Detail: err.Error(), Err: err}
	default:
		return &Error{Kind: KindEngine, Detail: err.Error(), Err: err}
	}
}

// ExitCode returns the exit status for the result of a pass.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	return Classify(err).ExitCode()
}
