package scheduler

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrInsufficientProxies is the fatal configuration error raised when
	// proxy usage is requested with fewer proxies than accounts.
	ErrInsufficientProxies = errors.New("scheduler: not enough proxies for the wallets")

	// ErrNoAccounts means no account was provisioned. It is an expected
	// empty state, not a crash.
	ErrNoAccounts = errors.New("scheduler: no wallets found")

	// ErrSessionPanic wraps a panic raised while processing an account.
	ErrSessionPanic = errors.New("scheduler: session panicked")

	ErrAlreadyStarted = errors.New("scheduler: already started")
	ErrNotStarted     = errors.New("scheduler: not started")
)

// StepError records which pipeline step failed.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// FailedStep returns the step that produced err, or "" when err does not
// carry one.
func FailedStep(err error) Step {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}
