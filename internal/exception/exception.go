package exception

import "errors"

// Pipeline errors
var (
	ErrAlertNotFound   = errors.New("alert not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrRiskRejected    = errors.New("risk rejected")
	ErrDuplicateAlert  = errors.New("duplicate alert")
	ErrExecutionHalted = errors.New("execution halted")
	ErrNilInstance     = errors.New("nil instance")
)

// Upstream errors
var (
	ErrTransientUpstream = errors.New("transient upstream failure")
	ErrRateLimited       = errors.New("rate limited")
)

// Retryable reports whether a queued task that failed with err should be
// delivered again.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTransientUpstream) || errors.Is(err, ErrRateLimited)
}
