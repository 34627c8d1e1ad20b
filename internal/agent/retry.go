package agent

import "github.com/ShayCichocki/switchboard/pkg/models"

// RetryDecision represents the decision after evaluating a failed attempt.
type RetryDecision int

const (
	// Retry indicates the call should be attempted again after a backoff.
	Retry RetryDecision = iota
	// Fallback indicates the remote path is given up and the local
	// computation should produce the result.
	Fallback
	// Fail indicates the task itself is unusable and no result is possible.
	Fail
)

// String returns a human-readable representation of the retry decision.
func (d RetryDecision) String() string {
	switch d {
	case Retry:
		return "retry"
	case Fallback:
		return "fallback"
	case Fail:
		return "fail"
	default:
		return "unknown"
	}
}

// Decide maps an error kind and attempt number (1-indexed) to the next step.
//   - invalid: fail immediately
//   - unavailable: fall back immediately
//   - transient: retry until maxAttempts attempts were made, then fall back
func Decide(kind models.ErrorKind, attempt, maxAttempts int) RetryDecision {
	switch kind {
	case models.ErrorKindInvalid:
		return Fail
	case models.ErrorKindUnavailable:
		return Fallback
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if attempt >= maxAttempts {
		return Fallback
	}
	return Retry
}
