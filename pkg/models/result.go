package models

import "time"

// ResultStatus discriminates the variants of ExecutionResult.
type ResultStatus string

const (
	// StatusSuccess means the remote computation produced the payload.
	StatusSuccess ResultStatus = "success"
	// StatusDegraded means the local fallback produced the payload.
	StatusDegraded ResultStatus = "degraded"
	// StatusFailure means no usable payload was produced.
	StatusFailure ResultStatus = "failure"
)

// ErrorKind classifies a failure for retry and propagation decisions.
type ErrorKind string

const (
	// ErrorKindNone is the zero value for results that did not fail.
	ErrorKindNone ErrorKind = ""
	// ErrorKindTransient covers timeouts, rate limits and transport errors.
	ErrorKindTransient ErrorKind = "transient"
	// ErrorKindInvalid covers malformed or incomplete tasks.
	ErrorKindInvalid ErrorKind = "invalid"
	// ErrorKindUnavailable covers a remote backend that cannot be used at all.
	ErrorKindUnavailable ErrorKind = "unavailable"
	// ErrorKindUnroutable is never produced at runtime; routing always has a
	// default target.
	ErrorKindUnroutable ErrorKind = "unroutable"
)

// Degradation reasons.
const (
	ReasonRemoteUnavailable = "remote_unavailable"
	ReasonBudgetExhausted   = "budget_exhausted"
	ReasonAtCapacity        = "at_capacity"
)

// ExecutionResult is the outcome of one Execution Wrapper invocation.
// Exactly one of the variants is populated, selected by Status.
type ExecutionResult struct {
	Status ResultStatus `json:"status"`

	// Payload is set for success and degraded results.
	Payload Payload `json:"payload,omitempty"`
	// Reason is set for degraded results.
	Reason string `json:"reason,omitempty"`
	// ErrorKind and Message are set for failures.
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Message   string    `json:"message,omitempty"`

	WorkerID string        `json:"worker_id"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
	// Trace lists the state machine transitions in order.
	Trace []string `json:"trace,omitempty"`
}

// Success builds a success result.
func Success(payload Payload) ExecutionResult {
	return ExecutionResult{Status: StatusSuccess, Payload: payload}
}

// Degraded builds a degraded result.
func Degraded(payload Payload, reason string) ExecutionResult {
	return ExecutionResult{Status: StatusDegraded, Payload: payload, Reason: reason}
}

// Failure builds a failure result.
func Failure(kind ErrorKind, message string) ExecutionResult {
	return ExecutionResult{Status: StatusFailure, ErrorKind: kind, Message: message}
}

// Usable reports whether the result carries a payload callers may act on.
func (r ExecutionResult) Usable() bool {
	return r.Status == StatusSuccess || r.Status == StatusDegraded
}
