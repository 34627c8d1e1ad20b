// Package agent defines the worker contract and the execution wrapper that
// retries remote work and falls back to local computation.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// Response is the output of one remote call.
type Response struct {
	Payload      models.Payload
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Worker performs one category of task.
type Worker interface {
	// Descriptor returns the worker's static metadata.
	Descriptor() models.WorkerDescriptor
	// ProcessTask performs the remote, metered computation. A call that was
	// billed but produced an unusable reply returns its Response (units and
	// model, no payload) together with the error so the units are recorded.
	ProcessTask(ctx context.Context, task models.TaskDescriptor) (*Response, error)
	// FallbackCompute produces a deterministic local answer. It must not
	// call the network.
	FallbackCompute(task models.TaskDescriptor) models.Payload
}

// Validator is implemented by workers that check tasks before the first attempt.
type Validator interface {
	Validate(task models.TaskDescriptor) error
}

// WorkerError is an error tagged with its kind.
type WorkerError struct {
	Kind models.ErrorKind
	Err  error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable failure.
func Transient(err error) error {
	return &WorkerError{Kind: models.ErrorKindTransient, Err: err}
}

// Invalid wraps err as a non-retryable task error.
func Invalid(err error) error {
	return &WorkerError{Kind: models.ErrorKindInvalid, Err: err}
}

// Unavailable wraps err as a backend that cannot serve any request.
func Unavailable(err error) error {
	return &WorkerError{Kind: models.ErrorKindUnavailable, Err: err}
}

// Invalidf formats an Invalid error.
func Invalidf(format string, args ...any) error {
	return Invalid(fmt.Errorf(format, args...))
}

// Classify returns the kind of err. Untagged errors (deadlines, transport
// failures) are transient so that they are retried and then absorbed by the
// fallback.
func Classify(err error) models.ErrorKind {
	if err == nil {
		return models.ErrorKindNone
	}
	var we *WorkerError
	if errors.As(err, &we) {
		return we.Kind
	}
	return models.ErrorKindTransient
}

// RequireFields returns an Invalid error naming the first missing payload key.
func RequireFields(task models.TaskDescriptor, fields ...string) error {
	for _, f := range fields {
		v, ok := task.Payload[f]
		if !ok || v == nil {
			return Invalidf("missing required field %q", f)
		}
		if s, isString := v.(string); isString && s == "" {
			return Invalidf("required field %q is empty", f)
		}
	}
	return nil
}
