package model

import (
	"errors"
	"fmt"
)

// ErrEmptyQuery marks a query that trimmed to nothing. The pipeline rejects
// such queries before any stage runs.
var ErrEmptyQuery = errors.New("query must not be empty")

// PipelineError wraps a failure of one research stage ("plan", "search",
// "write"). The stream converts it into a readable terminal chunk instead of
// letting it escape the render loop.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("research %s failed: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// DeliveryError is an email send failure: missing credentials, transport
// error or provider rejection. It is surfaced as a failure status and never
// retried.
type DeliveryError struct {
	Reason string
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("email delivery failed: %s: %v", e.Reason, e.Err)
	}
	return "email delivery failed: " + e.Reason
}

func (e *DeliveryError) Unwrap() error { return e.Err }
