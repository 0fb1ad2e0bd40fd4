// Package relay delivers lead submissions to the form relay endpoint that
// forwards them to the studio.
package relay

import (
	"context"
	"fmt"
)

// Submission is the lead payload handed to a relay. It is never stored.
type Submission struct {
	Name    string
	Phone   string
	Email   string
	Service string
	// ServiceLabel is the human readable choice, used in e-mail bodies.
	ServiceLabel string
	Message      string
}

// Ack is the relay's acknowledgement.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Relay submits one lead. A nil error means the relay accepted it. Rejections
// are reported as *RejectedError and failed round trips as *TransportError.
type Relay interface {
	Submit(ctx context.Context, sub Submission) (*Ack, error)
}

// RejectedError means the relay answered but did not accept the submission.
type RejectedError struct {
	StatusCode int
	// Message is the relay supplied reason; empty when none was given.
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("relay: submission rejected (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("relay: submission rejected (status %d): %s", e.StatusCode, e.Message)
}

// TransportError means no usable acknowledgement was obtained.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("relay: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Func adapts a function to the Relay interface.
type Func func(ctx context.Context, sub Submission) (*Ack, error)

// Submit calls f.
func (f Func) Submit(ctx context.Context, sub Submission) (*Ack, error) {
	return f(ctx, sub)
}
