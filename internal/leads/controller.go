package leads

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/wolfman30/beautylab-site/internal/relay"
	"github.com/wolfman30/beautylab-site/pkg/logging"
)

// Result describes one Submit call.
type Result struct {
	State   State
	Outcome Outcome
	Elapsed time.Duration
}

// Controller drives one form instance through idle, submitting, succeeded and
// failed. It is safe for concurrent use; only one Submit runs at a time.
type Controller struct {
	relay    relay.Relay
	labels   func(code string) (string, bool)
	observer func(State)
	logger   *logging.Logger

	guard *semaphore.Weighted
	mu    sync.Mutex
	state State
	now   func() time.Time
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithState restores a previously saved state.
func WithState(state State) ControllerOption {
	return func(c *Controller) {
		state.Status = ParseStatus(string(state.Status))
		c.state = state
	}
}

// WithServiceLabels supplies human readable labels for service codes.
func WithServiceLabels(labels func(code string) (string, bool)) ControllerOption {
	return func(c *Controller) { c.labels = labels }
}

// WithObserver registers a callback invoked after every state change.
func WithObserver(fn func(State)) ControllerOption {
	return func(c *Controller) { c.observer = fn }
}

// WithControllerLogger sets the logger.
func WithControllerLogger(logger *logging.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewController creates an idle controller that submits through r.
func NewController(r relay.Relay, opts ...ControllerOption) *Controller {
	if r == nil {
		panic("leads: relay required")
	}
	c := &Controller{
		relay:  r,
		logger: logging.Default(),
		guard:  semaphore.NewWeighted(1),
		state:  Idle(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Submit sends fields to the relay and waits for the outcome. Invalid fields
// return a *ValidationError and a concurrent call returns ErrSubmissionInFlight;
// neither changes the state. Relay failures are not errors: they end in
// StatusFailed with a message for the visitor.
func (c *Controller) Submit(ctx context.Context, fields Fields) (Result, error) {
	if !c.guard.TryAcquire(1) {
		return Result{State: c.State(), Outcome: OutcomeInFlight}, ErrSubmissionInFlight
	}
	defer c.guard.Release(1)

	fields = fields.Normalize()
	if err := fields.Validate(); err != nil {
		return Result{State: c.State(), Outcome: OutcomeInvalid}, err
	}

	c.transition(State{Status: StatusSubmitting, Fields: fields})

	sub := relay.Submission{
		Name:    fields.Name,
		Phone:   fields.Phone,
		Email:   fields.Email,
		Service: fields.Service,
		Message: fields.Message,
	}
	if c.labels != nil {
		if label, ok := c.labels(fields.Service); ok {
			sub.ServiceLabel = label
		}
	}

	start := c.now()
	ack, err := c.relay.Submit(ctx, sub)
	elapsed := c.now().Sub(start)

	next, outcome := settle(fields, ack, err)
	c.transition(next)

	c.logger.Info("lead submission finished",
		"outcome", string(outcome),
		"service", fields.Service,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	if err != nil {
		c.logger.Warn("lead relay failed", "outcome", string(outcome), "error", err)
	}
	return Result{State: next, Outcome: outcome, Elapsed: elapsed}, nil
}

// settle maps a relay result onto exactly one terminal state.
func settle(fields Fields, ack *relay.Ack, err error) (State, Outcome) {
	var rejected *relay.RejectedError
	switch {
	case err == nil && ack != nil && ack.Success:
		return State{Status: StatusSucceeded}, OutcomeSucceeded
	case errors.As(err, &rejected):
		return failed(fields, rejected.Message), OutcomeRejected
	case err == nil && ack != nil:
		return failed(fields, ack.Message), OutcomeRejected
	default:
		return State{Status: StatusFailed, Message: MessageNetwork, Fields: fields}, OutcomeTransport
	}
}

func failed(fields Fields, message string) State {
	if message == "" {
		message = MessageGeneric
	}
	return State{Status: StatusFailed, Message: message, Fields: fields}
}

// Reset returns the form to idle with empty fields. It does nothing while a
// submission is in flight.
func (c *Controller) Reset() State {
	if !c.guard.TryAcquire(1) {
		return c.State()
	}
	defer c.guard.Release(1)

	c.transition(Idle())
	return Idle()
}

func (c *Controller) transition(next State) {
	c.mu.Lock()
	c.state = next
	c.mu.Unlock()
	if c.observer != nil {
		c.observer(next)
	}
}
