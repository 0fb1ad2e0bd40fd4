package leads

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/beautylab-site/internal/relay"
	"github.com/wolfman30/beautylab-site/pkg/logging"
)

func validFields() Fields {
	return Fields{
		Name:    "Олена",
		Phone:   "+380501112233",
		Email:   "olena@example.com",
		Service: "brows",
		Message: "Хочу записатись",
	}
}

func quietLogger() *logging.Logger {
	return logging.NewWithWriter("error", io.Discard)
}

func relayReturning(ack *relay.Ack, err error) relay.Relay {
	return relay.Func(func(context.Context, relay.Submission) (*relay.Ack, error) {
		return ack, err
	})
}

func TestFieldsValidate(t *testing.T) {
	tests := []struct {
		name   string
		fields Fields
		want   []string
	}{
		{name: "valid", fields: validFields()},
		{name: "optional fields empty", fields: Fields{Name: "a", Phone: "1", Service: "botox"}},
		{name: "all required empty", fields: Fields{}, want: []string{FieldName, FieldPhone, FieldService}},
		{name: "whitespace only", fields: Fields{Name: "  ", Phone: "\t", Service: "lips"}, want: []string{FieldName, FieldPhone}},
		{name: "bad email", fields: Fields{Name: "a", Phone: "1", Service: "meso", Email: "not-an-email"}, want: []string{FieldEmail}},
		{name: "display name email", fields: Fields{Name: "a", Phone: "1", Service: "meso", Email: "Olena <o@example.com>"}, want: []string{FieldEmail}},
		{name: "unknown service", fields: Fields{Name: "a", Phone: "1", Service: "haircut"}, want: []string{FieldService}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fields.Validate()
			if len(tt.want) == 0 {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidFields)
			var invalid *ValidationError
			require.ErrorAs(t, err, &invalid)
			var got []string
			for name := range invalid.Fields {
				got = append(got, name)
			}
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestServiceCodes(t *testing.T) {
	codes := ServiceCodes()
	require.Len(t, codes, 7)
	for _, code := range codes {
		assert.True(t, code.Valid(), code)
	}
	codes[0] = "mutated"
	assert.Equal(t, ServiceBrows, ServiceCodes()[0])
	assert.False(t, ServiceCode("").Valid())
}

func TestControllerInvalidFieldsNeverReachRelay(t *testing.T) {
	called := false
	c := NewController(relay.Func(func(context.Context, relay.Submission) (*relay.Ack, error) {
		called = true
		return &relay.Ack{Success: true}, nil
	}), WithControllerLogger(quietLogger()))

	res, err := c.Submit(context.Background(), Fields{Service: "brows"})
	require.ErrorIs(t, err, ErrInvalidFields)
	assert.False(t, called)
	assert.Equal(t, StatusIdle, res.State.Status)
	assert.Equal(t, Idle(), c.State())
}

func TestControllerSuccessClearsFields(t *testing.T) {
	var got relay.Submission
	c := NewController(relay.Func(func(_ context.Context, sub relay.Submission) (*relay.Ack, error) {
		got = sub
		return &relay.Ack{Success: true, Message: "Email sent successfully!"}, nil
	}),
		WithControllerLogger(quietLogger()),
		WithServiceLabels(func(code string) (string, bool) { return "Перманент брів", code == "brows" }),
	)

	res, err := c.Submit(context.Background(), validFields())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Equal(t, StatusSucceeded, c.State().Status)
	assert.Empty(t, c.State().Message)
	assert.True(t, c.State().Fields.IsZero(), "fields must be cleared after success")

	assert.Equal(t, "Олена", got.Name)
	assert.Equal(t, "brows", got.Service)
	assert.Equal(t, "Перманент брів", got.ServiceLabel)
}

func TestControllerRejectedWithMessage(t *testing.T) {
	c := NewController(relayReturning(&relay.Ack{}, &relay.RejectedError{StatusCode: 400, Message: "X"}), WithControllerLogger(quietLogger()))

	res, err := c.Submit(context.Background(), validFields())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.Equal(t, StatusFailed, c.State().Status)
	assert.Equal(t, "X", c.State().Message)
	assert.Equal(t, validFields(), c.State().Fields, "fields are kept for another attempt")
}

func TestControllerRejectedWithoutMessage(t *testing.T) {
	c := NewController(relayReturning(&relay.Ack{}, &relay.RejectedError{StatusCode: 200}), WithControllerLogger(quietLogger()))

	_, err := c.Submit(context.Background(), validFields())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, c.State().Status)
	assert.Equal(t, MessageGeneric, c.State().Message)
}

func TestControllerUnsuccessfulAckWithoutError(t *testing.T) {
	c := NewController(relayReturning(&relay.Ack{Success: false}, nil), WithControllerLogger(quietLogger()))

	res, err := c.Submit(context.Background(), validFields())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.Equal(t, MessageGeneric, c.State().Message)
}

func TestControllerTransportFailure(t *testing.T) {
	for name, err := range map[string]error{
		"transport": &relay.TransportError{Op: "post", Err: errors.New("connection refused")},
		"unknown":   errors.New("boom"),
	} {
		t.Run(name, func(t *testing.T) {
			c := NewController(relayReturning(nil, err), WithControllerLogger(quietLogger()))

			res, submitErr := c.Submit(context.Background(), validFields())
			require.NoError(t, submitErr)
			assert.Equal(t, OutcomeTransport, res.Outcome)
			assert.Equal(t, StatusFailed, c.State().Status)
			assert.Equal(t, MessageNetwork, c.State().Message)
		})
	}
}

func TestControllerResetAfterTerminalStates(t *testing.T) {
	for name, r := range map[string]relay.Relay{
		"succeeded": relayReturning(&relay.Ack{Success: true}, nil),
		"failed":    relayReturning(nil, &relay.TransportError{Op: "post", Err: errors.New("down")}),
	} {
		t.Run(name, func(t *testing.T) {
			c := NewController(r, WithControllerLogger(quietLogger()))
			_, err := c.Submit(context.Background(), validFields())
			require.NoError(t, err)

			state := c.Reset()
			assert.Equal(t, Idle(), state)
			assert.Equal(t, Idle(), c.State())
		})
	}
}

func TestControllerSecondSubmitWhileSubmittingIsNoop(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	var calls int
	var mu sync.Mutex

	c := NewController(relay.Func(func(context.Context, relay.Submission) (*relay.Ack, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		close(entered)
		<-unblock
		return &relay.Ack{Success: true}, nil
	}), WithControllerLogger(quietLogger()))

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), validFields())
		done <- err
	}()
	<-entered

	assert.Equal(t, StatusSubmitting, c.State().Status)

	res, err := c.Submit(context.Background(), validFields())
	require.ErrorIs(t, err, ErrSubmissionInFlight)
	assert.Equal(t, StatusSubmitting, res.State.Status)

	// reset is ignored while in flight
	assert.Equal(t, StatusSubmitting, c.Reset().Status)

	close(unblock)
	require.NoError(t, <-done)
	assert.Equal(t, StatusSucceeded, c.State().Status)

	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
}

func TestControllerObserverSeesEveryTransition(t *testing.T) {
	var seen []Status
	c := NewController(relayReturning(&relay.Ack{Success: true}, nil),
		WithControllerLogger(quietLogger()),
		WithObserver(func(s State) { seen = append(seen, s.Status) }),
	)

	_, err := c.Submit(context.Background(), validFields())
	require.NoError(t, err)
	c.Reset()

	assert.Equal(t, []Status{StatusSubmitting, StatusSucceeded, StatusIdle}, seen)
}

func TestControllerFailedCanResubmit(t *testing.T) {
	attempt := 0
	c := NewController(relay.Func(func(context.Context, relay.Submission) (*relay.Ack, error) {
		attempt++
		if attempt == 1 {
			return nil, &relay.TransportError{Op: "post", Err: errors.New("timeout")}
		}
		return &relay.Ack{Success: true}, nil
	}), WithControllerLogger(quietLogger()))

	_, err := c.Submit(context.Background(), validFields())
	require.NoError(t, err)
	require.Equal(t, StatusFailed, c.State().Status)

	_, err = c.Submit(context.Background(), c.State().Fields)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, c.State().Status)
	assert.Empty(t, c.State().Message, "prior error is cleared")
}

func TestControllerRelaysTextVerbatim(t *testing.T) {
	var got relay.Submission
	c := NewController(relay.Func(func(_ context.Context, sub relay.Submission) (*relay.Ack, error) {
		got = sub
		return &relay.Ack{Success: true}, nil
	}), WithControllerLogger(quietLogger()))

	fields := validFields()
	fields.Name = "Ольга <О>"
	fields.Message = "a<b>c & 2<3"
	_, err := c.Submit(context.Background(), fields)
	require.NoError(t, err)

	assert.Equal(t, "Ольга <О>", got.Name)
	assert.Equal(t, "a<b>c & 2<3", got.Message)
}
