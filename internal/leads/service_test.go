package leads

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/beautylab-site/internal/formstate"
	"github.com/wolfman30/beautylab-site/internal/journal"
	"github.com/wolfman30/beautylab-site/internal/observability/metrics"
	"github.com/wolfman30/beautylab-site/internal/relay"
)

type recordingJournal struct {
	entries []journal.Entry
	err     error
}

func (j *recordingJournal) Record(_ context.Context, e journal.Entry) error {
	j.entries = append(j.entries, e)
	return j.err
}

func newTestService(t *testing.T, r relay.Relay, store formstate.Store, j journal.Recorder) *Service {
	t.Helper()
	svc, err := NewService(ServiceConfig{
		Relay:    r,
		Provider: "web3forms",
		Store:    store,
		Journal:  j,
		Metrics:  metrics.NewLeadMetrics(prometheus.NewRegistry()),
		LockTTL:  time.Minute,
		Logger:   quietLogger(),
	})
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := NewService(ServiceConfig{Store: formstate.NewMemoryStore(0)})
	require.Error(t, err)
	_, err = NewService(ServiceConfig{Relay: relayReturning(nil, nil)})
	require.Error(t, err)
}

func TestServiceStateDefaultsToIdle(t *testing.T) {
	svc := newTestService(t, relayReturning(nil, nil), formstate.NewMemoryStore(0), nil)
	state, err := svc.State(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Equal(t, Idle(), state)
}

func TestServiceSubmitPersistsFailureAndJournals(t *testing.T) {
	store := formstate.NewMemoryStore(time.Hour)
	j := &recordingJournal{}
	svc := newTestService(t, relayReturning(&relay.Ack{}, &relay.RejectedError{StatusCode: 400, Message: "Invalid access key"}), store, j)
	ctx := context.Background()

	state, err := svc.Submit(ctx, "form-1", validFields())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, state.Status)

	loaded, err := svc.State(ctx, "form-1")
	require.NoError(t, err)
	assert.Equal(t, state, loaded)
	assert.Equal(t, validFields(), loaded.Fields)

	require.Len(t, j.entries, 1)
	assert.Equal(t, "brows", j.entries[0].Service)
	assert.Equal(t, string(OutcomeRejected), j.entries[0].Outcome)
	assert.Equal(t, "web3forms", j.entries[0].Provider)
}

func TestServiceSubmitSuccessThenReset(t *testing.T) {
	svc := newTestService(t, relayReturning(&relay.Ack{Success: true}, nil), formstate.NewMemoryStore(time.Hour), nil)
	ctx := context.Background()

	_, err := svc.Submit(ctx, "form-1", validFields())
	require.NoError(t, err)

	loaded, err := svc.State(ctx, "form-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, loaded.Status)
	assert.True(t, loaded.Fields.IsZero())

	state, err := svc.Reset(ctx, "form-1")
	require.NoError(t, err)
	assert.Equal(t, Idle(), state)

	loaded, err = svc.State(ctx, "form-1")
	require.NoError(t, err)
	assert.Equal(t, Idle(), loaded)
}

func TestServiceInvalidFieldsLeaveStateUntouched(t *testing.T) {
	store := formstate.NewMemoryStore(time.Hour)
	svc := newTestService(t, relayReturning(nil, &relay.TransportError{Op: "post", Err: errors.New("down")}), store, nil)
	ctx := context.Background()

	_, err := svc.Submit(ctx, "form-1", validFields())
	require.NoError(t, err)

	_, err = svc.Submit(ctx, "form-1", Fields{Name: "x"})
	require.ErrorIs(t, err, ErrInvalidFields)

	loaded, err := svc.State(ctx, "form-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, loaded.Status)
	assert.Equal(t, MessageNetwork, loaded.Message)
}

func TestServiceSubmitWhileLockedIsNoop(t *testing.T) {
	store := formstate.NewMemoryStore(time.Hour)
	entered := make(chan struct{})
	unblock := make(chan struct{})
	calls := 0
	svc := newTestService(t, relay.Func(func(context.Context, relay.Submission) (*relay.Ack, error) {
		calls++
		close(entered)
		<-unblock
		return &relay.Ack{Success: true}, nil
	}), store, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Submit(ctx, "form-1", validFields())
		done <- err
	}()
	<-entered

	state, err := svc.Submit(ctx, "form-1", validFields())
	require.ErrorIs(t, err, ErrSubmissionInFlight)
	assert.Equal(t, StatusSubmitting, state.Status, "in-flight state is visible to other requests")

	state, err = svc.Reset(ctx, "form-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitting, state.Status, "reset does nothing while submitting")

	close(unblock)
	require.NoError(t, <-done)
	assert.Equal(t, 1, calls)

	loaded, err := svc.State(ctx, "form-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, loaded.Status)
}

func TestServiceRecoversStaleSubmittingSnapshot(t *testing.T) {
	store := formstate.NewMemoryStore(time.Hour)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "form-1", &formstate.Snapshot{Status: string(StatusSubmitting)}))

	svc := newTestService(t, relayReturning(&relay.Ack{Success: true}, nil), store, nil)
	state, err := svc.Submit(ctx, "form-1", validFields())
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, state.Status)
}

func TestServiceJournalFailureDoesNotAffectOutcome(t *testing.T) {
	j := &recordingJournal{err: errors.New("db down")}
	svc := newTestService(t, relayReturning(&relay.Ack{Success: true}, nil), formstate.NewMemoryStore(0), j)

	state, err := svc.Submit(context.Background(), "form-1", validFields())
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, state.Status)
}

func TestServiceWithRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := formstate.NewRedisStore(client, time.Hour)
	svc := newTestService(t, relayReturning(&relay.Ack{}, &relay.RejectedError{StatusCode: 200}), store, nil)
	ctx := context.Background()

	_, err := svc.Submit(ctx, "form-1", validFields())
	require.NoError(t, err)

	loaded, err := svc.State(ctx, "form-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, loaded.Status)
	assert.Equal(t, MessageGeneric, loaded.Message)
	assert.False(t, mr.Exists("leadform:lock:form-1"), "lock released after submit")
}

// countingStore counts Acquire calls that reach the shared store.
type countingStore struct {
	formstate.Store
	acquires atomic.Int32
}

func (c *countingStore) Acquire(ctx context.Context, id string, ttl time.Duration) (formstate.Lock, error) {
	c.acquires.Add(1)
	return c.Store.Acquire(ctx, id, ttl)
}

func TestServiceDuplicateSubmitStopsBeforeStore(t *testing.T) {
	store := &countingStore{Store: formstate.NewMemoryStore(time.Hour)}
	entered := make(chan struct{})
	unblock := make(chan struct{})
	svc := newTestService(t, relay.Func(func(context.Context, relay.Submission) (*relay.Ack, error) {
		close(entered)
		<-unblock
		return &relay.Ack{Success: true}, nil
	}), store, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Submit(ctx, "form-1", validFields())
		done <- err
	}()
	<-entered

	_, err := svc.Submit(ctx, "form-1", validFields())
	require.ErrorIs(t, err, ErrSubmissionInFlight)
	_, err = svc.Reset(ctx, "form-1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), store.acquires.Load(), "same-process duplicates never reach the store lock")

	close(unblock)
	require.NoError(t, <-done)

	svc.guards.mu.Lock()
	remaining := len(svc.guards.guards)
	svc.guards.mu.Unlock()
	assert.Zero(t, remaining, "guards are dropped once the instance is idle")

	_, err = svc.Submit(ctx, "form-1", validFields())
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.acquires.Load())
}

func TestServiceSlowRelayKeepsInstanceLocked(t *testing.T) {
	store := formstate.NewMemoryStore(time.Hour)

	var (
		mu                  sync.Mutex
		inFlight, maxFlight int
	)
	slow := relay.Func(func(context.Context, relay.Submission) (*relay.Ack, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxFlight {
			maxFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(300 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return &relay.Ack{Success: true}, nil
	})

	// two replicas sharing one store, each with a lock TTL shorter than the relay call
	newReplica := func() *Service {
		svc, err := NewService(ServiceConfig{
			Relay:   slow,
			Store:   store,
			LockTTL: 100 * time.Millisecond,
			Logger:  quietLogger(),
		})
		require.NoError(t, err)
		return svc
	}
	first, second := newReplica(), newReplica()
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := first.Submit(ctx, "form-1", validFields())
		done <- err
	}()

	time.Sleep(150 * time.Millisecond)
	state, err := second.Submit(ctx, "form-1", validFields())
	require.ErrorIs(t, err, ErrSubmissionInFlight)
	assert.Equal(t, StatusSubmitting, state.Status)

	require.NoError(t, <-done)
	mu.Lock()
	assert.Equal(t, 1, maxFlight, "at most one relay call per form instance")
	mu.Unlock()

	_, err = second.Submit(ctx, "form-1", validFields())
	require.NoError(t, err, "lock is released once the slow call finishes")
}
