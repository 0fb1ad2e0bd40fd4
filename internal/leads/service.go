package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/beautylab-site/internal/formstate"
	"github.com/wolfman30/beautylab-site/internal/journal"
	"github.com/wolfman30/beautylab-site/internal/observability/metrics"
	"github.com/wolfman30/beautylab-site/internal/relay"
	"github.com/wolfman30/beautylab-site/pkg/logging"
)

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Relay    relay.Relay
	Provider string
	Store    formstate.Store
	Journal  journal.Recorder
	Metrics  *metrics.LeadMetrics
	Labels   func(code string) (string, bool)
	LockTTL  time.Duration
	Logger   *logging.Logger
}

// Service runs the controller for form instances whose state lives in a
// formstate.Store, so the page and the form POST see the same instance.
type Service struct {
	relay    relay.Relay
	provider string
	store    formstate.Store
	journal  journal.Recorder
	metrics  *metrics.LeadMetrics
	labels   func(code string) (string, bool)
	lockTTL  time.Duration
	logger   *logging.Logger
	now      func() time.Time
	guards   *instanceGuards
}

// NewService validates cfg and fills in defaults.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Relay == nil {
		return nil, errors.New("leads: relay required")
	}
	if cfg.Store == nil {
		return nil, errors.New("leads: form state store required")
	}
	if cfg.Journal == nil {
		cfg.Journal = journal.Noop{}
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Service{
		relay:    cfg.Relay,
		provider: cfg.Provider,
		store:    cfg.Store,
		journal:  cfg.Journal,
		metrics:  cfg.Metrics,
		labels:   cfg.Labels,
		lockTTL:  cfg.LockTTL,
		logger:   cfg.Logger.Component("leads"),
		now:      time.Now,
		guards:   newInstanceGuards(),
	}, nil
}

// State returns the saved state of a form instance, idle when none is saved.
func (s *Service) State(ctx context.Context, formID string) (State, error) {
	snap, err := s.store.Load(ctx, formID)
	if errors.Is(err, formstate.ErrNotFound) {
		return Idle(), nil
	}
	if err != nil {
		return Idle(), fmt.Errorf("leads: load state: %w", err)
	}
	return fromSnapshot(snap), nil
}

// Submit runs one submission for the form instance. See Controller.Submit for
// the error contract.
func (s *Service) Submit(ctx context.Context, formID string, fields Fields) (State, error) {
	leave, ok := s.guards.tryEnter(formID)
	if !ok {
		return s.inFlight(ctx, formID)
	}
	defer leave()

	lock, err := s.store.Acquire(ctx, formID, s.lockTTL)
	if errors.Is(err, formstate.ErrLocked) {
		return s.inFlight(ctx, formID)
	}
	if err != nil {
		return Idle(), fmt.Errorf("leads: acquire form: %w", err)
	}
	stopRefresh := s.keepLocked(lock)
	defer s.release(lock)
	defer stopRefresh()

	current, err := s.State(ctx, formID)
	if err != nil {
		s.logger.Warn("form state unreadable, starting idle", "error", err)
		current = Idle()
	}
	if current.Status == StatusSubmitting {
		// lock expired under a crashed submission; the instance is ours now
		current = State{Status: StatusIdle, Fields: current.Fields}
	}

	ctrl := NewController(s.relay,
		WithState(current),
		WithServiceLabels(s.labels),
		WithControllerLogger(s.logger),
		WithObserver(func(next State) { s.save(ctx, formID, next) }),
	)

	res, err := ctrl.Submit(ctx, fields)
	if err != nil {
		if errors.Is(err, ErrInvalidFields) {
			s.metrics.ObserveSubmission(string(OutcomeInvalid), "")
		}
		return res.State, err
	}

	service := fields.Normalize().Service
	s.metrics.ObserveSubmission(string(res.Outcome), service)
	s.metrics.ObserveRelayLatency(string(res.Outcome), res.Elapsed.Seconds())
	if err := s.journal.Record(ctx, journal.Entry{
		Service:  service,
		Outcome:  string(res.Outcome),
		Provider: s.provider,
		Duration: res.Elapsed,
	}); err != nil {
		s.logger.Error("failed to journal submission outcome", "error", err)
	}
	return res.State, nil
}

// Reset returns the instance to idle. It is a no-op while a submission runs.
func (s *Service) Reset(ctx context.Context, formID string) (State, error) {
	leave, ok := s.guards.tryEnter(formID)
	if !ok {
		return s.State(ctx, formID)
	}
	defer leave()

	lock, err := s.store.Acquire(ctx, formID, s.lockTTL)
	if errors.Is(err, formstate.ErrLocked) {
		return s.State(ctx, formID)
	}
	if err != nil {
		return Idle(), fmt.Errorf("leads: acquire form: %w", err)
	}
	defer s.release(lock)

	if err := s.store.Delete(ctx, formID); err != nil {
		return Idle(), fmt.Errorf("leads: reset form: %w", err)
	}
	return Idle(), nil
}

func (s *Service) inFlight(ctx context.Context, formID string) (State, error) {
	s.metrics.ObserveSubmission(string(OutcomeInFlight), "")
	state, err := s.State(ctx, formID)
	if err != nil {
		state = State{Status: StatusSubmitting}
	}
	return state, ErrSubmissionInFlight
}

// keepLocked refreshes lock every third of the lock TTL until the returned
// stop func is called, so a slow relay call never outlives the lock.
func (s *Service) keepLocked(lock formstate.Lock) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	interval := s.lockTTL / 3
	if interval <= 0 {
		interval = time.Millisecond
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refreshCtx, cancelRefresh := context.WithTimeout(ctx, interval)
				err := lock.Refresh(refreshCtx, s.lockTTL)
				cancelRefresh()
				if err == nil || ctx.Err() != nil {
					continue
				}
				s.logger.Error("failed to extend form lock", "error", err)
				if errors.Is(err, formstate.ErrLockLost) {
					return
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (s *Service) save(ctx context.Context, formID string, state State) {
	snap := &formstate.Snapshot{
		Status:    string(state.Status),
		Message:   state.Message,
		Fields:    state.Fields.Values(),
		UpdatedAt: s.now().UTC(),
	}
	if err := s.store.Save(ctx, formID, snap); err != nil {
		s.logger.Error("failed to save form state", "status", string(state.Status), "error", err)
	}
}

func (s *Service) release(lock formstate.Lock) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := lock.Release(ctx); err != nil {
		s.logger.Error("failed to release form lock", "error", err)
	}
}

func fromSnapshot(snap *formstate.Snapshot) State {
	state := State{
		Status:  ParseStatus(snap.Status),
		Message: snap.Message,
		Fields:  FieldsFromValues(snap.Fields),
	}
	if state.Status != StatusFailed {
		state.Message = ""
	}
	return state
}
