package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"github.com/lbrulet/PetTrainerNotificationBot/internal/domain"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/metrics"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/store"
)

const defaultSendTimeout = 30 * time.Second

// Scheduler periodically sweeps all training records and dispatches due notifications.
type Scheduler struct {
	repo        store.Repo
	log         *zap.Logger
	notifier    Notifier
	metrics     *metrics.Metrics
	now         func() time.Time
	sendTimeout time.Duration

	mu     sync.Mutex
	policy domain.Policy
	period time.Duration
	cancel context.CancelFunc
	done   chan struct{}

	// one sweep at a time, whoever triggers it
	sweepMu sync.Mutex
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithMetrics records sweeps and deliveries into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithSendTimeout bounds every single notification send.
func WithSendTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.sendTimeout = d }
}

// New creates a stopped Scheduler.
func New(repo store.Repo, log *zap.Logger, notifier Notifier, policy domain.Policy, opts ...Option) *Scheduler {
	s := &Scheduler{
		repo:        repo,
		log:         log,
		notifier:    notifier,
		now:         time.Now,
		sendTimeout: defaultSendTimeout,
		policy:      policy,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	return s
}

// Policy returns the policy the scheduler runs under.
func (s *Scheduler) Policy() domain.Policy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy
}

// TickPeriod is the interval of the running loop, zero when stopped.
func (s *Scheduler) TickPeriod() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.period
}

// Running reports whether the tick loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Start sweeps once immediately, then every TickPeriod of the current policy,
// until Stop is called or ctx is canceled. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.log.Info("scheduler already running")
		return
	}

	period := s.policy.TickPeriod()
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done, s.period = cancel, done, period

	s.log.Info("scheduler starting",
		zap.Duration("period", period),
		zap.Bool("accelerated", s.policy.Accelerated),
	)
	go s.run(loopCtx, period, done)
}

// Stop cancels future ticks and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done, s.period = nil, nil, 0
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info("scheduler stopped")
}

// Restart stops the loop, switches to policy and starts again with its tick period.
func (s *Scheduler) Restart(ctx context.Context, policy domain.Policy) {
	s.Stop()
	s.mu.Lock()
	s.policy = policy
	s.mu.Unlock()
	s.Start(ctx)
}

func (s *Scheduler) run(ctx context.Context, period time.Duration, done chan struct{}) {
	defer close(done)

	// Stopping must not abort a sweep halfway through its writes.
	sweepCtx := context.WithoutCancel(ctx)

	s.Sweep(sweepCtx)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			s.Sweep(sweepCtx)
		}
	}
}

// Report summarizes one sweep.
type Report struct {
	ID      string
	At      time.Time
	Records int
	// Notifications lists what was decided, in decision order.
	Notifications []Notification
	Sent          int
	Failed        int
	// Errors counts records skipped because of storage failures.
	Errors int
}

// Sweep evaluates every record once and returns after all sends have finished.
func (s *Scheduler) Sweep(ctx context.Context) Report {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	started := time.Now()
	rep := Report{ID: uuid.NewString(), At: s.now().UTC()}
	log := s.log.With(zap.String("sweep_id", rep.ID))
	policy := s.Policy()

	defer func() {
		s.metrics.Sweeps.Inc()
		s.metrics.SweepDuration.Observe(time.Since(started).Seconds())
	}()

	recs, err := s.repo.ListAll(ctx)
	if err != nil {
		log.Error("list records failed", zap.Error(err))
		s.metrics.SweepErrors.Inc()
		rep.Errors++
		return rep
	}
	rep.Records = len(recs)

	var (
		wg    conc.WaitGroup
		resMu sync.Mutex
	)
	emit := func(n Notification) {
		rep.Notifications = append(rep.Notifications, n)
		wg.Go(func() {
			err := s.deliver(ctx, log, n)
			resMu.Lock()
			defer resMu.Unlock()
			if err != nil {
				rep.Failed++
				return
			}
			rep.Sent++
		})
	}

	active := 0
	for i := range recs {
		rec := &recs[i]
		if err := s.evaluate(ctx, policy, rec, rep.At, emit); err != nil {
			rep.Errors++
			s.metrics.SweepErrors.Inc()
			log.Error("evaluate record failed",
				zap.Int64("user_id", rec.UserID),
				zap.String("kind", string(rec.Kind)),
				zap.Error(err),
			)
		}
		if rec.IsActive {
			active++
		}
	}
	wg.Wait()
	s.metrics.ActiveSessions.Set(float64(active))

	if len(rep.Notifications) > 0 {
		log.Info("sweep finished",
			zap.Int("records", rep.Records),
			zap.Int("sent", rep.Sent),
			zap.Int("failed", rep.Failed),
		)
	}
	return rep
}

// evaluate runs the per-record state machine: expiry warning, then expiry
// pause, then completion. A pause ends evaluation for the record.
func (s *Scheduler) evaluate(ctx context.Context, p domain.Policy, rec *domain.Record, now time.Time, emit func(Notification)) error {
	if rec.HasRental() && rec.RentalExpiryNotifiedAt == nil {
		left := rec.RentalEnd.Sub(now)
		if left > 0 && left <= p.WarningLead() {
			ok, err := s.transition(ctx, rec, func(r *domain.Record) bool {
				if !r.HasRental() || r.RentalExpiryNotifiedAt != nil || !r.RentalEnd.Equal(*rec.RentalEnd) {
					return false
				}
				r.RentalExpiryNotifiedAt = &now
				return true
			})
			if err != nil {
				return err
			}
			if ok {
				emit(Notification{UserID: rec.UserID, Kind: rec.Kind, Type: RentalExpiryWarning, TimeLeft: left})
			}
		}
	}

	if !rec.IsActive {
		return nil
	}

	if !rec.RentalActive(now) {
		ok, err := s.transition(ctx, rec, func(r *domain.Record) bool {
			if !r.IsActive || r.RentalActive(now) {
				return false
			}
			r.IsActive = false
			return true
		})
		if err != nil {
			return err
		}
		if ok {
			s.log.Info("session paused, rental expired",
				zap.Int64("user_id", rec.UserID),
				zap.String("kind", string(rec.Kind)),
			)
			emit(Notification{UserID: rec.UserID, Kind: rec.Kind, Type: RentalExpiredPause})
		}
		return nil
	}

	if rec.Finished(now) && rec.LastNotifiedAt == nil {
		ok, err := s.transition(ctx, rec, func(r *domain.Record) bool {
			if !r.IsActive || !r.Finished(now) || r.LastNotifiedAt != nil {
				return false
			}
			r.LastNotifiedAt = &now
			return true
		})
		if err != nil {
			return err
		}
		if ok {
			emit(Notification{
				UserID:  rec.UserID,
				Kind:    rec.Kind,
				Type:    SessionComplete,
				Actions: completionActions(rec.Kind),
			})
		}
	}
	return nil
}

var errUnchanged = errors.New("record changed since read")

// transition applies fn to the stored record if its guard still holds and
// refreshes rec with the stored result. It reports whether fn applied.
func (s *Scheduler) transition(ctx context.Context, rec *domain.Record, fn func(*domain.Record) bool) (bool, error) {
	updated, err := s.repo.Update(ctx, rec.UserID, rec.Kind, func(r *domain.Record) error {
		if !fn(r) {
			return errUnchanged
		}
		return nil
	})
	switch {
	case errors.Is(err, errUnchanged):
		return false, nil
	case err != nil:
		return false, err
	}
	*rec = *updated
	return true, nil
}

// deliver sends one notification with its own timeout and panic containment.
// The marker is already written, so a failure here drops the notification.
func (s *Scheduler) deliver(ctx context.Context, log *zap.Logger, n Notification) error {
	ctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	var (
		pc  panics.Catcher
		err error
	)
	pc.Try(func() { err = s.notifier.Notify(ctx, n) })
	if r := pc.Recovered(); r != nil {
		err = r.AsError()
	}

	if err != nil {
		derr := &DeliveryError{Notification: n, Err: err}
		s.metrics.Notifications.WithLabelValues(string(n.Type), metrics.ResultFailed).Inc()
		log.Warn("notification not delivered", zap.Error(derr))
		return derr
	}
	s.metrics.Notifications.WithLabelValues(string(n.Type), metrics.ResultSent).Inc()
	log.Info("notification sent",
		zap.Int64("user_id", n.UserID),
		zap.String("kind", string(n.Kind)),
		zap.String("type", string(n.Type)),
	)
	return nil
}
