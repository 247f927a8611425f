package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lbrulet/PetTrainerNotificationBot/internal/domain"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/metrics"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/store"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/training"
)

const user int64 = 42

var t0 = time.Date(2025, time.May, 5, 12, 0, 0, 0, time.UTC)

// fakeNotifier records deliveries and fails for users listed in failFor.
type fakeNotifier struct {
	mu       sync.Mutex
	sent     []Notification
	failFor  map[int64]error
	panicFor map[int64]bool
}

func (f *fakeNotifier) Notify(_ context.Context, n Notification) error {
	if f.panicFor[n.UserID] {
		panic("transport exploded")
	}
	if err := f.failFor[n.UserID]; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeNotifier) Sent() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notification(nil), f.sent...)
}

func (f *fakeNotifier) count(typ NotificationType) int {
	n := 0
	for _, s := range f.Sent() {
		if s.Type == typ {
			n++
		}
	}
	return n
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	repo     *store.SQLiteRepo
	svc      *training.Service
	sched    *Scheduler
	notifier *fakeNotifier
	clock    *clock
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "training.db"), user)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	f := &fixture{
		repo:     repo,
		svc:      training.NewService(repo, zap.NewNop(), domain.Policy{}),
		notifier: &fakeNotifier{failFor: map[int64]error{}, panicFor: map[int64]bool{}},
		clock:    &clock{now: t0},
		metrics:  metrics.New(nil),
	}
	f.sched = New(repo, zap.NewNop(), f.notifier, domain.Policy{},
		WithClock(f.clock.Now), WithMetrics(f.metrics))
	return f
}

func (f *fixture) sweepAt(at time.Time) Report {
	f.clock.Set(at)
	return f.sched.Sweep(context.Background())
}

func (f *fixture) rentAndStart(t *testing.T, userID int64, kind domain.Kind, at time.Time) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.svc.InitUser(ctx, userID))
	_, err := f.svc.SetRental(ctx, userID, kind, at)
	require.NoError(t, err)
	_, err = f.svc.StartSession(ctx, userID, kind, at)
	require.NoError(t, err)
}

func TestSweep_SessionCompleteOnce(t *testing.T) {
	f := newFixture(t)
	f.rentAndStart(t, user, domain.KindC, t0)

	rep := f.sweepAt(t0.Add(49 * time.Hour))
	assert.Empty(t, rep.Notifications)

	rep = f.sweepAt(t0.Add(50 * time.Hour))
	require.Len(t, rep.Notifications, 1)
	n := rep.Notifications[0]
	assert.Equal(t, SessionComplete, n.Type)
	assert.Equal(t, user, n.UserID)
	assert.Equal(t, domain.KindC, n.Kind)
	assert.Equal(t, []domain.Callback{
		{Kind: domain.KindC, Action: domain.ActionReset},
		{Kind: domain.KindC, Action: domain.ActionStop},
	}, n.Actions)
	assert.Equal(t, 1, rep.Sent)

	rep = f.sweepAt(t0.Add(50*time.Hour + 2*time.Minute))
	assert.Empty(t, rep.Notifications)
	assert.Equal(t, 1, f.notifier.count(SessionComplete))

	rec, err := f.repo.Get(context.Background(), user, domain.KindC)
	require.NoError(t, err)
	require.NotNil(t, rec.LastNotifiedAt)
	assert.True(t, rec.IsActive, "completion does not deactivate")
}

func TestSweep_RestartRearmsCompletion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.rentAndStart(t, user, domain.KindC, t0)

	f.sweepAt(t0.Add(50 * time.Hour))
	require.Equal(t, 1, f.notifier.count(SessionComplete))

	restart := t0.Add(51 * time.Hour)
	_, err := f.svc.StartSession(ctx, user, domain.KindC, restart)
	require.NoError(t, err)

	f.sweepAt(restart.Add(49 * time.Hour))
	assert.Equal(t, 1, f.notifier.count(SessionComplete))
	f.sweepAt(restart.Add(50 * time.Hour))
	f.sweepAt(restart.Add(51 * time.Hour))
	assert.Equal(t, 2, f.notifier.count(SessionComplete))
}

func TestSweep_ExpiryWarningOnceUntilRenewed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.svc.InitUser(ctx, user))
	_, err := f.svc.SetRental(ctx, user, domain.KindB, t0)
	require.NoError(t, err)
	rentalEnd := t0.Add(15 * 24 * time.Hour)

	f.sweepAt(rentalEnd.Add(-25 * time.Hour))
	assert.Zero(t, f.notifier.count(RentalExpiryWarning), "outside the warning lead")

	rep := f.sweepAt(rentalEnd.Add(-24 * time.Hour))
	require.Len(t, rep.Notifications, 1)
	assert.Equal(t, RentalExpiryWarning, rep.Notifications[0].Type)
	assert.Equal(t, 24*time.Hour, rep.Notifications[0].TimeLeft)

	for _, before := range []time.Duration{20 * time.Hour, 5 * time.Hour, time.Minute} {
		f.sweepAt(rentalEnd.Add(-before))
	}
	f.sweepAt(rentalEnd.Add(time.Hour))
	assert.Equal(t, 1, f.notifier.count(RentalExpiryWarning))

	renewed := rentalEnd.Add(-time.Hour)
	_, err = f.svc.SetRental(ctx, user, domain.KindB, renewed)
	require.NoError(t, err)
	newEnd := renewed.Add(15 * 24 * time.Hour)
	f.sweepAt(newEnd.Add(-2 * time.Hour))
	f.sweepAt(newEnd.Add(-time.Hour))
	assert.Equal(t, 2, f.notifier.count(RentalExpiryWarning))
}

func TestSweep_ExpiredRentalPausesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.svc.InitUser(ctx, user))

	// rental ends in 10h, session (kind B) would take 75h
	_, err := f.repo.Update(ctx, user, domain.KindB, func(r *domain.Record) error {
		start, end := t0.Add(-15*24*time.Hour+10*time.Hour), t0.Add(10*time.Hour)
		r.RentalStart, r.RentalEnd = &start, &end
		return nil
	})
	require.NoError(t, err)
	res, err := f.svc.StartSession(ctx, user, domain.KindB, t0)
	require.NoError(t, err)
	require.NotNil(t, res.Interruption)

	rep := f.sweepAt(t0.Add(10 * time.Hour))
	require.Len(t, rep.Notifications, 1, "no warning once the rental has ended")
	assert.Equal(t, RentalExpiredPause, rep.Notifications[0].Type)

	rec, err := f.repo.Get(ctx, user, domain.KindB)
	require.NoError(t, err)
	assert.False(t, rec.IsActive)

	f.sweepAt(t0.Add(11 * time.Hour))
	f.sweepAt(t0.Add(80 * time.Hour))
	assert.Equal(t, 1, f.notifier.count(RentalExpiredPause))
	assert.Zero(t, f.notifier.count(SessionComplete))
}

func TestSweep_PauseShortCircuitsCompletion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.svc.SetPolicy(domain.Policy{Accelerated: true})
	f.rentAndStart(t, user, domain.KindA, t0)

	// session ended (3m) and rental ended (5m) before the first sweep
	rep := f.sweepAt(t0.Add(6 * time.Minute))
	require.Len(t, rep.Notifications, 1)
	assert.Equal(t, RentalExpiredPause, rep.Notifications[0].Type)

	rec, err := f.repo.Get(ctx, user, domain.KindA)
	require.NoError(t, err)
	assert.Nil(t, rec.LastNotifiedAt)
}

func TestSweep_WarningAndCompletionSameTick(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.svc.InitUser(ctx, user))
	_, err := f.repo.Update(ctx, user, domain.KindC, func(r *domain.Record) error {
		start, end := t0.Add(-14*24*time.Hour), t0.Add(24*time.Hour)
		r.RentalStart, r.RentalEnd = &start, &end
		sStart, sEnd := t0.Add(-50*time.Hour), t0
		r.StartTime, r.EndTime, r.IsActive, r.DurationHours = &sStart, &sEnd, true, 50
		return nil
	})
	require.NoError(t, err)

	rep := f.sweepAt(t0)
	require.Len(t, rep.Notifications, 2)
	assert.Equal(t, RentalExpiryWarning, rep.Notifications[0].Type)
	assert.Equal(t, SessionComplete, rep.Notifications[1].Type)
}

func TestSweep_DeliveryFailureIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	const other, crashing int64 = 43, 44
	f.rentAndStart(t, user, domain.KindC, t0)
	f.rentAndStart(t, other, domain.KindC, t0)
	f.rentAndStart(t, crashing, domain.KindC, t0)
	f.notifier.failFor[user] = errors.New("telegram: bad gateway")
	f.notifier.panicFor[crashing] = true

	rep := f.sweepAt(t0.Add(50 * time.Hour))
	assert.Len(t, rep.Notifications, 3)
	assert.Equal(t, 1, rep.Sent)
	assert.Equal(t, 2, rep.Failed)
	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, other, sent[0].UserID)

	// at-most-once: the failed notice is not retried on the next tick
	delete(f.notifier.failFor, user)
	f.sweepAt(t0.Add(52 * time.Hour))
	assert.Len(t, f.notifier.Sent(), 1)

	rec, err := f.repo.Get(ctx, user, domain.KindC)
	require.NoError(t, err)
	assert.NotNil(t, rec.LastNotifiedAt)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Notifications.WithLabelValues(string(SessionComplete), metrics.ResultSent)))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Notifications.WithLabelValues(string(SessionComplete), metrics.ResultFailed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Sweeps))
}

// End to end: rent C at t0, train at t0, one completion at t0+50h.
func TestSweep_EndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.svc.InitUser(ctx, user))

	rec, err := f.svc.SetRental(ctx, user, domain.KindC, t0)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(15*24*time.Hour), *rec.RentalEnd)

	res, err := f.svc.StartSession(ctx, user, domain.KindC, t0)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(50*time.Hour), *res.Record.EndTime)
	assert.Nil(t, res.Interruption)

	for at := t0; at.Before(t0.Add(50 * time.Hour)); at = at.Add(2 * time.Hour) {
		f.sweepAt(at)
	}
	assert.Empty(t, f.notifier.Sent())

	f.sweepAt(t0.Add(50*time.Hour + time.Minute))
	f.sweepAt(t0.Add(50*time.Hour + 3*time.Minute))
	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, SessionComplete, sent[0].Type)
}

func TestSweep_NoRecords(t *testing.T) {
	f := newFixture(t)
	rep := f.sweepAt(t0)
	assert.Zero(t, rep.Records)
	assert.NotEmpty(t, rep.ID)
}

func TestStartStopRestart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.rentAndStart(t, user, domain.KindC, t0)
	f.clock.Set(t0.Add(50 * time.Hour))

	assert.False(t, f.sched.Running())
	f.sched.Start(ctx)
	f.sched.Start(ctx)
	assert.True(t, f.sched.Running())

	// first sweep fires immediately, not after a 2 minute tick
	require.Eventually(t, func() bool {
		return f.notifier.count(SessionComplete) == 1
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, domain.Policy{}.TickPeriod(), f.sched.TickPeriod())

	f.sched.Restart(ctx, domain.Policy{Accelerated: true})
	assert.True(t, f.sched.Running())
	assert.True(t, f.sched.Policy().Accelerated)
	assert.Equal(t, 10*time.Second, f.sched.TickPeriod())

	f.sched.Stop()
	assert.False(t, f.sched.Running())
	assert.Zero(t, f.sched.TickPeriod())
	f.sched.Stop()

	assert.Equal(t, 1, f.notifier.count(SessionComplete))
}

// gateNotifier holds every delivery until release is closed.
type gateNotifier struct {
	fakeNotifier
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gateNotifier) Notify(ctx context.Context, n Notification) error {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.fakeNotifier.Notify(ctx, n)
}

func TestStopWaitsForInFlightSweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	gate := &gateNotifier{
		fakeNotifier: fakeNotifier{failFor: map[int64]error{}, panicFor: map[int64]bool{}},
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	f.sched = New(f.repo, zap.NewNop(), gate, domain.Policy{}, WithClock(f.clock.Now))
	f.rentAndStart(t, user, domain.KindC, t0)
	f.clock.Set(t0.Add(50 * time.Hour))

	f.sched.Start(ctx)
	select {
	case <-gate.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("sweep never reached the notifier")
	}

	stopped := make(chan struct{})
	go func() {
		f.sched.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a send was in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(gate.release)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after the send finished")
	}

	rec, err := f.repo.Get(ctx, user, domain.KindC)
	require.NoError(t, err)
	require.NotNil(t, rec.LastNotifiedAt)
	sent := gate.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, SessionComplete, sent[0].Type)
}
