package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lbrulet/PetTrainerNotificationBot/internal/domain"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/metrics"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/scheduler"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/store"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/training"
)

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, scheduler.Notification) error { return nil }

func newSwitch(t *testing.T, locked bool) (*ModeSwitch, *training.Service, *scheduler.Scheduler, *metrics.Metrics) {
	t.Helper()
	repo, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "training.db"), 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	m := metrics.New(nil)
	svc := training.NewService(repo, zap.NewNop(), domain.Policy{})
	sched := scheduler.New(repo, zap.NewNop(), nopNotifier{}, domain.Policy{}, scheduler.WithMetrics(m))
	t.Cleanup(sched.Stop)
	return NewModeSwitch(svc, sched, locked, m, zap.NewNop()), svc, sched, m
}

func TestModeSwitch_TogglesServiceAndScheduler(t *testing.T) {
	ctx := context.Background()
	ms, svc, sched, m := newSwitch(t, false)
	sched.Start(ctx)

	p, err := ms.ToggleAccelerated(ctx)
	require.NoError(t, err)
	assert.True(t, p.Accelerated)
	assert.True(t, svc.Policy().Accelerated)
	assert.True(t, sched.Policy().Accelerated)
	assert.True(t, sched.Running())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AcceleratedOn))

	p, err = ms.ToggleAccelerated(ctx)
	require.NoError(t, err)
	assert.False(t, p.Accelerated)
	assert.False(t, sched.Policy().Accelerated)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.AcceleratedOn))
}

func TestModeSwitch_LockedInProduction(t *testing.T) {
	ms, svc, sched, _ := newSwitch(t, true)

	p, err := ms.ToggleAccelerated(context.Background())
	require.ErrorIs(t, err, domain.ErrAcceleratedLocked)
	assert.False(t, p.Accelerated)
	assert.False(t, svc.Policy().Accelerated)
	assert.False(t, sched.Running(), "a refused toggle does not restart anything")
}
