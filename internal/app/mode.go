package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/lbrulet/PetTrainerNotificationBot/internal/domain"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/metrics"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/training"
)

type restarter interface {
	Restart(ctx context.Context, policy domain.Policy)
}

// ModeSwitch toggles accelerated mode for the whole process: the training
// service gets the new policy and the scheduler restarts with its tick period.
type ModeSwitch struct {
	svc     *training.Service
	sched   restarter
	locked  bool
	metrics *metrics.Metrics
	log     *zap.Logger

	mu sync.Mutex
}

// NewModeSwitch returns a switch; locked refuses to enable accelerated mode.
func NewModeSwitch(svc *training.Service, sched restarter, locked bool, m *metrics.Metrics, log *zap.Logger) *ModeSwitch {
	return &ModeSwitch{svc: svc, sched: sched, locked: locked, metrics: m, log: log}
}

// ToggleAccelerated flips the mode and returns the policy now in effect.
func (m *ModeSwitch) ToggleAccelerated(ctx context.Context) (domain.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.svc.Policy()
	next := domain.Policy{Accelerated: !cur.Accelerated}
	if next.Accelerated && m.locked {
		return cur, domain.ErrAcceleratedLocked
	}

	m.svc.SetPolicy(next)
	m.sched.Restart(ctx, next)
	m.metrics.SetAccelerated(next.Accelerated)
	m.log.Info("run mode switched", zap.Bool("accelerated", next.Accelerated))
	return next, nil
}
