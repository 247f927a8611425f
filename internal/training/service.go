// Package training implements the session lifecycle: user initialization,
// rentals, and starting or stopping training sessions.
package training

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lbrulet/PetTrainerNotificationBot/internal/domain"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/store"
)

// Service applies the training rules on top of a store.Repo.
type Service struct {
	repo store.Repo
	log  *zap.Logger

	mu     sync.RWMutex
	policy domain.Policy
}

// NewService creates a Service running under the given policy.
func NewService(repo store.Repo, log *zap.Logger, policy domain.Policy) *Service {
	return &Service{repo: repo, log: log, policy: policy}
}

// Policy returns the policy currently in effect.
func (s *Service) Policy() domain.Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// SetPolicy switches the policy used by subsequent operations.
// Sessions already running keep the end time they were started with.
func (s *Service) SetPolicy(p domain.Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = p
}

// InitUser creates the user's C/B/A records if missing.
func (s *Service) InitUser(ctx context.Context, userID int64) error {
	if err := s.repo.EnsureDefaults(ctx, userID); err != nil {
		return domain.NewStorageError("init user", err)
	}
	s.log.Info("user initialized", zap.Int64("user_id", userID))
	return nil
}

// StartResult is the outcome of StartSession.
type StartResult struct {
	Record domain.Record
	// Interruption is set when the rental ends before the session does.
	Interruption *domain.Estimate
}

// StartSession begins (or restarts) a training session for kind.
func (s *Service) StartSession(ctx context.Context, userID int64, kind domain.Kind, now time.Time) (StartResult, error) {
	p := s.Policy()
	now = now.UTC()

	rec, err := s.repo.Update(ctx, userID, kind, func(rec *domain.Record) error {
		if !rec.RentalActive(now) {
			return domain.ErrRentalInactive
		}
		if rec.RentalEnd.Sub(now) < p.CycleInterval(kind) {
			return domain.ErrInsufficientRentalTime
		}

		duration := p.SessionDuration(kind)
		end := now.Add(duration)
		start := now
		rec.StartTime = &start
		rec.DurationHours = duration.Hours()
		rec.EndTime = &end
		rec.IsActive = true
		rec.LastNotifiedAt = nil
		return nil
	})
	if err != nil {
		return StartResult{}, s.mapErr("start session", err)
	}

	res := StartResult{Record: *rec}
	if rec.EndTime.After(*rec.RentalEnd) {
		est := p.Estimate(kind, now, *rec.RentalEnd)
		res.Interruption = &est
		s.log.Warn("session will be interrupted by rental expiry",
			zap.Int64("user_id", userID),
			zap.String("kind", string(kind)),
			zap.Int("cycles", est.Cycles),
			zap.Int("percent", est.Percent),
		)
	}
	s.log.Info("session started",
		zap.Int64("user_id", userID),
		zap.String("kind", string(kind)),
		zap.Time("end", *rec.EndTime),
	)
	return res, nil
}

// StopSession deactivates the session. Stopping an inactive or missing
// record is not an error.
func (s *Service) StopSession(ctx context.Context, userID int64, kind domain.Kind) error {
	_, err := s.repo.Update(ctx, userID, kind, func(rec *domain.Record) error {
		rec.IsActive = false
		return nil
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.log.Debug("stop on missing record", zap.Int64("user_id", userID), zap.String("kind", string(kind)))
		return nil
	case err != nil:
		return domain.NewStorageError("stop session", err)
	}
	s.log.Info("session stopped", zap.Int64("user_id", userID), zap.String("kind", string(kind)))
	return nil
}

// SetRental starts a fresh rental window at now and re-arms the expiry warning.
func (s *Service) SetRental(ctx context.Context, userID int64, kind domain.Kind, now time.Time) (domain.Record, error) {
	p := s.Policy()
	now = now.UTC()

	rec, err := s.repo.Update(ctx, userID, kind, func(rec *domain.Record) error {
		start, end := now, now.Add(p.RentalPeriod())
		rec.RentalStart = &start
		rec.RentalEnd = &end
		rec.RentalExpiryNotifiedAt = nil
		return nil
	})
	if err != nil {
		return domain.Record{}, s.mapErr("set rental", err)
	}
	s.log.Info("rental set",
		zap.Int64("user_id", userID),
		zap.String("kind", string(kind)),
		zap.Time("rental_end", *rec.RentalEnd),
	)
	return *rec, nil
}

// mapErr turns store errors into the domain taxonomy. Domain errors pass through.
func (s *Service) mapErr(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.ErrNotInitialized
	case errors.Is(err, domain.ErrRentalInactive), errors.Is(err, domain.ErrInsufficientRentalTime):
		return err
	default:
		return domain.NewStorageError(op, err)
	}
}
