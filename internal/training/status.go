package training

import (
	"context"
	"time"

	"github.com/lbrulet/PetTrainerNotificationBot/internal/domain"
)

// Summary is the /status view of one record.
type Summary struct {
	Record       domain.Record
	RentalActive bool
	// RentalRemaining and SessionRemaining are RemainingLabel values, empty when not applicable.
	RentalRemaining  string
	SessionRemaining string
	// NotEnoughTime is set for an idle record whose rental cannot fit one cycle.
	NotEnoughTime bool
	// MinimumTime is the cycle interval NotEnoughTime was checked against.
	MinimumTime time.Duration
	// Estimate is set for an idle record whose rental ends before a full session would.
	Estimate *domain.Estimate
}

// Status summarizes the user's records at now.
func (s *Service) Status(ctx context.Context, userID int64, now time.Time) ([]Summary, error) {
	p := s.Policy()
	now = now.UTC()

	recs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, domain.NewStorageError("status", err)
	}
	if len(recs) == 0 {
		return nil, domain.ErrNotInitialized
	}

	out := make([]Summary, 0, len(recs))
	for _, rec := range recs {
		sum := Summary{
			Record:       rec,
			RentalActive: rec.RentalActive(now),
			MinimumTime:  p.CycleInterval(rec.Kind),
		}
		if sum.RentalActive {
			sum.RentalRemaining = domain.RemainingLabel(*rec.RentalEnd, now)
			if !rec.IsActive {
				left := rec.RentalEnd.Sub(now)
				switch {
				case left < sum.MinimumTime:
					sum.NotEnoughTime = true
				case left < p.SessionDuration(rec.Kind):
					est := p.Estimate(rec.Kind, now, *rec.RentalEnd)
					sum.Estimate = &est
				}
			}
		}
		if rec.IsActive && rec.EndTime != nil {
			sum.SessionRemaining = domain.RemainingLabel(*rec.EndTime, now)
		}
		out = append(out, sum)
	}
	return out, nil
}
