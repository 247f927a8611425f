package domain

import "time"

// Policy holds the time constants for one run mode.
// Accelerated mode keeps the normal proportions with minutes instead of hours.
type Policy struct {
	Accelerated bool
}

var (
	sessionDurations = map[Kind]time.Duration{
		KindC: 50 * time.Hour,
		KindB: 75 * time.Hour,
		KindA: 250 * time.Hour,
	}
	cycleIntervals = map[Kind]time.Duration{
		KindC: 2 * time.Hour,
		KindB: 3 * time.Hour,
		KindA: 5 * time.Hour,
	}
	percentPerCycle = map[Kind]int{
		KindC: 4,
		KindB: 4,
		KindA: 2,
	}

	acceleratedDurations = map[Kind]time.Duration{
		KindC: 1 * time.Minute,
		KindB: 2 * time.Minute,
		KindA: 3 * time.Minute,
	}
	// same cycle count per session as normal mode: 25, 25, 50
	acceleratedCycles = map[Kind]time.Duration{
		KindC: time.Minute / 25,
		KindB: 2 * time.Minute / 25,
		KindA: 3 * time.Minute / 50,
	}
)

const (
	RentalDays = 15

	rentalPeriod            = RentalDays * 24 * time.Hour
	warningLead             = 24 * time.Hour
	tickPeriod              = 2 * time.Minute
	acceleratedRentalPeriod = 5 * time.Minute
	acceleratedWarningLead  = time.Minute
	acceleratedTickPeriod   = 10 * time.Second
)

// SessionDuration is the planned length of a training session.
func (p Policy) SessionDuration(k Kind) time.Duration {
	if p.Accelerated {
		return acceleratedDurations[k]
	}
	return sessionDurations[k]
}

// CycleInterval is the time it takes to earn one progress increment.
func (p Policy) CycleInterval(k Kind) time.Duration {
	if p.Accelerated {
		return acceleratedCycles[k]
	}
	return cycleIntervals[k]
}

// PercentPerCycle does not depend on the mode.
func (p Policy) PercentPerCycle(k Kind) int {
	return percentPerCycle[k]
}

// RentalPeriod is how long a rental lasts from the moment it is set.
func (p Policy) RentalPeriod() time.Duration {
	if p.Accelerated {
		return acceleratedRentalPeriod
	}
	return rentalPeriod
}

// WarningLead is how long before rental end the expiry warning is sent.
func (p Policy) WarningLead() time.Duration {
	if p.Accelerated {
		return acceleratedWarningLead
	}
	return warningLead
}

// TickPeriod is the scheduler sweep period.
func (p Policy) TickPeriod() time.Duration {
	if p.Accelerated {
		return acceleratedTickPeriod
	}
	return tickPeriod
}

// Estimate is the advisory progress of a session cut short by rental expiry.
type Estimate struct {
	Cycles  int
	Percent int
}

// Estimate computes how many whole cycles fit between now and rentalEnd.
func (p Policy) Estimate(k Kind, now, rentalEnd time.Time) Estimate {
	left := rentalEnd.Sub(now)
	cycle := p.CycleInterval(k)
	if left <= 0 || cycle <= 0 {
		return Estimate{}
	}
	cycles := int(left / cycle)
	return Estimate{Cycles: cycles, Percent: cycles * p.PercentPerCycle(k)}
}

// IsPast reports whether target is at or before now.
func IsPast(target, now time.Time) bool {
	return !now.Before(target)
}
