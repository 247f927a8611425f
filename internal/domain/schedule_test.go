package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, time.May, 5, 12, 0, 0, 0, time.UTC)

func TestPolicy_NormalConstants(t *testing.T) {
	p := Policy{}
	cases := []struct {
		kind     Kind
		duration time.Duration
		cycle    time.Duration
		percent  int
	}{
		{KindC, 50 * time.Hour, 2 * time.Hour, 4},
		{KindB, 75 * time.Hour, 3 * time.Hour, 4},
		{KindA, 250 * time.Hour, 5 * time.Hour, 2},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			assert.Equal(t, tc.duration, p.SessionDuration(tc.kind))
			assert.Equal(t, tc.cycle, p.CycleInterval(tc.kind))
			assert.Equal(t, tc.percent, p.PercentPerCycle(tc.kind))
		})
	}
	assert.Equal(t, 15*24*time.Hour, p.RentalPeriod())
	assert.Equal(t, 24*time.Hour, p.WarningLead())
	assert.Equal(t, 2*time.Minute, p.TickPeriod())
}

func TestPolicy_AcceleratedKeepsCycleCounts(t *testing.T) {
	normal, fast := Policy{}, Policy{Accelerated: true}
	for _, k := range Kinds {
		wantCycles := normal.SessionDuration(k) / normal.CycleInterval(k)
		gotCycles := fast.SessionDuration(k) / fast.CycleInterval(k)
		assert.Equal(t, wantCycles, gotCycles, "kind %s", k)
		assert.Equal(t, normal.PercentPerCycle(k), fast.PercentPerCycle(k))
	}
	assert.Equal(t, time.Minute, fast.SessionDuration(KindC))
	assert.Equal(t, 5*time.Minute, fast.RentalPeriod())
	assert.Equal(t, time.Minute, fast.WarningLead())
	assert.Equal(t, 10*time.Second, fast.TickPeriod())
}

func TestPolicy_EstimateInterruptedSession(t *testing.T) {
	p := Policy{}
	est := p.Estimate(KindB, t0, t0.Add(10*time.Hour))
	assert.Equal(t, Estimate{Cycles: 3, Percent: 12}, est)

	est = p.Estimate(KindA, t0, t0.Add(24*time.Hour))
	assert.Equal(t, Estimate{Cycles: 4, Percent: 8}, est)

	assert.Equal(t, Estimate{}, p.Estimate(KindC, t0, t0.Add(-time.Hour)))
}

func TestRemainingLabel(t *testing.T) {
	cases := []struct {
		name   string
		target time.Time
		want   string
	}{
		{"days and hours", t0.Add(26 * time.Hour), "1d 2h"},
		{"minutes only", t0.Add(45 * time.Minute), "45m"},
		{"all units", t0.Add(2*24*time.Hour + 5*time.Hour + 30*time.Minute), "2d 5h 30m"},
		{"hours and minutes", t0.Add(12*time.Hour + 34*time.Minute), "12h 34m"},
		{"past", t0.Add(-time.Minute), "finished"},
		{"exactly now", t0, "finished"},
		{"under a minute", t0.Add(30 * time.Second), "0m"},
		{"day with minutes", t0.Add(24*time.Hour + 5*time.Minute), "1d 5m"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RemainingLabel(tc.target, t0))
		})
	}
}

func TestIsPast(t *testing.T) {
	assert.True(t, IsPast(t0, t0))
	assert.True(t, IsPast(t0.Add(-time.Second), t0))
	assert.False(t, IsPast(t0.Add(time.Second), t0))
}

func TestRecord_RentalActive(t *testing.T) {
	start, end := t0, t0.Add(time.Hour)
	r := Record{}
	assert.False(t, r.RentalActive(t0))

	r.RentalStart, r.RentalEnd = &start, &end
	assert.True(t, r.RentalActive(t0))
	assert.False(t, r.RentalActive(end))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "50 hours", FormatDuration(50*time.Hour))
	assert.Equal(t, "1 minute", FormatDuration(time.Minute))
	assert.Equal(t, "5 seconds", FormatDuration(4800*time.Millisecond))
	assert.Equal(t, "30 minutes", FormatLeadTime(30*time.Minute))
	assert.Equal(t, "23 hours", FormatLeadTime(23*time.Hour))
	require.Equal(t, "N/A", FormatDate(nil))
	require.Equal(t, "2025-05-05 12:00 UTC", FormatDate(&t0))
}
