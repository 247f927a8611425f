package domain

import (
	"fmt"
	"strings"
	"time"
)

// Kind is an NPC tier. Each user owns exactly one record per kind.
type Kind string

const (
	KindC Kind = "C"
	KindB Kind = "B"
	KindA Kind = "A"
)

// Kinds lists every tier in display order.
var Kinds = []Kind{KindC, KindB, KindA}

// ParseKind accepts "c", "C", " b " etc.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToUpper(strings.TrimSpace(s))); k {
	case KindC, KindB, KindA:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

func (k Kind) Valid() bool {
	return k == KindC || k == KindB || k == KindA
}

// Lower is used to build command names like /train_c.
func (k Kind) Lower() string { return strings.ToLower(string(k)) }

// Record is the per-(user, kind) training and rental state.
// All timestamps are UTC; nil means "not set".
type Record struct {
	UserID        int64
	Kind          Kind
	StartTime     *time.Time
	DurationHours float64
	EndTime       *time.Time
	IsActive      bool
	// LastNotifiedAt marks that the completion notice for the current session went out.
	LastNotifiedAt *time.Time
	RentalStart    *time.Time
	RentalEnd      *time.Time
	// RentalExpiryNotifiedAt marks that the expiry warning for the current rental went out.
	RentalExpiryNotifiedAt *time.Time
}

// HasRental reports whether a rental window was ever set.
func (r *Record) HasRental() bool {
	return r.RentalStart != nil && r.RentalEnd != nil
}

// RentalActive reports whether the rental window covers now.
func (r *Record) RentalActive(now time.Time) bool {
	return r.HasRental() && now.Before(*r.RentalEnd)
}

// Finished reports whether the running session reached its end time.
func (r *Record) Finished(now time.Time) bool {
	return r.EndTime != nil && IsPast(*r.EndTime, now)
}
