package store

import (
	"database/sql"
	"time"

	"github.com/lbrulet/PetTrainerNotificationBot/internal/domain"
)

// Timestamps are stored as RFC 3339 text, the layout the single-tenant database used.
func toNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func fromNullString(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

// boolToInt converts a boolean to 1/0 for SQLite.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scanner interface {
	Scan(dest ...any) error
}

const recordColumns = `user_id, npc_type, start_iso, duration_hours, end_iso, is_active,
	last_notified_iso, npc_rental_start_iso, npc_rental_end_iso, rental_expiry_notified_iso`

func scanRecord(s scanner) (*domain.Record, error) {
	var (
		rec      domain.Record
		kind     string
		active   int
		start    sql.NullString
		end      sql.NullString
		notified sql.NullString
		rStart   sql.NullString
		rEnd     sql.NullString
		rWarned  sql.NullString
	)
	if err := s.Scan(
		&rec.UserID, &kind, &start, &rec.DurationHours, &end, &active,
		&notified, &rStart, &rEnd, &rWarned,
	); err != nil {
		return nil, err
	}
	rec.Kind = domain.Kind(kind)
	rec.IsActive = active != 0

	var err error
	for _, f := range []struct {
		dst **time.Time
		src sql.NullString
	}{
		{&rec.StartTime, start},
		{&rec.EndTime, end},
		{&rec.LastNotifiedAt, notified},
		{&rec.RentalStart, rStart},
		{&rec.RentalEnd, rEnd},
		{&rec.RentalExpiryNotifiedAt, rWarned},
	} {
		if *f.dst, err = fromNullString(f.src); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}
