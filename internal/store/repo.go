package store

import (
	"context"
	"errors"

	"github.com/lbrulet/PetTrainerNotificationBot/internal/domain"
)

// ErrNotFound is returned when no record exists for (user, kind).
var ErrNotFound = errors.New("record not found")

// UpdateFunc mutates a record inside a transaction. Returning an error aborts the update.
type UpdateFunc func(rec *domain.Record) error

// Repo defines storage operations for training records.
type Repo interface {
	Get(ctx context.Context, userID int64, kind domain.Kind) (*domain.Record, error)
	ListAll(ctx context.Context) ([]domain.Record, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Record, error)
	// EnsureDefaults creates the missing C/B/A records for a user as one unit.
	EnsureDefaults(ctx context.Context, userID int64) error
	// Save replaces the mutable fields of an existing record without reading it.
	// Rule-checked writes go through Update; Save is for callers that already
	// hold the full record, such as fixtures and data repair.
	Save(ctx context.Context, rec *domain.Record) error
	// Update runs a read-modify-write of one record atomically and returns the stored result.
	Update(ctx context.Context, userID int64, kind domain.Kind, fn UpdateFunc) (*domain.Record, error)
	Close() error
}
