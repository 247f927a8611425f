package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned when the user never ran /start.
	ErrNotInitialized = errors.New("training record not initialized")
	// ErrRentalInactive is returned when starting without a live rental.
	ErrRentalInactive = errors.New("npc rental inactive")
	// ErrInsufficientRentalTime is returned when the rental ends before one cycle completes.
	ErrInsufficientRentalTime = errors.New("insufficient rental time")

	ErrUnknownKind     = errors.New("unknown npc kind")
	ErrInvalidCallback = errors.New("invalid callback data")
	// ErrAcceleratedLocked is returned when accelerated mode is requested in production.
	ErrAcceleratedLocked = errors.New("accelerated mode is disabled in production")
)

// StorageError wraps an unexpected persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError returns nil when err is nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
