package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/lbrulet/PetTrainerNotificationBot/internal/domain"
)

// NotificationType identifies which state transition a notification reports.
type NotificationType string

const (
	RentalExpiryWarning NotificationType = "rental_expiry_warning"
	RentalExpiredPause  NotificationType = "rental_expired_pause"
	SessionComplete     NotificationType = "session_complete"
)

// Notification is one message the scheduler asks the transport to deliver.
type Notification struct {
	UserID int64
	Kind   domain.Kind
	Type   NotificationType
	// TimeLeft is the time until rental end, set for RentalExpiryWarning.
	TimeLeft time.Duration
	// Actions are the interactive buttons to attach, if any.
	Actions []domain.Callback
}

// Notifier delivers notifications to users.
// telegram.Router implements it.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// DeliveryError is a failed send. It is logged and counted, never retried.
type DeliveryError struct {
	Notification Notification
	Err          error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s to user %d (kind %s): %v",
		e.Notification.Type, e.Notification.UserID, e.Notification.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func completionActions(k domain.Kind) []domain.Callback {
	return []domain.Callback{
		{Kind: k, Action: domain.ActionReset},
		{Kind: k, Action: domain.ActionStop},
	}
}
