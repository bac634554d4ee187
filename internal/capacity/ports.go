// Package capacity computes effective seating limits and live
// availability for a restaurant's time slots.
package capacity

import (
	"context"
	"errors"
	"time"

	"mesabook/internal/models"
)

// ErrSerializationConflict is returned by stores when a transaction
// lost to a concurrent committer and may be retried from scratch.
var ErrSerializationConflict = errors.New("serialization conflict")

// PolicyRepository looks up restaurant capacity settings.
type PolicyRepository interface {
	// GetPolicy returns the policy for a restaurant, or
	// database.ErrPolicyNotFound when none is configured.
	GetPolicy(ctx context.Context, restaurantID int64) (*models.RestaurantPolicy, error)
}

// OverrideRepository looks up per-slot capacity overrides.
type OverrideRepository interface {
	// GetSlotOverride returns the override for (restaurant, weekday,
	// slot), or nil when none exists.
	GetSlotOverride(ctx context.Context, restaurantID int64, weekday time.Weekday, slot string) (*models.SlotOverride, error)
}

// CoverCounter sums confirmed covers from the reservation store. An
// empty slot means the whole calendar day.
type CoverCounter interface {
	SumConfirmedCovers(ctx context.Context, restaurantID int64, date, slot string) (int, error)
}

// ReservationWriter inserts a new reservation.
type ReservationWriter interface {
	InsertReservation(ctx context.Context, r *models.Reservation) error
}

// ReservationTx is the view of the store inside one admission
// transaction: the covers any capacity check sees are exactly the
// covers visible at the commit point.
type ReservationTx interface {
	CoverCounter
	ReservationWriter
}

// TxRunner opens a transaction with the isolation the admission path
// requires: concurrent check-then-insert sequences must serialize.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx ReservationTx) error) error
}
