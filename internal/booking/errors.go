package booking

import (
	"errors"
	"fmt"

	"mesabook/internal/models"
)

// Sentinel errors surfaced by the coordinator.
var (
	// ErrTooManyConflicts means serialization conflicts exhausted the
	// retry budget. Callers should treat it like a capacity failure;
	// the locking detail stays internal.
	ErrTooManyConflicts = errors.New("too many concurrent booking conflicts")

	// ErrReservationNotFound is returned for unknown reservation ids.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrInvalidTransition rejects a status change the lifecycle does
	// not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError reports malformed booking input. Always recoverable
// by the caller correcting the request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// CapacityError means the slot or day is full and no override applied.
// It carries the same diagnostic numbers CheckSlot reports so callers
// can explain the rejection without a follow-up query.
type CapacityError struct {
	Message         string             `json:"message"`
	TimeSlot        string             `json:"time_slot"`
	CurrentBookings int                `json:"current_bookings"`
	Capacity        *int               `json:"capacity"`
	Remaining       *int               `json:"remaining"`
	Constraint      string             `json:"constraint"`
	DailyUsage      *models.DailyUsage `json:"daily_capacity,omitempty"`
}

func (e *CapacityError) Error() string {
	return e.Message
}

func newCapacityError(res *models.AvailabilityResult, daily *models.DailyUsage) *CapacityError {
	msg := "no capacity left for the requested time slot"
	if res.Constraint == models.ConstraintDaily {
		msg = "the restaurant has reached its daily capacity for this date"
	}
	return &CapacityError{
		Message:         msg,
		TimeSlot:        res.TimeSlot,
		CurrentBookings: res.CurrentBookings,
		Capacity:        res.Capacity,
		Remaining:       res.Remaining,
		Constraint:      res.Constraint,
		DailyUsage:      daily,
	}
}
