package models

import "time"

// Reservation statuses. Only confirmed reservations count toward
// capacity; everything else is a soft-deleted lifecycle state kept for
// audit purposes.
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
	StatusNoShow    = "no_show"
)

// Reservation represents one booking for a restaurant.
type Reservation struct {
	ID               int64     `json:"id"`
	RestaurantID     int64     `json:"restaurant_id"`
	ConfirmationCode string    `json:"confirmation_code"`
	Date             string    `json:"date"` // YYYY-MM-DD, calendar day
	Time             string    `json:"time"` // HH:MM slot
	PartySize        int       `json:"party_size"`
	Status           string    `json:"status"`
	CustomerName     string    `json:"customer_name"`
	CustomerPhone    string    `json:"customer_phone"`
	Comment          string    `json:"comment,omitempty"`
	OverbookWarning  bool      `json:"overbook_warning"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Version          int64     `json:"version"`
}

// CountsTowardCapacity reports whether the reservation consumes covers.
func (r *Reservation) CountsTowardCapacity() bool {
	return r.Status == StatusConfirmed
}

// IsTerminal reports whether the status admits no further transitions.
func (r *Reservation) IsTerminal() bool {
	switch r.Status {
	case StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// ValidStatus reports whether s is one of the known reservation statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}
