package models

// Binding constraint reported in availability results.
const (
	ConstraintSlot  = "slot"
	ConstraintDaily = "daily"
)

// AvailabilityResult describes availability of one time slot for a
// requested party size. Nil Capacity/Remaining mean "unlimited", which
// callers must treat as distinct from 0 ("full").
type AvailabilityResult struct {
	TimeSlot        string `json:"time_slot"`
	Available       bool   `json:"available"`
	CurrentBookings int    `json:"current_bookings"`
	Capacity        *int   `json:"capacity"`
	Remaining       *int   `json:"remaining"`
	CanAccommodate  bool   `json:"can_accommodate"`
	CanOverbook     bool   `json:"can_overbook,omitempty"`
	Constraint      string `json:"constraint,omitempty"`
}

// DailyUsage aggregates confirmed covers for one calendar day against
// the restaurant's daily cap. Nil MaxCoversPerDay/Remaining mean the
// day is uncapped.
type DailyUsage struct {
	Date            string `json:"date"`
	CurrentCovers   int    `json:"current_covers"`
	MaxCoversPerDay *int   `json:"max_covers_per_day"`
	Remaining       *int   `json:"remaining"`
	WouldFit        bool   `json:"would_fit"`
}

// Exceeded reports whether the daily cap blocks the proposed party.
func (d *DailyUsage) Exceeded() bool {
	return d.MaxCoversPerDay != nil && !d.WouldFit
}
