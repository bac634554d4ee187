package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Default booking window used when a restaurant has not configured
// operating hours yet.
const (
	DefaultOpenTime     = "11:00"
	DefaultCloseTime    = "22:00"
	DefaultSlotInterval = 30
)

// AllowedSlotIntervals are the supported slot step sizes in minutes.
var AllowedSlotIntervals = []int{15, 30, 60}

// DaySchedule describes the operating hours for a single weekday.
// Times are "HH:MM" strings; Close earlier than or equal to Open means
// the window crosses midnight into the next day.
type DaySchedule struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	Closed bool   `json:"closed"`
}

// RestaurantPolicy holds the capacity and scheduling settings for one
// restaurant. OperatingHours is indexed by time.Weekday (0 = Sunday).
// Nil cover limits mean unlimited.
type RestaurantPolicy struct {
	RestaurantID     int64          `json:"restaurant_id"`
	OperatingHours   [7]DaySchedule `json:"operating_hours"`
	SlotInterval     int            `json:"slot_interval_minutes"`
	MinPartySize     int            `json:"min_party_size"`
	MaxPartySize     int            `json:"max_party_size"`
	MaxCoversPerSlot *int           `json:"max_covers_per_slot,omitempty"`
	MaxCoversPerDay  *int           `json:"max_covers_per_day,omitempty"`
	AllowOverbooking bool           `json:"allow_overbooking"`
	OverbookingPct   int            `json:"overbooking_percentage"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// SlotOverride is a per-weekday-and-slot capacity value that supersedes
// the restaurant-wide MaxCoversPerSlot while active.
type SlotOverride struct {
	ID           int64     `json:"id"`
	RestaurantID int64     `json:"restaurant_id"`
	Weekday      int       `json:"weekday"` // 0 = Sunday .. 6 = Saturday
	Slot         string    `json:"slot"`    // "HH:MM"
	MaxCovers    int       `json:"max_covers"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ParseClock parses an "HH:MM" string into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format: %s", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour*60 + minute, nil
}

// FormatClock converts minutes since midnight to an "HH:MM" string.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Validate checks the policy invariants. It is called once at the
// settings write boundary; readers can assume a stored policy is valid.
func (p *RestaurantPolicy) Validate() error {
	ok := false
	for _, iv := range AllowedSlotIntervals {
		if p.SlotInterval == iv {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("slot interval must be one of 15, 30 or 60 minutes, got %d", p.SlotInterval)
	}

	if p.MinPartySize < 1 {
		return fmt.Errorf("min party size must be at least 1")
	}
	if p.MaxPartySize < p.MinPartySize {
		return fmt.Errorf("max party size %d is below min party size %d", p.MaxPartySize, p.MinPartySize)
	}
	if p.MaxCoversPerSlot != nil && *p.MaxCoversPerSlot < 1 {
		return fmt.Errorf("max covers per slot must be positive")
	}
	if p.MaxCoversPerDay != nil && *p.MaxCoversPerDay < 1 {
		return fmt.Errorf("max covers per day must be positive")
	}
	if p.OverbookingPct < 0 {
		return fmt.Errorf("overbooking percentage must not be negative")
	}

	for wd, day := range p.OperatingHours {
		if day.Closed {
			continue
		}
		if day.Open == "" && day.Close == "" {
			continue
		}
		open, err := ParseClock(day.Open)
		if err != nil {
			return fmt.Errorf("weekday %d: %w", wd, err)
		}
		closeM, err := ParseClock(day.Close)
		if err != nil {
			return fmt.Errorf("weekday %d: %w", wd, err)
		}
		// Span accounting for midnight crossing; equal times would be a
		// zero-length window, which is rejected.
		span := closeM - open
		if span <= 0 {
			span += 24 * 60
		}
		if open == closeM {
			return fmt.Errorf("weekday %d: open and close times are equal", wd)
		}
		if span > 24*60 {
			return fmt.Errorf("weekday %d: operating window exceeds 24 hours", wd)
		}
	}
	return nil
}

// Hours returns the schedule for a weekday.
func (p *RestaurantPolicy) Hours(weekday time.Weekday) DaySchedule {
	return p.OperatingHours[int(weekday)]
}
