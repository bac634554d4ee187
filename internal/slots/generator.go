// Package slots turns a restaurant's operating hours into discrete
// bookable time-of-day values.
package slots

import (
	"fmt"
	"time"

	"mesabook/internal/models"
)

const minutesPerDay = 24 * 60

// Generate returns the ordered "HH:MM" slots between open and close,
// inclusive of both boundaries, stepping by interval minutes.
//
// When close is earlier than or equal to open the window crosses
// midnight: slots run from open to the end of the day, then restart at
// 00:00 and step up to close. The stepping phase deliberately restarts
// at midnight instead of carrying the remainder over, which can leave
// an uneven final gap before close on the first segment.
func Generate(open, close string, interval int) ([]string, error) {
	if interval <= 0 {
		interval = models.DefaultSlotInterval
	}

	openMin, err := models.ParseClock(open)
	if err != nil {
		return nil, fmt.Errorf("parse open time: %w", err)
	}
	closeMin, err := models.ParseClock(close)
	if err != nil {
		return nil, fmt.Errorf("parse close time: %w", err)
	}

	var out []string
	if closeMin > openMin {
		for m := openMin; m <= closeMin; m += interval {
			out = append(out, models.FormatClock(m))
		}
		return out, nil
	}

	// Midnight crossing: open..23:59, then 00:00..close.
	for m := openMin; m < minutesPerDay; m += interval {
		out = append(out, models.FormatClock(m))
	}
	for m := 0; m <= closeMin; m += interval {
		out = append(out, models.FormatClock(m))
	}
	return out, nil
}

// ForDay returns the bookable slots for a weekday under the given
// policy. A closed day or a day without configured hours yields no
// slots. A nil policy falls back to the default 11:00-22:00 window
// with 30-minute steps rather than failing.
func ForDay(policy *models.RestaurantPolicy, weekday time.Weekday) ([]string, error) {
	if policy == nil {
		return Generate(models.DefaultOpenTime, models.DefaultCloseTime, models.DefaultSlotInterval)
	}

	day := policy.Hours(weekday)
	if day.Closed || day.Open == "" || day.Close == "" {
		return nil, nil
	}
	return Generate(day.Open, day.Close, policy.SlotInterval)
}

// Contains reports whether slot is one of the bookable slots for the
// weekday. Used to reject bookings at times that do not fall on the
// slot grid.
func Contains(policy *models.RestaurantPolicy, weekday time.Weekday, slot string) (bool, error) {
	all, err := ForDay(policy, weekday)
	if err != nil {
		return false, err
	}
	for _, s := range all {
		if s == slot {
			return true, nil
		}
	}
	return false, nil
}
