package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPolicy() *RestaurantPolicy {
	p := &RestaurantPolicy{
		RestaurantID: 1,
		SlotInterval: 30,
		MinPartySize: 1,
		MaxPartySize: 12,
	}
	for wd := range p.OperatingHours {
		p.OperatingHours[wd] = DaySchedule{Open: "11:00", Close: "22:00"}
	}
	return p
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		minutes int
		ok      bool
	}{
		{"00:00", 0, true},
		{"11:30", 690, true},
		{"23:59", 1439, true},
		{"24:00", 0, false},
		{"9:00", 540, true},
		{"11:60", 0, false},
		{"lunch", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if !tc.ok {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.minutes, got, tc.in)
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "00:00", FormatClock(0))
	assert.Equal(t, "11:30", FormatClock(690))
	assert.Equal(t, "23:45", FormatClock(1425))
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, validPolicy().Validate())

	t.Run("interval must be a supported step", func(t *testing.T) {
		p := validPolicy()
		p.SlotInterval = 45
		assert.Error(t, p.Validate())
	})

	t.Run("party size bounds", func(t *testing.T) {
		p := validPolicy()
		p.MinPartySize = 8
		p.MaxPartySize = 4
		assert.Error(t, p.Validate())
	})

	t.Run("open equals close", func(t *testing.T) {
		p := validPolicy()
		p.OperatingHours[2] = DaySchedule{Open: "18:00", Close: "18:00"}
		assert.Error(t, p.Validate())
	})

	t.Run("closed day skips window checks", func(t *testing.T) {
		p := validPolicy()
		p.OperatingHours[2] = DaySchedule{Closed: true}
		assert.NoError(t, p.Validate())
	})

	t.Run("midnight crossing window allowed", func(t *testing.T) {
		p := validPolicy()
		p.OperatingHours[5] = DaySchedule{Open: "20:00", Close: "02:00"}
		assert.NoError(t, p.Validate())
	})
}

func TestReservationStatus(t *testing.T) {
	r := Reservation{Status: StatusConfirmed}
	assert.True(t, r.CountsTowardCapacity())
	assert.False(t, r.IsTerminal())

	for _, status := range []string{StatusCancelled, StatusCompleted, StatusNoShow} {
		r.Status = status
		assert.False(t, r.CountsTowardCapacity(), status)
		assert.True(t, r.IsTerminal(), status)
	}

	assert.True(t, ValidStatus(StatusConfirmed))
	assert.False(t, ValidStatus("pending"))
	assert.False(t, ValidStatus(""))
}

func TestDailyUsageExceeded(t *testing.T) {
	cap := 50

	assert.False(t, (&DailyUsage{CurrentCovers: 100}).Exceeded())

	u := &DailyUsage{CurrentCovers: 48, MaxCoversPerDay: &cap, WouldFit: true}
	assert.False(t, u.Exceeded())

	u.WouldFit = false
	assert.True(t, u.Exceeded())
}
