package booking

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mesabook/internal/capacity"
	"mesabook/internal/database"
	"mesabook/internal/models"
)

// 2025-06-06 is a Friday.
const testDate = "2025-06-06"

func intPtr(v int) *int { return &v }

func newTestCoordinator(t *testing.T) (*database.DB, *Coordinator) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "booking_test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	engine := capacity.NewEngine(db, db, db, &logger)
	return db, NewCoordinator(db, db, db, engine, &logger, 0)
}

func storePolicy(t *testing.T, db *database.DB, mutate func(*models.RestaurantPolicy)) {
	t.Helper()
	p := &models.RestaurantPolicy{
		RestaurantID: 1,
		SlotInterval: 30,
		MinPartySize: 1,
		MaxPartySize: 12,
	}
	for wd := range p.OperatingHours {
		p.OperatingHours[wd] = models.DaySchedule{Open: "11:00", Close: "22:00"}
	}
	if mutate != nil {
		mutate(p)
	}
	require.NoError(t, db.UpsertPolicy(context.Background(), p))
}

func reserveReq(party int) ReserveRequest {
	return ReserveRequest{
		RestaurantID:  1,
		Date:          testDate,
		Time:          "19:00",
		PartySize:     party,
		CustomerName:  "Ada",
		CustomerPhone: "+100000000",
	}
}

func TestReserveAdmits(t *testing.T) {
	db, c := newTestCoordinator(t)
	storePolicy(t, db, func(p *models.RestaurantPolicy) {
		p.MaxCoversPerSlot = intPtr(10)
	})

	r, err := c.Reserve(context.Background(), reserveReq(4))
	require.NoError(t, err)
	assert.NotZero(t, r.ID)
	assert.NotEmpty(t, r.ConfirmationCode)
	assert.Equal(t, models.StatusConfirmed, r.Status)
	assert.False(t, r.OverbookWarning)

	covers, err := db.SumConfirmedCovers(context.Background(), 1, testDate, "19:00")
	require.NoError(t, err)
	assert.Equal(t, 4, covers)
}

func TestReserveCapacityExceeded(t *testing.T) {
	db, c := newTestCoordinator(t)
	storePolicy(t, db, func(p *models.RestaurantPolicy) {
		p.MaxCoversPerSlot = intPtr(4)
	})
	ctx := context.Background()

	_, err := c.Reserve(ctx, reserveReq(4))
	require.NoError(t, err)

	_, err = c.Reserve(ctx, reserveReq(3))
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, models.ConstraintSlot, capErr.Constraint)
	assert.Equal(t, 4, capErr.CurrentBookings)
	require.NotNil(t, capErr.Capacity)
	assert.Equal(t, 4, *capErr.Capacity)
	require.NotNil(t, capErr.Remaining)
	assert.Equal(t, 0, *capErr.Remaining)
}

func TestReserveDailyGateBeatsUnlimitedSlot(t *testing.T) {
	db, c := newTestCoordinator(t)
	storePolicy(t, db, func(p *models.RestaurantPolicy) {
		p.MaxCoversPerDay = intPtr(50)
	})
	ctx := context.Background()

	// 48 covers spread across the day, slots themselves uncapped.
	_, err := c.Reserve(ctx, ReserveRequest{RestaurantID: 1, Date: testDate, Time: "12:00", PartySize: 12})
	require.NoError(t, err)
	_, err = c.Reserve(ctx, ReserveRequest{RestaurantID: 1, Date: testDate, Time: "14:00", PartySize: 12})
	require.NoError(t, err)
	_, err = c.Reserve(ctx, ReserveRequest{RestaurantID: 1, Date: testDate, Time: "16:00", PartySize: 12})
	require.NoError(t, err)
	_, err = c.Reserve(ctx, ReserveRequest{RestaurantID: 1, Date: testDate, Time: "18:00", PartySize: 12})
	require.NoError(t, err)

	_, err = c.Reserve(ctx, reserveReq(5))
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, models.ConstraintDaily, capErr.Constraint)
	require.NotNil(t, capErr.DailyUsage)
	assert.Equal(t, 48, capErr.DailyUsage.CurrentCovers)
	require.NotNil(t, capErr.DailyUsage.Remaining)
	assert.Equal(t, 2, *capErr.DailyUsage.Remaining)

	// A party of 2 still fits under the daily cap.
	_, err = c.Reserve(ctx, reserveReq(2))
	require.NoError(t, err)
}

func TestReserveOverbooking(t *testing.T) {
	db, c := newTestCoordinator(t)
	storePolicy(t, db, func(p *models.RestaurantPolicy) {
		p.MaxCoversPerSlot = intPtr(10)
		p.AllowOverbooking = true
		p.OverbookingPct = 20 // ceiling 12
	})
	ctx := context.Background()

	_, err := c.Reserve(ctx, reserveReq(10))
	require.NoError(t, err)

	// Party of 2 squeezes in under the ceiling, flagged for staff.
	r, err := c.Reserve(ctx, reserveReq(2))
	require.NoError(t, err)
	assert.True(t, r.OverbookWarning)

	// Party of 3 would exceed even the ceiling.
	_, err = c.Reserve(ctx, reserveReq(3))
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
}

func TestReserveStaffOverride(t *testing.T) {
	db, c := newTestCoordinator(t)
	storePolicy(t, db, func(p *models.RestaurantPolicy) {
		p.MaxCoversPerSlot = intPtr(4)
	})
	ctx := context.Background()

	_, err := c.Reserve(ctx, reserveReq(4))
	require.NoError(t, err)

	req := reserveReq(4)
	req.OverrideCapacity = true
	r, err := c.Reserve(ctx, req)
	require.NoError(t, err)
	assert.True(t, r.OverbookWarning, "override admissions carry a warning annotation")
}

func TestReserveValidation(t *testing.T) {
	db, c := newTestCoordinator(t)
	storePolicy(t, db, func(p *models.RestaurantPolicy) {
		p.MinPartySize = 2
		p.MaxPartySize = 8
		p.OperatingHours[time.Saturday] = models.DaySchedule{Closed: true}
	})
	ctx := context.Background()

	tests := []struct {
		name string
		req  ReserveRequest
	}{
		{"bad date", ReserveRequest{RestaurantID: 1, Date: "06.06.2025", Time: "19:00", PartySize: 4}},
		{"bad time", ReserveRequest{RestaurantID: 1, Date: testDate, Time: "7pm", PartySize: 4}},
		{"party too small", ReserveRequest{RestaurantID: 1, Date: testDate, Time: "19:00", PartySize: 1}},
		{"party too large", ReserveRequest{RestaurantID: 1, Date: testDate, Time: "19:00", PartySize: 9}},
		{"off the slot grid", ReserveRequest{RestaurantID: 1, Date: testDate, Time: "19:10", PartySize: 4}},
		{"outside operating hours", ReserveRequest{RestaurantID: 1, Date: testDate, Time: "23:30", PartySize: 4}},
		{"closed day", ReserveRequest{RestaurantID: 1, Date: "2025-06-07", Time: "19:00", PartySize: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Reserve(ctx, tt.req)
			var vErr *ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}

func TestReserveWithoutPolicyUsesDefaults(t *testing.T) {
	_, c := newTestCoordinator(t)

	// No policy configured: default window, unlimited capacity.
	r, err := c.Reserve(context.Background(), ReserveRequest{
		RestaurantID: 1, Date: testDate, Time: "12:00", PartySize: 6,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, r.Status)

	// Outside the default 11:00-22:00 window is still rejected.
	_, err = c.Reserve(context.Background(), ReserveRequest{
		RestaurantID: 1, Date: testDate, Time: "23:00", PartySize: 2,
	})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestConcurrentReservationsAdmitExactlyOne(t *testing.T) {
	db, c := newTestCoordinator(t)
	storePolicy(t, db, func(p *models.RestaurantPolicy) {
		p.MaxCoversPerSlot = intPtr(4)
	})

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = c.Reserve(context.Background(), reserveReq(3))
		}(i)
	}
	wg.Wait()

	var admitted, rejected int
	for _, err := range results {
		if err == nil {
			admitted++
			continue
		}
		var capErr *CapacityError
		if errors.As(err, &capErr) {
			rejected++
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, admitted, "exactly one concurrent booking must be admitted")
	assert.Equal(t, 1, rejected, "the other must see a capacity failure")

	covers, err := db.SumConfirmedCovers(context.Background(), 1, testDate, "19:00")
	require.NoError(t, err)
	assert.Equal(t, 3, covers, "admitted covers never overshoot the ceiling")
}

func TestUpdateStatusFreesCapacity(t *testing.T) {
	db, c := newTestCoordinator(t)
	storePolicy(t, db, func(p *models.RestaurantPolicy) {
		p.MaxCoversPerSlot = intPtr(4)
	})
	ctx := context.Background()

	r, err := c.Reserve(ctx, reserveReq(4))
	require.NoError(t, err)

	_, err = c.Reserve(ctx, reserveReq(2))
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)

	updated, err := c.UpdateStatus(ctx, r.ID, models.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, updated.Status)

	// Cancelling freed the covers.
	_, err = c.Reserve(ctx, reserveReq(2))
	require.NoError(t, err)

	covers, err := db.SumConfirmedCovers(ctx, 1, testDate, "19:00")
	require.NoError(t, err)
	assert.Equal(t, 2, covers)
}

func TestUpdateStatusTransitions(t *testing.T) {
	db, c := newTestCoordinator(t)
	storePolicy(t, db, nil)
	ctx := context.Background()

	r, err := c.Reserve(ctx, reserveReq(2))
	require.NoError(t, err)

	_, err = c.UpdateStatus(ctx, r.ID, "seated")
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)

	_, err = c.UpdateStatus(ctx, 424242, models.StatusCancelled)
	assert.ErrorIs(t, err, ErrReservationNotFound)

	// Applying the current status is a no-op.
	same, err := c.UpdateStatus(ctx, r.ID, models.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, int64(1), same.Version)

	_, err = c.UpdateStatus(ctx, r.ID, models.StatusCompleted)
	require.NoError(t, err)

	// Terminal statuses admit no further transitions.
	_, err = c.UpdateStatus(ctx, r.ID, models.StatusNoShow)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
