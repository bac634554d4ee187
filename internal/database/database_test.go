package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mesabook/internal/capacity"
	"mesabook/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "mesabook_test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func intPtr(v int) *int { return &v }

func testPolicy(restaurantID int64) *models.RestaurantPolicy {
	p := &models.RestaurantPolicy{
		RestaurantID:     restaurantID,
		SlotInterval:     30,
		MinPartySize:     1,
		MaxPartySize:     10,
		MaxCoversPerSlot: intPtr(20),
		MaxCoversPerDay:  intPtr(80),
		AllowOverbooking: true,
		OverbookingPct:   10,
	}
	for wd := range p.OperatingHours {
		p.OperatingHours[wd] = models.DaySchedule{Open: "11:00", Close: "22:00"}
	}
	p.OperatingHours[time.Monday] = models.DaySchedule{Closed: true}
	return p
}

func TestPolicyRoundtrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.GetPolicy(ctx, 1)
	assert.ErrorIs(t, err, capacity.ErrPolicyNotFound)

	require.NoError(t, db.UpsertPolicy(ctx, testPolicy(1)))

	got, err := db.GetPolicy(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.RestaurantID)
	assert.Equal(t, 30, got.SlotInterval)
	require.NotNil(t, got.MaxCoversPerSlot)
	assert.Equal(t, 20, *got.MaxCoversPerSlot)
	require.NotNil(t, got.MaxCoversPerDay)
	assert.Equal(t, 80, *got.MaxCoversPerDay)
	assert.True(t, got.AllowOverbooking)
	assert.True(t, got.OperatingHours[time.Monday].Closed)
	assert.Equal(t, "11:00", got.OperatingHours[time.Friday].Open)

	// Update drops the per-slot cap back to unlimited.
	p := testPolicy(1)
	p.MaxCoversPerSlot = nil
	require.NoError(t, db.UpsertPolicy(ctx, p))

	got, err = db.GetPolicy(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got.MaxCoversPerSlot)
}

func TestUpsertPolicyRejectsInvalid(t *testing.T) {
	db := newTestDB(t)

	p := testPolicy(1)
	p.SlotInterval = 45
	assert.Error(t, db.UpsertPolicy(context.Background(), p))

	p = testPolicy(1)
	p.OperatingHours[time.Friday] = models.DaySchedule{Open: "26:00", Close: "22:00"}
	assert.Error(t, db.UpsertPolicy(context.Background(), p))
}

func TestSlotOverrideRoundtrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertPolicy(ctx, testPolicy(1)))

	got, err := db.GetSlotOverride(ctx, 1, time.Friday, "19:00")
	require.NoError(t, err)
	assert.Nil(t, got)

	override := &models.SlotOverride{
		RestaurantID: 1, Weekday: int(time.Friday), Slot: "19:00",
		MaxCovers: 10, IsActive: true,
	}
	require.NoError(t, db.UpsertSlotOverride(ctx, override))

	got, err = db.GetSlotOverride(ctx, 1, time.Friday, "19:00")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 10, got.MaxCovers)
	assert.True(t, got.IsActive)

	// Upsert replaces in place.
	override.MaxCovers = 6
	override.IsActive = false
	require.NoError(t, db.UpsertSlotOverride(ctx, override))

	got, err = db.GetSlotOverride(ctx, 1, time.Friday, "19:00")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 6, got.MaxCovers)
	assert.False(t, got.IsActive)

	list, err := db.ListSlotOverrides(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, db.DeleteSlotOverride(ctx, 1, int(time.Friday), "19:00"))
	got, err = db.GetSlotOverride(ctx, 1, time.Friday, "19:00")
	require.NoError(t, err)
	assert.Nil(t, got)

	err = db.DeleteSlotOverride(ctx, 1, int(time.Friday), "19:00")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

var codeSeq atomic.Int64

func insertTestReservation(t *testing.T, db *DB, date, slot string, party int, status string) *models.Reservation {
	t.Helper()
	r := &models.Reservation{
		RestaurantID:     1,
		ConfirmationCode: fmt.Sprintf("code-%d", codeSeq.Add(1)),
		Date:             date,
		Time:             slot,
		PartySize:        party,
		Status:           status,
	}
	require.NoError(t, db.InsertReservation(context.Background(), r))
	return r
}

func TestSumConfirmedCovers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertPolicy(ctx, testPolicy(1)))

	insertTestReservation(t, db, "2025-06-06", "19:00", 4, models.StatusConfirmed)
	insertTestReservation(t, db, "2025-06-06", "19:00", 2, models.StatusConfirmed)
	insertTestReservation(t, db, "2025-06-06", "20:00", 3, models.StatusConfirmed)
	// Non-confirmed statuses never count toward capacity.
	insertTestReservation(t, db, "2025-06-06", "19:00", 8, models.StatusCancelled)
	insertTestReservation(t, db, "2025-06-06", "19:00", 8, models.StatusNoShow)
	insertTestReservation(t, db, "2025-06-07", "19:00", 5, models.StatusConfirmed)

	total, err := db.SumConfirmedCovers(ctx, 1, "2025-06-06", "19:00")
	require.NoError(t, err)
	assert.Equal(t, 6, total)

	total, err = db.SumConfirmedCovers(ctx, 1, "2025-06-06", "")
	require.NoError(t, err)
	assert.Equal(t, 9, total)

	total, err = db.SumConfirmedCovers(ctx, 1, "2025-06-08", "")
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestReservationLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertPolicy(ctx, testPolicy(1)))

	r := insertTestReservation(t, db, "2025-06-06", "19:00", 4, models.StatusConfirmed)
	require.NotZero(t, r.ID)

	got, err := db.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ConfirmationCode, got.ConfirmationCode)
	assert.Equal(t, int64(1), got.Version)

	byCode, err := db.GetReservationByCode(ctx, r.ConfirmationCode)
	require.NoError(t, err)
	assert.Equal(t, r.ID, byCode.ID)

	require.NoError(t, db.UpdateReservationStatus(ctx, r.ID, got.Version, models.StatusCancelled))

	got, err = db.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.Equal(t, int64(2), got.Version)

	// Stale version surfaces as a serialization conflict.
	err = db.UpdateReservationStatus(ctx, r.ID, 1, models.StatusCompleted)
	assert.ErrorIs(t, err, capacity.ErrSerializationConflict)

	// Unknown id surfaces as not found.
	err = db.UpdateReservationStatus(ctx, 9999, 1, models.StatusCompleted)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListReservations(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertPolicy(ctx, testPolicy(1)))

	insertTestReservation(t, db, "2025-06-06", "20:00", 2, models.StatusConfirmed)
	insertTestReservation(t, db, "2025-06-06", "19:00", 4, models.StatusConfirmed)
	insertTestReservation(t, db, "2025-06-07", "19:00", 3, models.StatusCancelled)

	list, err := db.ListReservations(ctx, ReservationFilter{RestaurantID: 1, Date: "2025-06-06"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "19:00", list[0].Time)
	assert.Equal(t, "20:00", list[1].Time)

	list, err = db.ListReservations(ctx, ReservationFilter{RestaurantID: 1, Status: models.StatusCancelled})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "2025-06-07", list[0].Date)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertPolicy(ctx, testPolicy(1)))

	wantErr := errors.New("abort")
	err := db.WithTx(ctx, func(tx capacity.ReservationTx) error {
		r := &models.Reservation{
			RestaurantID: 1, ConfirmationCode: "tx-rollback",
			Date: "2025-06-06", Time: "19:00", PartySize: 4,
			Status: models.StatusConfirmed,
		}
		if err := tx.InsertReservation(ctx, r); err != nil {
			return err
		}
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	// Nothing committed: the transaction either fully commits or fully
	// rolls back.
	total, err := db.SumConfirmedCovers(ctx, 1, "2025-06-06", "")
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestWithTxCommits(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertPolicy(ctx, testPolicy(1)))

	err := db.WithTx(ctx, func(tx capacity.ReservationTx) error {
		covers, err := tx.SumConfirmedCovers(ctx, 1, "2025-06-06", "19:00")
		if err != nil {
			return err
		}
		assert.Equal(t, 0, covers)
		return tx.InsertReservation(ctx, &models.Reservation{
			RestaurantID: 1, ConfirmationCode: "tx-commit",
			Date: "2025-06-06", Time: "19:00", PartySize: 4,
			Status: models.StatusConfirmed,
		})
	})
	require.NoError(t, err)

	total, err := db.SumConfirmedCovers(ctx, 1, "2025-06-06", "19:00")
	require.NoError(t, err)
	assert.Equal(t, 4, total)
}
