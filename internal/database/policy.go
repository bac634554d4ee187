package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mesabook/internal/capacity"
	"mesabook/internal/models"
)

// GetPolicy returns the capacity policy for a restaurant, or
// capacity.ErrPolicyNotFound when the restaurant has no settings row.
func (db *DB) GetPolicy(ctx context.Context, restaurantID int64) (*models.RestaurantPolicy, error) {
	return getPolicy(ctx, db.DB, restaurantID)
}

func getPolicy(ctx context.Context, q querier, restaurantID int64) (*models.RestaurantPolicy, error) {
	var p models.RestaurantPolicy
	var perSlot, perDay sql.NullInt64
	err := q.QueryRowContext(ctx, `
		SELECT id, slot_interval, min_party_size, max_party_size,
		       max_covers_per_slot, max_covers_per_day,
		       allow_overbooking, overbooking_pct, updated_at
		FROM restaurants WHERE id = ?`,
		restaurantID,
	).Scan(
		&p.RestaurantID, &p.SlotInterval, &p.MinPartySize, &p.MaxPartySize,
		&perSlot, &perDay, &p.AllowOverbooking, &p.OverbookingPct, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, capacity.ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get policy: %w", err)
	}
	if perSlot.Valid {
		v := int(perSlot.Int64)
		p.MaxCoversPerSlot = &v
	}
	if perDay.Valid {
		v := int(perDay.Int64)
		p.MaxCoversPerDay = &v
	}

	rows, err := q.QueryContext(ctx, `
		SELECT weekday, open_time, close_time, is_closed
		FROM operating_hours WHERE restaurant_id = ?
		ORDER BY weekday`,
		restaurantID,
	)
	if err != nil {
		return nil, fmt.Errorf("get operating hours: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var weekday int
		var day models.DaySchedule
		if err := rows.Scan(&weekday, &day.Open, &day.Close, &day.Closed); err != nil {
			return nil, err
		}
		if weekday < 0 || weekday > 6 {
			continue
		}
		p.OperatingHours[weekday] = day
	}
	return &p, rows.Err()
}

// UpsertPolicy stores a validated policy, replacing operating hours
// for all seven weekdays.
func (db *DB) UpsertPolicy(ctx context.Context, p *models.RestaurantPolicy) error {
	if p == nil {
		return fmt.Errorf("policy is nil")
	}
	if err := p.Validate(); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	var perSlot, perDay any
	if p.MaxCoversPerSlot != nil {
		perSlot = *p.MaxCoversPerSlot
	}
	if p.MaxCoversPerDay != nil {
		perDay = *p.MaxCoversPerDay
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO restaurants (
			id, slot_interval, min_party_size, max_party_size,
			max_covers_per_slot, max_covers_per_day,
			allow_overbooking, overbooking_pct, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			slot_interval = excluded.slot_interval,
			min_party_size = excluded.min_party_size,
			max_party_size = excluded.max_party_size,
			max_covers_per_slot = excluded.max_covers_per_slot,
			max_covers_per_day = excluded.max_covers_per_day,
			allow_overbooking = excluded.allow_overbooking,
			overbooking_pct = excluded.overbooking_pct,
			updated_at = excluded.updated_at`,
		p.RestaurantID, p.SlotInterval, p.MinPartySize, p.MaxPartySize,
		perSlot, perDay, p.AllowOverbooking, p.OverbookingPct, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert restaurant: %w", err)
	}

	for weekday, day := range p.OperatingHours {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO operating_hours (restaurant_id, weekday, open_time, close_time, is_closed)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(restaurant_id, weekday) DO UPDATE SET
				open_time = excluded.open_time,
				close_time = excluded.close_time,
				is_closed = excluded.is_closed`,
			p.RestaurantID, weekday, day.Open, day.Close, day.Closed,
		)
		if err != nil {
			return fmt.Errorf("upsert operating hours weekday %d: %w", weekday, err)
		}
	}

	return tx.Commit()
}

// GetSlotOverride returns the override for (restaurant, weekday, slot)
// or nil when none exists.
func (db *DB) GetSlotOverride(ctx context.Context, restaurantID int64, weekday time.Weekday, slot string) (*models.SlotOverride, error) {
	var o models.SlotOverride
	err := db.QueryRowContext(ctx, `
		SELECT id, restaurant_id, weekday, slot, max_covers, is_active, created_at, updated_at
		FROM slot_overrides
		WHERE restaurant_id = ? AND weekday = ? AND slot = ?`,
		restaurantID, int(weekday), slot,
	).Scan(
		&o.ID, &o.RestaurantID, &o.Weekday, &o.Slot,
		&o.MaxCovers, &o.IsActive, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get slot override: %w", err)
	}
	return &o, nil
}

// UpsertSlotOverride creates or updates an override.
func (db *DB) UpsertSlotOverride(ctx context.Context, o *models.SlotOverride) error {
	if o == nil {
		return fmt.Errorf("override is nil")
	}
	if o.Weekday < 0 || o.Weekday > 6 {
		return fmt.Errorf("weekday must be 0-6, got %d", o.Weekday)
	}
	if _, err := models.ParseClock(o.Slot); err != nil {
		return err
	}
	if o.MaxCovers < 0 {
		return fmt.Errorf("max covers must not be negative")
	}

	now := time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO slot_overrides (
			restaurant_id, weekday, slot, max_covers, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(restaurant_id, weekday, slot) DO UPDATE SET
			max_covers = excluded.max_covers,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		o.RestaurantID, o.Weekday, o.Slot, o.MaxCovers, o.IsActive, now, now,
	)
	return err
}

// DeleteSlotOverride removes an override; the slot reverts to the
// restaurant-wide default.
func (db *DB) DeleteSlotOverride(ctx context.Context, restaurantID int64, weekday int, slot string) error {
	result, err := db.ExecContext(ctx,
		"DELETE FROM slot_overrides WHERE restaurant_id = ? AND weekday = ? AND slot = ?",
		restaurantID, weekday, slot,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListSlotOverrides returns all overrides for a restaurant ordered by
// weekday and slot.
func (db *DB) ListSlotOverrides(ctx context.Context, restaurantID int64) ([]models.SlotOverride, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, restaurant_id, weekday, slot, max_covers, is_active, created_at, updated_at
		FROM slot_overrides
		WHERE restaurant_id = ?
		ORDER BY weekday, slot`,
		restaurantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []models.SlotOverride
	for rows.Next() {
		var o models.SlotOverride
		if err := rows.Scan(
			&o.ID, &o.RestaurantID, &o.Weekday, &o.Slot,
			&o.MaxCovers, &o.IsActive, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, err
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}
