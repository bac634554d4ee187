package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mesabook/internal/capacity"
	"mesabook/internal/models"
)

// SumConfirmedCovers sums party sizes of confirmed reservations for a
// calendar day, or for one slot when slot is non-empty.
func (db *DB) SumConfirmedCovers(ctx context.Context, restaurantID int64, date, slot string) (int, error) {
	return sumConfirmedCovers(ctx, db.DB, restaurantID, date, slot)
}

// SumConfirmedCovers sums covers using the transaction snapshot.
func (t *Tx) SumConfirmedCovers(ctx context.Context, restaurantID int64, date, slot string) (int, error) {
	return sumConfirmedCovers(ctx, t.tx, restaurantID, date, slot)
}

func sumConfirmedCovers(ctx context.Context, q querier, restaurantID int64, date, slot string) (int, error) {
	query := `
		SELECT COALESCE(SUM(party_size), 0) FROM reservations
		WHERE restaurant_id = ? AND date = ? AND status = ?`
	args := []any{restaurantID, date, models.StatusConfirmed}
	if slot != "" {
		query += " AND time = ?"
		args = append(args, slot)
	}

	var total int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum confirmed covers: %w", err)
	}
	return total, nil
}

// InsertReservation writes a new reservation row and fills in its id.
func (db *DB) InsertReservation(ctx context.Context, r *models.Reservation) error {
	return insertReservation(ctx, db.DB, r)
}

// InsertReservation writes a reservation within the transaction.
func (t *Tx) InsertReservation(ctx context.Context, r *models.Reservation) error {
	return insertReservation(ctx, t.tx, r)
}

func insertReservation(ctx context.Context, q querier, r *models.Reservation) error {
	if r == nil {
		return fmt.Errorf("reservation is nil")
	}
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}
	if r.Version == 0 {
		r.Version = 1
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO reservations (
			restaurant_id, confirmation_code, date, time, party_size, status,
			customer_name, customer_phone, comment, overbook_warning,
			created_at, updated_at, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RestaurantID, r.ConfirmationCode, r.Date, r.Time, r.PartySize, r.Status,
		r.CustomerName, r.CustomerPhone, r.Comment, r.OverbookWarning,
		r.CreatedAt, r.UpdatedAt, r.Version,
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last id: %w", err)
	}
	r.ID = id
	return nil
}

const reservationColumns = `
	id, restaurant_id, confirmation_code, date, time, party_size, status,
	customer_name, customer_phone, comment, overbook_warning,
	created_at, updated_at, version`

func scanReservation(row interface{ Scan(dest ...any) error }) (*models.Reservation, error) {
	var r models.Reservation
	err := row.Scan(
		&r.ID, &r.RestaurantID, &r.ConfirmationCode, &r.Date, &r.Time,
		&r.PartySize, &r.Status, &r.CustomerName, &r.CustomerPhone,
		&r.Comment, &r.OverbookWarning, &r.CreatedAt, &r.UpdatedAt, &r.Version,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetReservation returns a reservation by id.
func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	return scanReservation(db.QueryRowContext(ctx,
		"SELECT"+reservationColumns+" FROM reservations WHERE id = ?", id))
}

// GetReservationByCode returns a reservation by confirmation code.
func (db *DB) GetReservationByCode(ctx context.Context, code string) (*models.Reservation, error) {
	return scanReservation(db.QueryRowContext(ctx,
		"SELECT"+reservationColumns+" FROM reservations WHERE confirmation_code = ?", code))
}

// ReservationFilter narrows reservation listings.
type ReservationFilter struct {
	RestaurantID int64
	Date         string
	Status       string
	Limit        int
	Offset       int
}

// ListReservations returns reservations matching the filter ordered by
// date and slot.
func (db *DB) ListReservations(ctx context.Context, filter ReservationFilter) ([]models.Reservation, error) {
	query := "SELECT" + reservationColumns + " FROM reservations WHERE restaurant_id = ?"
	args := []any{filter.RestaurantID}

	if filter.Date != "" {
		query += " AND date = ?"
		args = append(args, filter.Date)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	query += " ORDER BY date, time, id"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, *r)
	}
	return reservations, rows.Err()
}

// UpdateReservationStatus applies a versioned status change. A version
// mismatch from a concurrent edit surfaces as a serialization
// conflict; an unknown id surfaces as sql.ErrNoRows.
func (db *DB) UpdateReservationStatus(ctx context.Context, id, version int64, status string) error {
	result, err := db.ExecContext(ctx, `
		UPDATE reservations
		SET status = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		status, time.Now(), id, version,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reservations WHERE id = ?", id).Scan(&exists)
		if err != nil {
			return err
		}
		if exists == 0 {
			return sql.ErrNoRows
		}
		return fmt.Errorf("%w: reservation %d was modified concurrently", capacity.ErrSerializationConflict, id)
	}
	return nil
}
