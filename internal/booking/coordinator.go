// Package booking admits or rejects new reservations. The admission
// check and the insert run as one atomic unit so that two concurrent
// callers can never jointly overshoot a seating ceiling.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mesabook/internal/capacity"
	"mesabook/internal/metrics"
	"mesabook/internal/models"
	"mesabook/internal/slots"
)

// DefaultMaxAttempts bounds retries on serialization conflicts so
// contention cannot turn into livelock.
const DefaultMaxAttempts = 3

// ReserveRequest carries the input of one booking attempt.
type ReserveRequest struct {
	RestaurantID     int64
	Date             string // YYYY-MM-DD
	Time             string // HH:MM
	PartySize        int
	CustomerName     string
	CustomerPhone    string
	Comment          string
	OverrideCapacity bool // staff-only: bypass slot/day ceilings
}

// ReservationStore provides lifecycle operations outside the admission
// transaction.
type ReservationStore interface {
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	UpdateReservationStatus(ctx context.Context, id, version int64, status string) error
}

// Coordinator executes check-then-reserve atomically against the
// store.
type Coordinator struct {
	txs          capacity.TxRunner
	reservations ReservationStore
	policies     capacity.PolicyRepository
	engine       *capacity.Engine
	log          *zerolog.Logger
	maxAttempts  int
}

// NewCoordinator creates a booking coordinator. maxAttempts <= 0 uses
// DefaultMaxAttempts.
func NewCoordinator(txs capacity.TxRunner, reservations ReservationStore, policies capacity.PolicyRepository, engine *capacity.Engine, log *zerolog.Logger, maxAttempts int) *Coordinator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Coordinator{
		txs:          txs,
		reservations: reservations,
		policies:     policies,
		engine:       engine,
		log:          log,
		maxAttempts:  maxAttempts,
	}
}

// Reserve validates the request, re-checks availability inside the
// same transaction that inserts the reservation, and commits a
// confirmed reservation or returns a structured capacity failure.
func (c *Coordinator) Reserve(ctx context.Context, req ReserveRequest) (*models.Reservation, error) {
	policy, err := c.loadPolicy(ctx, req.RestaurantID)
	if err != nil {
		// Admission fails closed on store errors.
		return nil, err
	}
	if err := validateRequest(policy, req); err != nil {
		return nil, err
	}

	var lastConflict error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		created, err := c.tryReserve(ctx, req)
		if err == nil {
			c.logAdmission(created, attempt)
			return created, nil
		}
		if errors.Is(err, capacity.ErrSerializationConflict) {
			lastConflict = err
			metrics.IncReservation("conflict")
			select {
			case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		var capErr *CapacityError
		if errors.As(err, &capErr) {
			metrics.IncReservation("rejected")
			metrics.IncCapacityRejection(capErr.Constraint)
		}
		return nil, err
	}

	c.log.Warn().Err(lastConflict).
		Int64("restaurant_id", req.RestaurantID).
		Str("date", req.Date).
		Str("slot", req.Time).
		Int("attempts", c.maxAttempts).
		Msg("reservation retries exhausted")
	return nil, fmt.Errorf("%w after %d attempts", ErrTooManyConflicts, c.maxAttempts)
}

// tryReserve runs one check-then-insert attempt in a single
// transaction. The availability check uses the transaction snapshot,
// never a result computed earlier outside it.
func (c *Coordinator) tryReserve(ctx context.Context, req ReserveRequest) (*models.Reservation, error) {
	var created *models.Reservation
	err := c.txs.WithTx(ctx, func(tx capacity.ReservationTx) error {
		engine := c.engine.WithCovers(tx)
		res, err := engine.CheckSlot(ctx, capacity.CheckRequest{
			RestaurantID:  req.RestaurantID,
			Date:          req.Date,
			Slot:          req.Time,
			PartySize:     req.PartySize,
			AllowOverride: req.OverrideCapacity,
		})
		if err != nil {
			return err
		}
		if !res.Available {
			var daily *models.DailyUsage
			if res.Constraint == models.ConstraintDaily {
				if d, derr := engine.DailyUsage(ctx, req.RestaurantID, req.Date, req.PartySize); derr == nil {
					daily = d
				}
			}
			return newCapacityError(res, daily)
		}

		now := time.Now().UTC()
		r := &models.Reservation{
			RestaurantID:     req.RestaurantID,
			ConfirmationCode: uuid.NewString(),
			Date:             req.Date,
			Time:             req.Time,
			PartySize:        req.PartySize,
			Status:           models.StatusConfirmed,
			CustomerName:     req.CustomerName,
			CustomerPhone:    req.CustomerPhone,
			Comment:          req.Comment,
			OverbookWarning:  !res.CanAccommodate,
			CreatedAt:        now,
			UpdatedAt:        now,
			Version:          1,
		}
		if err := tx.InsertReservation(ctx, r); err != nil {
			return err
		}
		created = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (c *Coordinator) logAdmission(r *models.Reservation, attempt int) {
	event := c.log.Info()
	outcome := "admitted"
	if r.OverbookWarning {
		// Non-fatal annotation: the party squeezed in via the
		// overbooking ceiling or a staff override.
		event = c.log.Warn().Bool("overbook_warning", true)
		outcome = "overbooked"
	}
	metrics.IncReservation(outcome)
	event.
		Int64("reservation_id", r.ID).
		Int64("restaurant_id", r.RestaurantID).
		Str("date", r.Date).
		Str("slot", r.Time).
		Int("party_size", r.PartySize).
		Int("attempt", attempt).
		Msg("reservation admitted")
}

// UpdateStatus applies a staff status transition. Reservations are
// never hard-deleted; leaving the confirmed status frees the covers.
func (c *Coordinator) UpdateStatus(ctx context.Context, id int64, status string) (*models.Reservation, error) {
	if !models.ValidStatus(status) {
		return nil, invalid("status", fmt.Sprintf("unknown status %q", status))
	}

	r, err := c.reservations.GetReservation(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}

	if r.Status == status {
		return r, nil
	}
	if r.IsTerminal() || status == models.StatusConfirmed {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, status)
	}

	if err := c.reservations.UpdateReservationStatus(ctx, id, r.Version, status); err != nil {
		return nil, err
	}

	c.log.Info().
		Int64("reservation_id", id).
		Str("from", r.Status).
		Str("to", status).
		Msg("reservation status updated")

	return c.reservations.GetReservation(ctx, id)
}

func (c *Coordinator) loadPolicy(ctx context.Context, restaurantID int64) (*models.RestaurantPolicy, error) {
	policy, err := c.policies.GetPolicy(ctx, restaurantID)
	if errors.Is(err, capacity.ErrPolicyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get policy: %w", err)
	}
	return policy, nil
}

func validateRequest(policy *models.RestaurantPolicy, req ReserveRequest) error {
	day, err := time.ParseInLocation("2006-01-02", req.Date, time.UTC)
	if err != nil {
		return invalid("date", "expected YYYY-MM-DD")
	}
	if _, err := models.ParseClock(req.Time); err != nil {
		return invalid("time", "expected HH:MM")
	}
	if req.PartySize < 1 {
		return invalid("party_size", "must be at least 1")
	}
	if policy != nil {
		if req.PartySize < policy.MinPartySize {
			return invalid("party_size", fmt.Sprintf("below minimum of %d", policy.MinPartySize))
		}
		if policy.MaxPartySize > 0 && req.PartySize > policy.MaxPartySize {
			return invalid("party_size", fmt.Sprintf("above maximum of %d", policy.MaxPartySize))
		}
	}

	onGrid, err := slots.Contains(policy, day.Weekday(), req.Time)
	if err != nil {
		return fmt.Errorf("resolve slots: %w", err)
	}
	if !onGrid {
		return invalid("time", "not a bookable time slot for this date")
	}
	return nil
}
