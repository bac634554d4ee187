package capacity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"mesabook/internal/models"
	"mesabook/internal/slots"
)

// ErrPolicyNotFound is returned by policy repositories when a
// restaurant has no configured settings. The engine recovers from it
// by falling back to documented defaults (default hours, unlimited
// capacity) rather than failing the request.
var ErrPolicyNotFound = errors.New("restaurant policy not configured")

// CheckRequest asks whether a slot can seat a party.
type CheckRequest struct {
	RestaurantID  int64
	Date          string // YYYY-MM-DD
	Slot          string // HH:MM
	PartySize     int
	AllowOverride bool // privileged caller may bypass ceilings
}

// Engine answers availability questions by composing the per-slot
// capacity resolution, the daily aggregate gate and the current
// confirmed covers. All arithmetic is pure; the store is touched only
// through the injected repositories.
type Engine struct {
	policies PolicyRepository
	resolver *Resolver
	covers   CoverCounter
	log      *zerolog.Logger
}

// NewEngine creates an availability engine.
func NewEngine(policies PolicyRepository, overrides OverrideRepository, covers CoverCounter, log *zerolog.Logger) *Engine {
	return &Engine{
		policies: policies,
		resolver: NewResolver(overrides),
		covers:   covers,
		log:      log,
	}
}

// WithCovers returns a copy of the engine whose cover sums come from
// the given counter. The admission path uses this to re-run checks
// against the same transaction snapshot that performs the insert.
func (e *Engine) WithCovers(covers CoverCounter) *Engine {
	clone := *e
	clone.covers = covers
	return &clone
}

// CheckSlot reports availability of one slot for a party size.
func (e *Engine) CheckSlot(ctx context.Context, req CheckRequest) (*models.AvailabilityResult, error) {
	policy, err := e.loadPolicy(ctx, req.RestaurantID)
	if err != nil {
		return nil, err
	}
	weekday, err := weekdayOf(req.Date)
	if err != nil {
		return nil, err
	}

	daily, err := dailyUsage(ctx, e.covers, policy, req.RestaurantID, req.Date, req.PartySize)
	if err != nil {
		return nil, err
	}

	return e.checkResolved(ctx, policy, daily, weekday, req)
}

// checkResolved applies the per-slot steps given an already computed
// daily aggregate.
func (e *Engine) checkResolved(ctx context.Context, policy *models.RestaurantPolicy, daily *models.DailyUsage, weekday time.Weekday, req CheckRequest) (*models.AvailabilityResult, error) {
	dailyExceeded := daily.Exceeded()

	// Daily capacity is the outer gate: when the day is full and the
	// caller is not privileged, report the daily numbers without even
	// inspecting per-slot capacity.
	if dailyExceeded && !req.AllowOverride {
		return &models.AvailabilityResult{
			TimeSlot:        req.Slot,
			Available:       false,
			CurrentBookings: daily.CurrentCovers,
			Capacity:        daily.MaxCoversPerDay,
			Remaining:       daily.Remaining,
			Constraint:      models.ConstraintDaily,
		}, nil
	}

	slotCap, err := e.resolver.Resolve(ctx, policy, req.RestaurantID, weekday, req.Slot)
	if err != nil {
		return nil, err
	}
	slotCovers, err := e.covers.SumConfirmedCovers(ctx, req.RestaurantID, req.Date, req.Slot)
	if err != nil {
		return nil, fmt.Errorf("sum slot covers: %w", err)
	}

	res := &models.AvailabilityResult{
		TimeSlot:        req.Slot,
		CurrentBookings: slotCovers,
		Capacity:        slotCap,
	}

	if slotCap == nil {
		// Unlimited slot: availability reduces to the daily outcome.
		res.CanAccommodate = !dailyExceeded
		res.Available = !dailyExceeded || req.AllowOverride
		if daily.MaxCoversPerDay != nil {
			res.Remaining = daily.Remaining
			res.Constraint = models.ConstraintDaily
		}
		return res, nil
	}

	remaining := *slotCap - slotCovers
	if remaining < 0 {
		remaining = 0
	}
	wouldFit := req.PartySize <= remaining
	canOverbook := policy != nil && policy.AllowOverbooking &&
		slotCovers+req.PartySize <= OverbookCeiling(*slotCap, policy)

	res.CanAccommodate = wouldFit && !dailyExceeded
	res.CanOverbook = canOverbook
	res.Available = (wouldFit || canOverbook) && !dailyExceeded
	if req.AllowOverride {
		res.Available = true
	}

	// Report whichever of (slot, daily) binds; daily wins when both
	// are set.
	reported := remaining
	res.Constraint = models.ConstraintSlot
	if daily.Remaining != nil && *daily.Remaining < reported {
		reported = *daily.Remaining
		res.Constraint = models.ConstraintDaily
	}
	res.Remaining = &reported
	return res, nil
}

// DailyUsage returns the confirmed covers for a calendar day measured
// against the restaurant's daily cap.
func (e *Engine) DailyUsage(ctx context.Context, restaurantID int64, date string, proposedPartySize int) (*models.DailyUsage, error) {
	policy, err := e.loadPolicy(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if _, err := weekdayOf(date); err != nil {
		return nil, err
	}
	return dailyUsage(ctx, e.covers, policy, restaurantID, date, proposedPartySize)
}

// ListSlots reports availability for every bookable slot on a date.
// A failed downstream fetch degrades to all-available defaults instead
// of propagating a fatal error into the listing; staleness there only
// affects display, the authoritative check happens at admission.
func (e *Engine) ListSlots(ctx context.Context, restaurantID int64, date string, partySize int) ([]models.AvailabilityResult, error) {
	weekday, err := weekdayOf(date)
	if err != nil {
		return nil, err
	}

	policy, err := e.loadPolicy(ctx, restaurantID)
	if err != nil {
		e.log.Warn().Err(err).Int64("restaurant_id", restaurantID).Msg("policy fetch failed, using defaults for listing")
		policy = nil
	}

	slotList, err := slots.ForDay(policy, weekday)
	if err != nil {
		return nil, fmt.Errorf("generate slots: %w", err)
	}
	if len(slotList) == 0 {
		return []models.AvailabilityResult{}, nil
	}

	daily, err := dailyUsage(ctx, e.covers, policy, restaurantID, date, partySize)
	if err != nil {
		e.log.Warn().Err(err).Str("date", date).Msg("daily aggregation failed, degrading to available defaults")
		return defaultResults(slotList), nil
	}

	results := make([]models.AvailabilityResult, 0, len(slotList))
	for _, slot := range slotList {
		req := CheckRequest{RestaurantID: restaurantID, Date: date, Slot: slot, PartySize: partySize}
		res, err := e.checkResolved(ctx, policy, daily, weekday, req)
		if err != nil {
			e.log.Warn().Err(err).Str("slot", slot).Msg("slot check failed, degrading to available default")
			results = append(results, defaultResult(slot))
			continue
		}
		results = append(results, *res)
	}
	return results, nil
}

func (e *Engine) loadPolicy(ctx context.Context, restaurantID int64) (*models.RestaurantPolicy, error) {
	policy, err := e.policies.GetPolicy(ctx, restaurantID)
	if errors.Is(err, ErrPolicyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get policy: %w", err)
	}
	return policy, nil
}

func weekdayOf(date string) (time.Weekday, error) {
	t, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q; expected YYYY-MM-DD", date)
	}
	return t.Weekday(), nil
}

func defaultResult(slot string) models.AvailabilityResult {
	return models.AvailabilityResult{
		TimeSlot:       slot,
		Available:      true,
		CanAccommodate: true,
	}
}

func defaultResults(slotList []string) []models.AvailabilityResult {
	results := make([]models.AvailabilityResult, 0, len(slotList))
	for _, slot := range slotList {
		results = append(results, defaultResult(slot))
	}
	return results
}
