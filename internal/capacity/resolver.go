package capacity

import (
	"context"
	"fmt"
	"time"

	"mesabook/internal/models"
)

// Resolver determines the effective per-slot capacity for a restaurant.
//
// Precedence is total: an active override for the exact (weekday, slot)
// wins, then the restaurant-wide MaxCoversPerSlot, then unlimited.
type Resolver struct {
	overrides OverrideRepository
}

// NewResolver creates a resolver reading overrides from the given
// repository.
func NewResolver(overrides OverrideRepository) *Resolver {
	return &Resolver{overrides: overrides}
}

// Resolve returns the effective capacity for a slot, or nil for
// unlimited. A nil policy means the restaurant has no per-slot default.
func (r *Resolver) Resolve(ctx context.Context, policy *models.RestaurantPolicy, restaurantID int64, weekday time.Weekday, slot string) (*int, error) {
	if r.overrides != nil {
		override, err := r.overrides.GetSlotOverride(ctx, restaurantID, weekday, slot)
		if err != nil {
			return nil, fmt.Errorf("get slot override: %w", err)
		}
		if override != nil && override.IsActive {
			covers := override.MaxCovers
			return &covers, nil
		}
	}

	if policy != nil && policy.MaxCoversPerSlot != nil {
		covers := *policy.MaxCoversPerSlot
		return &covers, nil
	}
	return nil, nil
}

// OverbookCeiling returns the soft ceiling floor(capacity*(1+pct/100))
// for a slot when overbooking is allowed, or the nominal capacity
// otherwise.
func OverbookCeiling(capacity int, policy *models.RestaurantPolicy) int {
	if policy == nil || !policy.AllowOverbooking || policy.OverbookingPct <= 0 {
		return capacity
	}
	return capacity * (100 + policy.OverbookingPct) / 100
}
