package capacity

import (
	"context"
	"fmt"

	"mesabook/internal/models"
)

// dailyUsage sums confirmed covers for one calendar day and compares
// them to the restaurant's daily cap. proposedPartySize may be zero,
// in which case WouldFit reports whether any seat at all is left.
func dailyUsage(ctx context.Context, covers CoverCounter, policy *models.RestaurantPolicy, restaurantID int64, date string, proposedPartySize int) (*models.DailyUsage, error) {
	usage := &models.DailyUsage{Date: date, WouldFit: true}

	var maxPerDay *int
	if policy != nil {
		maxPerDay = policy.MaxCoversPerDay
	}
	if maxPerDay != nil {
		capDay := *maxPerDay
		usage.MaxCoversPerDay = &capDay
	}

	current, err := covers.SumConfirmedCovers(ctx, restaurantID, date, "")
	if err != nil {
		return nil, fmt.Errorf("sum daily covers: %w", err)
	}
	usage.CurrentCovers = current

	if usage.MaxCoversPerDay == nil {
		// Uncapped day: always available, remaining unknown.
		return usage, nil
	}

	remaining := *usage.MaxCoversPerDay - current
	if remaining < 0 {
		remaining = 0
	}
	usage.Remaining = &remaining

	if proposedPartySize > 0 {
		usage.WouldFit = current+proposedPartySize <= *usage.MaxCoversPerDay
	} else {
		usage.WouldFit = current < *usage.MaxCoversPerDay
	}
	return usage, nil
}
