// Package quota enforces the per-user periodic AI-chat allowance. All
// quota checks and conversation writes go through the Ledger so that a
// user's counter, period rollover and conversation log move together in
// one transaction.
package quota

import (
	"math"

	"tutorly/pkg/domain"
)

// Allowance returns the number of AI calls a tier may make per period.
// Unknown tiers get zero, which rejects every call.
func Allowance(tier domain.SubscriptionTier) int {
	switch tier {
	case domain.TierGuest:
		return 3
	case domain.TierFree:
		return 10
	case domain.TierBasic:
		return 50
	case domain.TierPremium:
		return 200
	case domain.TierAdmin:
		return math.MaxInt32
	default:
		return 0
	}
}
