package quota

import (
	"time"

	"tutorly/pkg/domain"
)

const rollingPeriod = 30 * 24 * time.Hour

// NextPeriodStart decides whether a user's billing period has lapsed and
// what the new period start would be. Free accounts run on a rolling
// 30-day window anchored at periodStart; every other tier resets on the
// first of the calendar month, UTC.
func NextPeriodStart(tier domain.SubscriptionTier, periodStart, now time.Time) (time.Time, bool) {
	now = now.UTC()
	periodStart = periodStart.UTC()
	if tier == domain.TierFree {
		if now.Sub(periodStart) >= rollingPeriod {
			return now, true
		}
		return periodStart, false
	}
	monthStart := firstOfMonth(now)
	if periodStart.Before(monthStart) {
		return monthStart, true
	}
	return periodStart, false
}

// InitialPeriodStart anchors a brand new account's first period.
func InitialPeriodStart(tier domain.SubscriptionTier, now time.Time) time.Time {
	now = now.UTC()
	if tier == domain.TierFree {
		return now
	}
	return firstOfMonth(now)
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
