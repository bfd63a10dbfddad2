package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"gorm.io/gorm"

	"tutorly/internal/util"
	"tutorly/pkg/domain"
	"tutorly/pkg/store"
)

// Entry is a finished AI exchange to be logged if the call is accepted.
type Entry struct {
	ConversationID string
	Messages       []domain.ChatMessage
	TokensUsed     int
}

// Result reports the outcome of a ledger operation. Exactly one of
// Accepted and QuotaExceeded is true when UserFound is true; when
// UserFound is false the other fields are zero.
type Result struct {
	UserFound     bool
	Accepted      bool
	QuotaExceeded bool
	Used          int
	Limit         int
	LogID         string
}

// Ledger serializes quota consumption per user. Each CheckAndConsume
// call runs in a single database transaction holding a per-user
// advisory lock, so concurrent calls for the same user queue up and see
// each other's committed counters.
type Ledger struct {
	db  *gorm.DB
	now func() time.Time
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// CheckAndConsume applies period rollover, then either consumes one
// unit of allowance and logs the conversation, or rejects the call.
// A lapsed period is reset and committed even when the call itself is
// rejected, so the rejection does not discard the rollover.
func (l *Ledger) CheckAndConsume(ctx context.Context, userID string, entry Entry) (Result, error) {
	var res Result
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, userID); err != nil {
			return err
		}

		var user store.UserModel
		err := tx.Where("id = ?", userID).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		res.UserFound = true

		now := l.now().UTC()
		tier := domain.SubscriptionTier(user.Tier)
		if start, rolled := NextPeriodStart(tier, user.PeriodStart, now); rolled {
			user.QueriesUsed = 0
			user.PeriodStart = start
			if err := tx.Model(&store.UserModel{}).Where("id = ?", userID).
				Updates(map[string]any{"queries_used": 0, "period_start": start, "updated_at": now}).Error; err != nil {
				return fmt.Errorf("reset period: %w", err)
			}
		}

		res.Limit = Allowance(tier)
		if user.QueriesUsed >= res.Limit {
			res.QuotaExceeded = true
			res.Used = user.QueriesUsed
			return nil
		}

		messages, err := json.Marshal(entry.Messages)
		if err != nil {
			return fmt.Errorf("encode messages: %w", err)
		}
		log := store.ConversationModel{
			ID:             util.NewID(),
			UserID:         userID,
			ConversationID: entry.ConversationID,
			Messages:       messages,
			TokensUsed:     entry.TokensUsed,
			CreatedAt:      now,
		}
		if err := tx.Create(&log).Error; err != nil {
			return fmt.Errorf("log conversation: %w", err)
		}
		if err := tx.Model(&store.UserModel{}).Where("id = ?", userID).
			Updates(map[string]any{"queries_used": user.QueriesUsed + 1, "updated_at": now}).Error; err != nil {
			return fmt.Errorf("consume allowance: %w", err)
		}

		res.Accepted = true
		res.Used = user.QueriesUsed + 1
		res.LogID = log.ID
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("quota transaction: %w", err)
	}
	return res, nil
}

// ChangeTier moves a user onto a new tier, zeroing the counter and
// anchoring a fresh period. It runs under the same per-user lock as
// CheckAndConsume, so an in-flight consuming call cannot interleave
// with the reset. Reports found=false when the user row is missing.
func (l *Ledger) ChangeTier(ctx context.Context, userID string, tier domain.SubscriptionTier) (bool, error) {
	found := false
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, userID); err != nil {
			return err
		}
		var user store.UserModel
		err := tx.Where("id = ?", userID).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		found = true

		now := l.now().UTC()
		return tx.Model(&store.UserModel{}).Where("id = ?", userID).
			Updates(map[string]any{
				"subscription_tier": string(tier),
				"queries_used":      0,
				"period_start":      InitialPeriodStart(tier, now),
				"updated_at":        now,
			}).Error
	})
	if err != nil {
		return false, fmt.Errorf("tier change transaction: %w", err)
	}
	return found, nil
}

// Peek reports current usage without consuming allowance or persisting
// a rollover. A lapsed period is reported as reset, so the figure can be
// ahead of the stored counter until the next consuming call commits it.
func (l *Ledger) Peek(ctx context.Context, userID string) (Result, error) {
	var user store.UserModel
	err := l.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("load user: %w", err)
	}

	tier := domain.SubscriptionTier(user.Tier)
	res := Result{
		UserFound: true,
		Used:      user.QueriesUsed,
		Limit:     Allowance(tier),
	}
	if _, rolled := NextPeriodStart(tier, user.PeriodStart, l.now().UTC()); rolled {
		res.Used = 0
	}
	return res, nil
}

// lockUser takes a transaction-scoped advisory lock keyed on the user
// id, so writes for one user serialize without blocking other users.
// The lock releases automatically at commit or rollback. Non-Postgres
// dialects (the sqlite test database) skip it and rely on the driver's
// single-writer behavior.
func lockUser(tx *gorm.DB, userID string) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	if err := tx.Exec("SET LOCAL lock_timeout = '10s'").Error; err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}
	if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", userLockKey(userID)).Error; err != nil {
		return fmt.Errorf("acquire user lock: %w", err)
	}
	return nil
}

func userLockKey(userID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(userID))
	return int64(h.Sum64())
}
