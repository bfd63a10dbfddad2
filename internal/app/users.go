package app

import (
	"context"
	"fmt"

	"tutorly/pkg/domain"
)

func (a *App) ListUsers(ctx context.Context) ([]domain.User, error) {
	return a.store.ListUsers(ctx)
}

type UserUpdate struct {
	Role   *domain.UserRole         `json:"role,omitempty"`
	Status *domain.UserStatus       `json:"status,omitempty"`
	Tier   *domain.SubscriptionTier `json:"subscriptionTier,omitempty"`
}

// AdminUpdateUser changes a user's role, status or tier. Admins cannot
// demote or disable themselves, so the deployment always keeps at least
// one working admin. Quota counters are never written here: a tier
// change goes through the ledger under the per-user lock (zeroing the
// counter and starting a fresh period), and role/status updates touch
// only those columns. Chats committed concurrently are never erased.
func (a *App) AdminUpdateUser(ctx context.Context, actor domain.User, userID string, update UserUpdate) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrNotFound
	}

	role, status := user.Role, user.Status
	if update.Role != nil {
		if *update.Role != domain.RoleUser && *update.Role != domain.RoleAdmin {
			return domain.User{}, fmt.Errorf("%w: unknown role %q", ErrValidation, *update.Role)
		}
		if actor.ID == userID && *update.Role != domain.RoleAdmin {
			return domain.User{}, fmt.Errorf("%w: cannot demote yourself", ErrForbidden)
		}
		role = *update.Role
	}
	if update.Status != nil {
		if *update.Status != domain.StatusActive && *update.Status != domain.StatusDisabled {
			return domain.User{}, fmt.Errorf("%w: unknown status %q", ErrValidation, *update.Status)
		}
		if actor.ID == userID && *update.Status == domain.StatusDisabled {
			return domain.User{}, fmt.Errorf("%w: cannot disable yourself", ErrForbidden)
		}
		status = *update.Status
	}
	if update.Tier != nil && *update.Tier != user.Tier {
		switch *update.Tier {
		case domain.TierGuest, domain.TierFree, domain.TierBasic, domain.TierPremium, domain.TierAdmin:
		default:
			return domain.User{}, fmt.Errorf("%w: unknown tier %q", ErrValidation, *update.Tier)
		}
		found, err := a.ledger.ChangeTier(ctx, userID, *update.Tier)
		if err != nil {
			return domain.User{}, fmt.Errorf("change tier: %w", err)
		}
		if !found {
			return domain.User{}, ErrNotFound
		}
	}
	if update.Role != nil || update.Status != nil {
		if err := a.store.UpdateUserAccess(ctx, userID, role, status); err != nil {
			return domain.User{}, fmt.Errorf("update access: %w", err)
		}
	}

	updated, ok, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("reload user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return updated, nil
}

func (a *App) AdminDeleteUser(ctx context.Context, actor domain.User, userID string) error {
	if actor.ID == userID {
		return fmt.Errorf("%w: cannot delete yourself", ErrForbidden)
	}
	_, ok, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return a.store.DeleteUser(ctx, userID)
}
