package app

import (
	"context"
	"errors"
	"testing"

	"tutorly/pkg/ai"
	"tutorly/pkg/domain"
)

func TestAdminUpdateUserRoleChangeKeepsUsage(t *testing.T) {
	gen := &stubGenerator{reply: ai.Reply{Content: "ok", TokensUsed: 3}}
	a, s := newChatTestApp(t, gen)
	u := seedChatUser(t, s, domain.TierGuest, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := a.Chat(ctx, u, ChatRequest{Question: "q"}); err != nil {
			t.Fatalf("chat %d: %v", i+1, err)
		}
	}

	admin := domain.User{ID: "admin-1", Role: domain.RoleAdmin}
	role := domain.RoleAdmin
	updated, err := a.AdminUpdateUser(ctx, admin, u.ID, UserUpdate{Role: &role})
	if err != nil {
		t.Fatalf("AdminUpdateUser: %v", err)
	}
	if updated.Role != domain.RoleAdmin {
		t.Fatalf("role not applied: %q", updated.Role)
	}
	if updated.QueriesUsed != 3 {
		t.Fatalf("usage rewritten by access change: got %d, want 3", updated.QueriesUsed)
	}

	if _, err := a.Chat(ctx, u, ChatRequest{Question: "q"}); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("spent allowance reopened: err = %v", err)
	}
}

func TestAdminUpdateUserTierChangeResetsUsage(t *testing.T) {
	gen := &stubGenerator{reply: ai.Reply{Content: "ok", TokensUsed: 3}}
	a, s := newChatTestApp(t, gen)
	u := seedChatUser(t, s, domain.TierGuest, 3)
	ctx := context.Background()

	admin := domain.User{ID: "admin-1", Role: domain.RoleAdmin}
	tier := domain.TierBasic
	updated, err := a.AdminUpdateUser(ctx, admin, u.ID, UserUpdate{Tier: &tier})
	if err != nil {
		t.Fatalf("AdminUpdateUser: %v", err)
	}
	if updated.Tier != domain.TierBasic {
		t.Fatalf("tier not applied: %q", updated.Tier)
	}
	if updated.QueriesUsed != 0 {
		t.Fatalf("counter not reset on tier change: got %d", updated.QueriesUsed)
	}

	if _, err := a.Chat(ctx, u, ChatRequest{Question: "q"}); err != nil {
		t.Fatalf("chat after upgrade: %v", err)
	}
}

func TestAdminUpdateUserSelfGuards(t *testing.T) {
	a, s := newChatTestApp(t, &stubGenerator{})
	u := seedChatUser(t, s, domain.TierGuest, 0)
	ctx := context.Background()

	admin := domain.User{ID: u.ID, Role: domain.RoleAdmin}
	role := domain.RoleUser
	if _, err := a.AdminUpdateUser(ctx, admin, u.ID, UserUpdate{Role: &role}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("self-demote: err = %v", err)
	}
	status := domain.StatusDisabled
	if _, err := a.AdminUpdateUser(ctx, admin, u.ID, UserUpdate{Status: &status}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("self-disable: err = %v", err)
	}
}
