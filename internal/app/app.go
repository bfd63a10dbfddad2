// Package app implements the application services behind the HTTP API:
// account lifecycle, quota-metered AI chat, and learning content.
package app

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"tutorly/internal/util"
	"tutorly/pkg/ai"
	"tutorly/pkg/auth"
	"tutorly/pkg/domain"
	"tutorly/pkg/quota"
	"tutorly/pkg/storage"
	"tutorly/pkg/store"
)

type Config struct {
	Store           store.Store
	Ledger          *quota.Ledger
	Sessions        store.SessionStore
	Guests          store.SessionStore
	Generator       ai.ChatGenerator
	Objects         storage.ObjectStore
	SessionTTL      time.Duration
	GuestSessionTTL time.Duration
	SystemPrompt    string
	HistoryLimit    int
	PresignTTL      time.Duration
}

type App struct {
	store    store.Store
	ledger   *quota.Ledger
	sessions store.SessionStore
	guests   store.SessionStore
	ai       ai.ChatGenerator
	objects  storage.ObjectStore
	cfg      Config
}

func New(cfg Config) *App {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.GuestSessionTTL <= 0 {
		cfg.GuestSessionTTL = 12 * time.Hour
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 15 * time.Minute
	}
	return &App{
		store:    cfg.Store,
		ledger:   cfg.Ledger,
		sessions: cfg.Sessions,
		guests:   cfg.Guests,
		ai:       cfg.Generator,
		objects:  cfg.Objects,
		cfg:      cfg,
	}
}

type Session struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// SignUp registers a new account. The very first account becomes an
// admin so a fresh deployment has someone who can manage content.
func (a *App) SignUp(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return Session{}, fmt.Errorf("%w: malformed email", ErrValidation)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return Session{}, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	exists, err := a.store.HasUserEmail(ctx, email)
	if err != nil {
		return Session{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return Session{}, ErrEmailExists
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	count, err := a.store.UserCount(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("count users: %w", err)
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Status:       domain.StatusActive,
		Tier:         domain.TierFree,
		PeriodStart:  quota.InitialPeriodStart(domain.TierFree, now),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if count == 0 {
		user.Role = domain.RoleAdmin
		user.Tier = domain.TierAdmin
		user.PeriodStart = quota.InitialPeriodStart(domain.TierAdmin, now)
	}
	if err := a.store.SaveUser(ctx, user); err != nil {
		return Session{}, fmt.Errorf("save user: %w", err)
	}

	token, err := a.sessions.NewSession(ctx, user.ID, a.cfg.SessionTTL)
	if err != nil {
		return Session{}, fmt.Errorf("issue session: %w", err)
	}
	return Session{Token: token, User: user}, nil
}

func (a *App) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, ok, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return Session{}, ErrInvalidCredentials
	}
	if user.Status == domain.StatusDisabled {
		return Session{}, ErrUserDisabled
	}

	token, err := a.sessions.NewSession(ctx, user.ID, a.cfg.SessionTTL)
	if err != nil {
		return Session{}, fmt.Errorf("issue session: %w", err)
	}
	return Session{Token: token, User: user}, nil
}

// StartGuestSession creates a throwaway account with the guest tier and
// a redis-backed token that lapses with the session TTL.
func (a *App) StartGuestSession(ctx context.Context) (Session, error) {
	now := time.Now().UTC()
	user := domain.User{
		ID:          util.NewID(),
		Role:        domain.RoleUser,
		Status:      domain.StatusActive,
		Tier:        domain.TierGuest,
		PeriodStart: quota.InitialPeriodStart(domain.TierGuest, now),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.SaveUser(ctx, user); err != nil {
		return Session{}, fmt.Errorf("save guest user: %w", err)
	}
	token, err := a.guests.NewSession(ctx, user.ID, a.cfg.GuestSessionTTL)
	if err != nil {
		return Session{}, fmt.Errorf("issue guest session: %w", err)
	}
	return Session{Token: token, User: user}, nil
}

// UserFromToken resolves a bearer token against signed-in sessions
// first, then guest sessions. Disabled accounts do not authenticate.
func (a *App) UserFromToken(ctx context.Context, token string) (domain.User, bool, error) {
	userID, ok, err := a.sessions.GetUserIDByToken(ctx, token)
	if err != nil {
		return domain.User{}, false, err
	}
	if !ok {
		userID, ok, err = a.guests.GetUserIDByToken(ctx, token)
		if err != nil || !ok {
			return domain.User{}, false, err
		}
	}
	user, found, err := a.store.GetUserByID(ctx, userID)
	if err != nil || !found {
		return domain.User{}, false, err
	}
	if user.Status == domain.StatusDisabled {
		return domain.User{}, false, nil
	}
	return user, true, nil
}
