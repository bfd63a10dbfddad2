package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tutorly/internal/util"
)

const guestKeyPrefix = "tutorly:guest:"

// GuestStore keeps anonymous trial sessions in Redis. A guest token maps
// to a synthetic user id and disappears when its TTL lapses.
type GuestStore struct {
	client *redis.Client
}

func NewGuestStore(addr, password string) (*GuestStore, error) {
	if addr == "" {
		return nil, errors.New("redis address required")
	}
	return &GuestStore{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
	}, nil
}

func (g *GuestStore) NewSession(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	token := util.NewToken()
	if err := g.client.Set(ctx, guestKeyPrefix+token, userID, ttl).Err(); err != nil {
		return "", fmt.Errorf("store guest session: %w", err)
	}
	return token, nil
}

func (g *GuestStore) GetUserIDByToken(ctx context.Context, token string) (string, bool, error) {
	userID, err := g.client.Get(ctx, guestKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("resolve guest session: %w", err)
	}
	return userID, true, nil
}

func (g *GuestStore) Close() error { return g.client.Close() }
