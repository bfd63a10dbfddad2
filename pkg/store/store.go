// Package store holds the persistence layer: relational storage backed by
// GORM and token-backed session stores.
package store

import (
	"context"
	"time"

	"tutorly/pkg/domain"
)

// Store is the relational persistence interface used by the application
// layer. Lookup methods return found=false (not an error) when the row
// does not exist.
type Store interface {
	SaveUser(ctx context.Context, u domain.User) error
	UpdateUserAccess(ctx context.Context, id string, role domain.UserRole, status domain.UserStatus) error
	HasUserEmail(ctx context.Context, email string) (bool, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error)
	GetUserByID(ctx context.Context, id string) (domain.User, bool, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UserCount(ctx context.Context) (int64, error)
	DeleteUser(ctx context.Context, id string) error

	ListConversationsByUser(ctx context.Context, userID string, limit int) ([]domain.Conversation, error)

	SaveTopic(ctx context.Context, t domain.Topic) error
	GetTopicByID(ctx context.Context, id string) (domain.Topic, bool, error)
	GetTopicBySlug(ctx context.Context, slug string) (domain.Topic, bool, error)
	ListTopics(ctx context.Context, publishedOnly bool) ([]domain.Topic, error)
	DeleteTopic(ctx context.Context, id string) error

	SaveSection(ctx context.Context, s domain.Section) error
	GetSectionByID(ctx context.Context, id string) (domain.Section, bool, error)
	ListSectionsByTopic(ctx context.Context, topicID string) ([]domain.Section, error)
	DeleteSection(ctx context.Context, id string) error

	SaveReview(ctx context.Context, r domain.Review) error
	ListReviewsByTopic(ctx context.Context, topicID string) ([]domain.Review, error)
}

// SessionStore issues and resolves bearer tokens for signed-in users.
type SessionStore interface {
	NewSession(ctx context.Context, userID string, ttl time.Duration) (string, error)
	GetUserIDByToken(ctx context.Context, token string) (string, bool, error)
}
