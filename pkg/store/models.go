package store

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"tutorly/pkg/domain"
)

// GORM models used for persistence. Email is a pointer so guest
// accounts, which have none, store NULL instead of colliding on the
// unique index.
type UserModel struct {
	ID           string  `gorm:"primaryKey"`
	Email        *string `gorm:"uniqueIndex"`
	PasswordHash string
	Role         string `gorm:"not null"`
	Status       string
	Tier         string    `gorm:"column:subscription_tier;not null"`
	QueriesUsed  int       `gorm:"not null;default:0"`
	PeriodStart  time.Time `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

type ConversationModel struct {
	ID             string         `gorm:"primaryKey"`
	UserID         string         `gorm:"not null;index:uniq_user_conversation,unique,priority:1"`
	ConversationID string         `gorm:"not null;index:uniq_user_conversation,unique,priority:2"`
	Messages       datatypes.JSON `gorm:"type:jsonb;not null"`
	TokensUsed     int            `gorm:"not null;default:0"`
	CreatedAt      time.Time      `gorm:"not null;index"`
}

func (ConversationModel) TableName() string { return "ai_conversations" }

type TopicModel struct {
	ID        string `gorm:"primaryKey"`
	Title     string `gorm:"not null"`
	Slug      string `gorm:"uniqueIndex;not null"`
	Summary   string
	Position  int       `gorm:"not null;default:0"`
	Published bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (TopicModel) TableName() string { return "topics" }

type SectionModel struct {
	ID            string `gorm:"primaryKey"`
	TopicID       string `gorm:"not null;index"`
	Title         string `gorm:"not null"`
	Body          string `gorm:"type:text"`
	Position      int    `gorm:"not null;default:0"`
	AttachmentKey string
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (SectionModel) TableName() string { return "sections" }

type ReviewModel struct {
	ID        string    `gorm:"primaryKey"`
	TopicID   string    `gorm:"not null;index:uniq_topic_reviewer,unique,priority:1"`
	UserID    string    `gorm:"not null;index:uniq_topic_reviewer,unique,priority:2"`
	Rating    int       `gorm:"not null"`
	Comment   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null"`
}

func (ReviewModel) TableName() string { return "reviews" }

func userToModel(u domain.User) UserModel {
	var email *string
	if u.Email != "" {
		email = &u.Email
	}
	return UserModel{
		ID:           u.ID,
		Email:        email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Status:       string(u.Status),
		Tier:         string(u.Tier),
		QueriesUsed:  u.QueriesUsed,
		PeriodStart:  u.PeriodStart,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	var email string
	if m.Email != nil {
		email = *m.Email
	}
	return domain.User{
		ID:           m.ID,
		Email:        email,
		PasswordHash: m.PasswordHash,
		Role:         domain.UserRole(m.Role),
		Status:       domain.UserStatus(m.Status),
		Tier:         domain.SubscriptionTier(m.Tier),
		QueriesUsed:  m.QueriesUsed,
		PeriodStart:  m.PeriodStart,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func conversationFromModel(m ConversationModel) (domain.Conversation, error) {
	var messages []domain.ChatMessage
	if err := json.Unmarshal(m.Messages, &messages); err != nil {
		return domain.Conversation{}, fmt.Errorf("decode messages for conversation %s: %w", m.ConversationID, err)
	}
	return domain.Conversation{
		ID:             m.ID,
		UserID:         m.UserID,
		ConversationID: m.ConversationID,
		Messages:       messages,
		TokensUsed:     m.TokensUsed,
		CreatedAt:      m.CreatedAt,
	}, nil
}

func topicToModel(t domain.Topic) TopicModel {
	return TopicModel{
		ID:        t.ID,
		Title:     t.Title,
		Slug:      t.Slug,
		Summary:   t.Summary,
		Position:  t.Position,
		Published: t.Published,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func topicFromModel(m TopicModel) domain.Topic {
	return domain.Topic{
		ID:        m.ID,
		Title:     m.Title,
		Slug:      m.Slug,
		Summary:   m.Summary,
		Position:  m.Position,
		Published: m.Published,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func sectionToModel(s domain.Section) SectionModel {
	return SectionModel{
		ID:            s.ID,
		TopicID:       s.TopicID,
		Title:         s.Title,
		Body:          s.Body,
		Position:      s.Position,
		AttachmentKey: s.AttachmentKey,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func sectionFromModel(m SectionModel) domain.Section {
	return domain.Section{
		ID:            m.ID,
		TopicID:       m.TopicID,
		Title:         m.Title,
		Body:          m.Body,
		Position:      m.Position,
		AttachmentKey: m.AttachmentKey,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func reviewToModel(r domain.Review) ReviewModel {
	return ReviewModel{
		ID:        r.ID,
		TopicID:   r.TopicID,
		UserID:    r.UserID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
	}
}

func reviewFromModel(m ReviewModel) domain.Review {
	return domain.Review{
		ID:        m.ID,
		TopicID:   m.TopicID,
		UserID:    m.UserID,
		Rating:    m.Rating,
		Comment:   m.Comment,
		CreatedAt: m.CreatedAt,
	}
}
