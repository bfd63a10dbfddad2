package domain

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusDisabled UserStatus = "disabled"
)

// SubscriptionTier determines the periodic AI-chat allowance.
type SubscriptionTier string

const (
	TierGuest   SubscriptionTier = "guest"
	TierFree    SubscriptionTier = "free"
	TierBasic   SubscriptionTier = "basic"
	TierPremium SubscriptionTier = "premium"
	TierAdmin   SubscriptionTier = "admin"
)

type User struct {
	ID           string           `json:"id"`
	Email        string           `json:"email,omitempty"`
	PasswordHash string           `json:"-"`
	Role         UserRole         `json:"role"`
	Status       UserStatus       `json:"status"`
	Tier         SubscriptionTier `json:"subscriptionTier"`
	QueriesUsed  int              `json:"queriesUsed"`
	PeriodStart  time.Time        `json:"periodStart"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// IsGuest reports whether the user was created through a guest session.
func (u User) IsGuest() bool { return u.Tier == TierGuest }

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is one accepted AI exchange, immutable once written.
type Conversation struct {
	ID             string        `json:"id"`
	UserID         string        `json:"userId"`
	ConversationID string        `json:"conversationId"`
	Messages       []ChatMessage `json:"messages"`
	TokensUsed     int           `json:"tokensUsed"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// Usage is the display-only view of quota state.
type Usage struct {
	Used  int `json:"used"`
	Limit int `json:"limit"`
}

type Topic struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Summary   string    `json:"summary"`
	Position  int       `json:"position"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Section struct {
	ID            string    `json:"id"`
	TopicID       string    `json:"topicId"`
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	Position      int       `json:"position"`
	AttachmentKey string    `json:"-"`
	AttachmentURL string    `json:"attachmentUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Review struct {
	ID        string    `json:"id"`
	TopicID   string    `json:"topicId"`
	UserID    string    `json:"userId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}
