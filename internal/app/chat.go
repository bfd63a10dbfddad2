package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"tutorly/pkg/domain"
	"tutorly/pkg/quota"
)

const maxQuestionLength = 4000

type ChatRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	Question       string `json:"question"`
}

type ChatResponse struct {
	ConversationID string       `json:"conversationId"`
	Answer         string       `json:"answer"`
	TokensUsed     int          `json:"tokensUsed"`
	Usage          domain.Usage `json:"usage"`
}

// Chat answers one tutoring question. The reply is generated first and
// only then charged against the user's allowance; a rejected call
// discards the generated reply and reports ErrQuotaExceeded without
// logging anything.
func (a *App) Chat(ctx context.Context, user domain.User, req ChatRequest) (ChatResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return ChatResponse{}, fmt.Errorf("%w: question required", ErrValidation)
	}
	if len(question) > maxQuestionLength {
		return ChatResponse{}, fmt.Errorf("%w: question too long", ErrValidation)
	}
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	history, err := a.chatHistory(ctx, user.ID)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("load history: %w", err)
	}
	messages := append(history, domain.ChatMessage{Role: "user", Content: question})

	reply, err := a.ai.Chat(ctx, a.cfg.SystemPrompt, messages)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("generate reply: %w", err)
	}

	res, err := a.ledger.CheckAndConsume(ctx, user.ID, quota.Entry{
		ConversationID: conversationID,
		Messages: []domain.ChatMessage{
			{Role: "user", Content: question},
			{Role: "assistant", Content: reply.Content},
		},
		TokensUsed: reply.TokensUsed,
	})
	if err != nil {
		return ChatResponse{}, err
	}
	if !res.UserFound {
		return ChatResponse{}, ErrUserMissing
	}
	if res.QuotaExceeded {
		return ChatResponse{}, ErrQuotaExceeded
	}

	return ChatResponse{
		ConversationID: conversationID,
		Answer:         reply.Content,
		TokensUsed:     reply.TokensUsed,
		Usage:          domain.Usage{Used: res.Used, Limit: res.Limit},
	}, nil
}

// chatHistory flattens the user's latest logged exchanges, oldest
// first, into a bounded context window for the generator.
func (a *App) chatHistory(ctx context.Context, userID string) ([]domain.ChatMessage, error) {
	convs, err := a.store.ListConversationsByUser(ctx, userID, a.cfg.HistoryLimit)
	if err != nil {
		return nil, err
	}
	var history []domain.ChatMessage
	for i := len(convs) - 1; i >= 0; i-- {
		history = append(history, convs[i].Messages...)
	}
	return history, nil
}

// Usage reports quota state without consuming allowance. A lapsed
// period shows as reset even though the stored row is untouched.
func (a *App) Usage(ctx context.Context, user domain.User) (domain.Usage, error) {
	res, err := a.ledger.Peek(ctx, user.ID)
	if err != nil {
		return domain.Usage{}, err
	}
	if !res.UserFound {
		return domain.Usage{}, ErrUserMissing
	}
	return domain.Usage{Used: res.Used, Limit: res.Limit}, nil
}

// Conversations returns the user's logged exchanges, newest first.
func (a *App) Conversations(ctx context.Context, user domain.User, limit int) ([]domain.Conversation, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return a.store.ListConversationsByUser(ctx, user.ID, limit)
}
