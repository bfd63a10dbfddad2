package ai

import (
	"context"

	"tutorly/pkg/domain"
)

// Reply is a model response plus the token cost reported by the provider.
type Reply struct {
	Content    string
	TokensUsed int
}

// ChatGenerator produces an assistant reply for a message sequence.
type ChatGenerator interface {
	Chat(ctx context.Context, systemPrompt string, messages []domain.ChatMessage) (Reply, error)
}
