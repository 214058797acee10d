package ai

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role/content pair of a chat history as sent on the wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is an upstream chat model.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// ImageProvider is an optional interface for upstreams that can render images.
// The returned reference is a data URL (data:image/png;base64,...).
type ImageProvider interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// TokenSource yields the bearer credential of the current session.
type TokenSource interface {
	AccessToken() (string, bool)
}

var ErrNoSession = errors.New("not authenticated")
