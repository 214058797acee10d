package chat

import (
	"context"
	"time"
)

type ActivityType string

const (
	ActivityMessageCreated ActivityType = "message_created"
	ActivityChatDeleted    ActivityType = "chat_deleted"
)

// Activity is a fire-and-forget record of something the user did.
type Activity struct {
	Type      ActivityType `json:"type"`
	UserID    string       `json:"user_id"`
	ChatID    string       `json:"chat_id"`
	MessageID string       `json:"message_id,omitempty"`
	Role      string       `json:"role,omitempty"`
	At        time.Time    `json:"at"`
}

type ActivityPublisher interface {
	Publish(ctx context.Context, a Activity) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Activity) error { return nil }
