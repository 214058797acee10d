package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/netaai/neta-chat/internal/chat"
	"github.com/netaai/neta-chat/internal/common"
	"gorm.io/gorm"
)

// ErrBadEvent marks a delivery that can never be stored.
var ErrBadEvent = errors.New("bad activity event")

// Entry is one consumed chat activity.
type Entry struct {
	ID        string    `gorm:"primaryKey;type:varchar(26)" json:"id"`
	UserID    string    `gorm:"type:varchar(26);index:idx_activity_user_at;not null" json:"user_id"`
	Type      string    `gorm:"type:varchar(32);not null" json:"type"`
	ChatID    string    `gorm:"type:varchar(26);not null" json:"chat_id"`
	MessageID *string   `gorm:"type:varchar(26)" json:"message_id,omitempty"`
	Role      *string   `gorm:"type:varchar(16)" json:"role,omitempty"`
	At        time.Time `gorm:"index:idx_activity_user_at" json:"at"`
}

func (Entry) TableName() string { return "activity_log" }

type Log struct {
	db *gorm.DB
}

func NewLog(db *gorm.DB) *Log {
	return &Log{db: db}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Record decodes one queue message and stores it.
func (l *Log) Record(ctx context.Context, body []byte) (*Entry, error) {
	var a chat.Activity
	if err := json.Unmarshal(body, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEvent, err)
	}
	if a.Type == "" || a.UserID == "" || a.ChatID == "" {
		return nil, fmt.Errorf("%w: missing type, user or chat", ErrBadEvent)
	}
	if a.At.IsZero() {
		a.At = time.Now().UTC()
	}

	e := Entry{
		ID:        common.NewULID(),
		UserID:    a.UserID,
		Type:      string(a.Type),
		ChatID:    a.ChatID,
		MessageID: optional(a.MessageID),
		Role:      optional(a.Role),
		At:        a.At.UTC(),
	}
	if err := l.db.WithContext(ctx).Create(&e).Error; err != nil {
		return nil, fmt.Errorf("failed to record activity: %w", err)
	}
	return &e, nil
}

// Recent returns a user's newest entries first.
func (l *Log) Recent(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []Entry
	err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("at DESC").Order("id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	return out, nil
}
