package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/netaai/neta-chat/internal/common"
	"gorm.io/gorm"
)

// UserSource tells the repo who is signed in. Every query is scoped to that user.
type UserSource interface {
	UserID() (string, bool)
}

// FixedUser scopes a Repo to one known user id (server-side requests).
type FixedUser string

func (u FixedUser) UserID() (string, bool) { return string(u), u != "" }

// Repo is the stateless request layer over the chats and messages tables.
// Each method is one round trip; nothing is retried.
type Repo struct {
	db    *gorm.DB
	users UserSource
}

func NewRepo(db *gorm.DB, users UserSource) *Repo {
	return &Repo{db: db, users: users}
}

// WithUser returns a copy of the repo scoped to another user source.
func (r *Repo) WithUser(users UserSource) *Repo {
	return &Repo{db: r.db, users: users}
}

func (r *Repo) currentUser() (string, error) {
	if r.users == nil {
		return "", ErrUnauthenticated
	}
	uid, ok := r.users.UserID()
	if !ok || uid == "" {
		return "", ErrUnauthenticated
	}
	return uid, nil
}

// Timestamps are kept at millisecond precision so they survive MySQL DATETIME(3).
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// advance returns a timestamp strictly after prev.
func advance(prev time.Time) time.Time {
	t := now()
	if !t.After(prev) {
		t = prev.Add(time.Millisecond)
	}
	return t
}

func translate(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrNotFound
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func (r *Repo) ListChats(ctx context.Context) ([]Chat, error) {
	uid, err := r.currentUser()
	if err != nil {
		return nil, translate("list chats", err)
	}
	var chats []Chat
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", uid).
		Order("updated_at DESC").
		Find(&chats).Error; err != nil {
		return nil, translate("list chats", err)
	}
	return chats, nil
}

func (r *Repo) GetChat(ctx context.Context, id string) (*Chat, error) {
	uid, err := r.currentUser()
	if err != nil {
		return nil, translate("get chat", err)
	}
	var c Chat
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, uid).
		First(&c).Error; err != nil {
		return nil, translate("get chat", err)
	}
	return &c, nil
}

// CreateChat inserts a chat for the current user. A blank title becomes "New Chat".
func (r *Repo) CreateChat(ctx context.Context, title string) (*Chat, error) {
	uid, err := r.currentUser()
	if err != nil {
		return nil, translate("create chat", err)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	ts := now()
	c := &Chat{
		ID:        common.NewULID(),
		UserID:    uid,
		Title:     title,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, translate("create chat", err)
	}
	return c, nil
}

// UpdateChat applies a partial update and returns the stored record.
func (r *Repo) UpdateChat(ctx context.Context, id string, upd ChatUpdate) (*Chat, error) {
	uid, err := r.currentUser()
	if err != nil {
		return nil, translate("update chat", err)
	}

	var out Chat
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", id, uid).First(&out).Error; err != nil {
			return err
		}

		fields := map[string]any{"updated_at": advance(out.UpdatedAt)}
		if upd.Title != nil {
			title := strings.TrimSpace(*upd.Title)
			if title == "" {
				return ErrEmptyTitle
			}
			fields["title"] = title
		}
		if upd.Pinned != nil {
			fields["pinned"] = *upd.Pinned
		}

		if err := tx.Model(&Chat{}).Where("id = ?", id).Updates(fields).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&out).Error
	})
	if err != nil {
		return nil, translate("update chat", err)
	}
	return &out, nil
}

// DeleteChat removes a chat and all of its messages. Deleting a chat that
// does not exist (or belongs to someone else) is a no-op.
func (r *Repo) DeleteChat(ctx context.Context, id string) error {
	uid, err := r.currentUser()
	if err != nil {
		return translate("delete chat", err)
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&Chat{}).Where("id = ? AND user_id = ?", id, uid).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if err := tx.Where("chat_id = ?", id).Delete(&Message{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND user_id = ?", id, uid).Delete(&Chat{}).Error
	})
	if err != nil {
		return translate("delete chat", err)
	}
	return nil
}

// likeEscaper escapes LIKE wildcards with '!', which both sqlite and MySQL accept
// as an ESCAPE character.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// SearchChats matches titles by case-insensitive substring. A query that is
// empty after trimming lists every chat.
func (r *Repo) SearchChats(ctx context.Context, query string) ([]Chat, error) {
	if strings.TrimSpace(query) == "" {
		return r.ListChats(ctx)
	}
	uid, err := r.currentUser()
	if err != nil {
		return nil, translate("search chats", err)
	}
	pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"

	var chats []Chat
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", uid).
		Where("LOWER(title) LIKE ? ESCAPE '!'", pattern).
		Order("updated_at DESC").
		Find(&chats).Error; err != nil {
		return nil, translate("search chats", err)
	}
	return chats, nil
}

const ownedChat = "EXISTS (SELECT 1 FROM chats WHERE chats.id = messages.chat_id AND chats.user_id = ?)"

// ListMessages returns a chat's messages oldest first.
func (r *Repo) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	uid, err := r.currentUser()
	if err != nil {
		return nil, translate("list messages", err)
	}
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Where(ownedChat, uid).
		Order("created_at ASC").
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, translate("list messages", err)
	}
	return msgs, nil
}

// CreateMessage stores a message and advances the chat's updated_at.
func (r *Repo) CreateMessage(ctx context.Context, chatID, role, content, imageURL string) (*Message, error) {
	uid, err := r.currentUser()
	if err != nil {
		return nil, translate("create message", err)
	}
	if role != RoleUser && role != RoleAssistant {
		return nil, translate("create message", ErrInvalidRole)
	}

	m := &Message{
		ID:      common.NewULID(),
		ChatID:  chatID,
		Role:    role,
		Content: content,
	}
	if imageURL != "" {
		m.ImageURL = &imageURL
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c Chat
		if err := tx.Where("id = ? AND user_id = ?", chatID, uid).First(&c).Error; err != nil {
			return err
		}
		ts := advance(c.UpdatedAt)
		m.CreatedAt = ts
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		return tx.Model(&Chat{}).Where("id = ?", chatID).Update("updated_at", ts).Error
	})
	if err != nil {
		return nil, translate("create message", err)
	}
	return m, nil
}

func (r *Repo) DeleteMessage(ctx context.Context, id string) error {
	uid, err := r.currentUser()
	if err != nil {
		return translate("delete message", err)
	}
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Where(ownedChat, uid).
		Delete(&Message{}).Error; err != nil {
		return translate("delete message", err)
	}
	return nil
}
