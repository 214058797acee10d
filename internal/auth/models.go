package auth

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// User is the identity record owned by the provider.
type User struct {
	ID           string            `gorm:"primaryKey;type:varchar(26)" json:"id"`
	Email        string            `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string            `gorm:"type:varchar(255);not null" json:"-"`
	Metadata     datatypes.JSONMap `json:"user_metadata"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) metaString(key string) string {
	if u.Metadata == nil {
		return ""
	}
	s, _ := u.Metadata[key].(string)
	return strings.TrimSpace(s)
}

// Username is the metadata username, else the local part of the email.
func (u *User) Username() string {
	if name := u.metaString("username"); name != "" {
		return name
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

func (u *User) AvatarURL() string {
	return u.metaString("avatar_url")
}

// Session is an authenticated identity plus its bearer credential.
type Session struct {
	AccessToken string
	ExpiresAt   time.Time
	User        User
}

type EventKind string

const (
	SignedIn       EventKind = "SIGNED_IN"
	SignedOut      EventKind = "SIGNED_OUT"
	TokenRefreshed EventKind = "TOKEN_REFRESHED"
	UserUpdated    EventKind = "USER_UPDATED"
)

// Event is a session change. Session is nil for SignedOut.
type Event struct {
	Kind    EventKind
	Session *Session
}
