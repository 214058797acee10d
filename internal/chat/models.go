package chat

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	DefaultTitle = "New Chat"
	ImageCaption = "Here is your generated image:"
)

// Chat is a titled conversation owned by one user.
type Chat struct {
	ID        string    `gorm:"primaryKey;type:varchar(26)" json:"id"`
	UserID    string    `gorm:"type:varchar(64);index;not null" json:"user_id"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Pinned    bool      `gorm:"not null;default:false" json:"pinned"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
}

func (Chat) TableName() string { return "chats" }

type Message struct {
	ID        string    `gorm:"primaryKey;type:varchar(26)" json:"id"`
	ChatID    string    `gorm:"type:varchar(26);not null;index:idx_messages_chat_created,priority:1" json:"chat_id"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	ImageURL  *string   `gorm:"type:text" json:"image_url,omitempty"`
	CreatedAt time.Time `gorm:"index:idx_messages_chat_created,priority:2" json:"created_at"`
}

func (Message) TableName() string { return "messages" }

// Image returns the attached image reference or "".
func (m Message) Image() string {
	if m.ImageURL == nil {
		return ""
	}
	return *m.ImageURL
}

// ChatUpdate is a partial update; nil fields are left untouched.
type ChatUpdate struct {
	Title  *string
	Pinned *bool
}
