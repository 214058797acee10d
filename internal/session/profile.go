package session

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Profile is the public-facing record kept next to each identity.
type Profile struct {
	ID        string    `gorm:"primaryKey;type:varchar(26)" json:"id"`
	Email     string    `gorm:"type:varchar(255)" json:"email"`
	Username  string    `gorm:"type:varchar(255)" json:"username"`
	AvatarURL *string   `gorm:"type:text" json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

func (Profile) TableName() string { return "profiles" }

type ProfileRepo struct {
	db *gorm.DB
}

func NewProfileRepo(db *gorm.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// Ensure creates the profile row for u unless one already exists. Existing
// rows are left untouched.
func (r *ProfileRepo) Ensure(ctx context.Context, u User) error {
	p := Profile{ID: u.ID, Email: u.Email, Username: u.Username}
	if u.Avatar != "" {
		avatar := u.Avatar
		p.AvatarURL = &avatar
	}
	err := r.db.WithContext(ctx).
		Where(Profile{ID: u.ID}).
		Attrs(p).
		FirstOrCreate(&Profile{}).Error
	if err != nil {
		return fmt.Errorf("failed to ensure profile: %w", err)
	}
	return nil
}

func (r *ProfileRepo) Get(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}
