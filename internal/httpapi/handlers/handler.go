package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/netaai/neta-chat/internal/activity"
	"github.com/netaai/neta-chat/internal/ai"
	"github.com/netaai/neta-chat/internal/common"
	"github.com/netaai/neta-chat/internal/config"
	"gorm.io/gorm"
)

// MediaStore keeps generated images. redisstore.Store implements it.
type MediaStore interface {
	PutMedia(ctx context.Context, key, contentType string, data []byte, ttl time.Duration) error
	GetMedia(ctx context.Context, key string) (string, []byte, error)
}

type ActivityLog interface {
	Recent(ctx context.Context, userID string, limit int) ([]activity.Entry, error)
}

type Handler struct {
	DB        *gorm.DB
	Cfg       config.Config
	Providers *ai.Registry
	Media     MediaStore
	// Activity is nil when the activity worker isn't deployed.
	Activity ActivityLog

	now func() time.Time
}

func NewHandler(db *gorm.DB, cfg config.Config, providers *ai.Registry, media MediaStore, act ActivityLog) *Handler {
	return &Handler{
		DB:        db,
		Cfg:       cfg,
		Providers: providers,
		Media:     media,
		Activity:  act,
		now:       time.Now,
	}
}

func (h *Handler) provider(ctx context.Context) (ai.Provider, error) {
	return h.Providers.Get(ctx, h.Cfg.AIProvider, "")
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}
