package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/netaai/neta-chat/internal/common"
	"github.com/netaai/neta-chat/internal/httpapi/middleware"
	"github.com/netaai/neta-chat/internal/observability"
	"github.com/netaai/neta-chat/internal/store/redisstore"
)

// ServeMedia serves a stored generated image. Keys are unguessable enough to be
// public, like the bucket they replace.
func (h *Handler) ServeMedia(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" || h.Media == nil {
		common.Fail(c, http.StatusNotFound, 40401, "media not found")
		return
	}

	contentType, data, err := h.Media.GetMedia(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, redisstore.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "media not found")
			return
		}
		observability.LoggerFromContext(c.Request.Context()).Error("media read failed", "key", key, "err", err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Data(http.StatusOK, contentType, data)
}

// RecentActivity lists the caller's latest chat activity.
func (h *Handler) RecentActivity(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	if h.Activity == nil {
		common.Fail(c, http.StatusNotFound, 40402, "activity log disabled")
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.Activity.Recent(c.Request.Context(), uid, limit)
	if err != nil {
		observability.LoggerFromContext(c.Request.Context()).Error("activity read failed", "user_id", uid, "err", err)
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list activity")
		return
	}
	common.OK(c, gin.H{"entries": entries})
}
