package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/netaai/neta-chat/internal/auth"
	"github.com/netaai/neta-chat/internal/common"
)

const UserIDKey = "user_id"

// AuthRequired accepts "Authorization: Bearer <jwt>" and stores the subject
// under UserIDKey.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(h, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			common.FunctionError(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		claims, err := auth.ParseToken(token, secret)
		if err != nil {
			common.FunctionError(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		c.Set(UserIDKey, claims.Subject)
		c.Next()
	}
}

func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
