package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/netaai/neta-chat/internal/common"
	"github.com/netaai/neta-chat/internal/observability"
)

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				observability.LoggerFromContext(c.Request.Context()).Error("panic recovered",
					"panic", r, "path", c.Request.URL.Path)
				if c.Writer.Written() {
					c.Abort()
					return
				}
				common.Fail(c, http.StatusInternalServerError, 50000, "internal error")
				c.Abort()
			}
		}()
		c.Next()
	}
}
