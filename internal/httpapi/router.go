package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/netaai/neta-chat/internal/common"
	"github.com/netaai/neta-chat/internal/httpapi/handlers"
	"github.com/netaai/neta-chat/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:   []string{middleware.RequestIDHeader},
		MaxAge:          12 * time.Hour,
	}))

	r.GET("/ping", h.Ping)
	r.GET("/media/*key", h.ServeMedia)

	fn := r.Group("/functions/v1")
	fn.Use(middleware.AuthRequired(h.Cfg.JWTSecret))
	fn.POST("/chat-completion", h.ChatCompletion)
	fn.POST("/generate-image", h.GenerateImage)
	fn.GET("/activity", h.RecentActivity)
	return r
}
