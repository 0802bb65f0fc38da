package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"dashEditor/internal/api/middleware"
	"dashEditor/internal/auth"
	"dashEditor/internal/notify"
)

// Dependencies 汇总路由需要的组件。Auth、RateCounter 与 Journal 可以为 nil。
type Dependencies struct {
	Editor         Editor
	Events         notify.Source
	Auth           *auth.AuthService
	RateCounter    redisRateCounter
	Journal        RevisionLister
	Logger         *slog.Logger
	AllowedOrigins []string
}

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	configHandler := NewConfigHandler(deps.Editor, deps.Logger)
	wsHandler := NewWsHandler(deps.Events, deps.Auth, deps.Logger, deps.AllowedOrigins)

	v1 := router.Group("/v1")
	v1.GET("/ws", wsHandler.HandleConnection)

	protected := v1.Group("")
	if deps.Auth != nil {
		authHandler := NewAuthHandler(deps.Auth, deps.RateCounter, deps.Logger)
		v1.POST("/auth/login", authHandler.Login)
		protected.Use(middleware.AuthMiddleware(deps.Auth))
	}

	configGroup := protected.Group("/config")
	{
		configGroup.GET("", configHandler.GetConfig)
		configGroup.PUT("", configHandler.PutConfig)
		configGroup.GET("/raw", configHandler.GetRawText)
		configGroup.PUT("/raw", configHandler.PutRawText)
		configGroup.GET("/exists", configHandler.GetExists)
		configGroup.POST("/flush", configHandler.Flush)
		configGroup.POST("/initial-backup", configHandler.EnsureInitialBackup)
	}

	historyGroup := protected.Group("/history")
	{
		historyGroup.GET("", configHandler.GetHistory)
		historyGroup.POST("/undo", configHandler.Undo)
		historyGroup.POST("/redo", configHandler.Redo)
	}

	if deps.Journal != nil {
		revisionHandler := NewRevisionHandler(deps.Journal)
		protected.GET("/revisions", revisionHandler.ListRevisions)
		protected.GET("/revisions/:id/content", revisionHandler.GetRevisionContent)
	}
}
