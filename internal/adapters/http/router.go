package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/okulov/Relay/internal/adapters/ws"
	"github.com/okulov/Relay/internal/auth"
	"github.com/okulov/Relay/internal/config"
	"github.com/okulov/Relay/internal/history"
)

func SetupRouter(ctx context.Context, cfg *config.Config, authMgr *auth.Manager, hist *history.Store, ctl *ws.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.POST("/login", handleLogin(authMgr))
	r.GET("/chat", AuthMiddleware(authMgr), handleHistory(hist, cfg.HistoryLimit))

	api := r.Group("/api")
	api.GET("/ws/chat", func(c *gin.Context) {
		ctl.HandleChat(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
