package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/omarmohammed271/nutricare-chat/internal/auth"
	"github.com/omarmohammed271/nutricare-chat/internal/config"
	"github.com/omarmohammed271/nutricare-chat/internal/metrics"
	"github.com/omarmohammed271/nutricare-chat/internal/mw"
	"github.com/omarmohammed271/nutricare-chat/internal/service"
	"github.com/omarmohammed271/nutricare-chat/internal/store"
	"github.com/omarmohammed271/nutricare-chat/internal/ws"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。
func SetupRouter(cfg config.Config, db *gorm.DB, hub *ws.Hub) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env))
	r.Use(mw.RateLimit(rate.Every(time.Second/20), 40))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	gateway := store.NewGormGateway(db)
	identity := auth.NewTokenIdentity(db, cfg.JWTSecret)
	h := NewHandler(
		service.NewUserService(db, cfg),
		service.NewRoomService(db, hub),
		service.NewMessageService(db),
	)

	api := r.Group("/api/v1")
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/refresh", h.RefreshToken)

	authed := api.Group("")
	authed.Use(auth.AuthMiddleware(cfg, db))
	authed.POST("/rooms", h.CreateRoom)
	authed.GET("/rooms", h.ListRooms)
	authed.GET("/rooms/:id/messages", h.ListMessages)

	// WebSocket 握手自己做身份解析（token 查询参数），不走 AuthMiddleware。
	r.GET("/ws", ws.Serve(hub, gateway, identity))

	return r
}
