package router

import (
	"net/http"

	"live_commerce/internal/config"
	"live_commerce/internal/fb"
	"live_commerce/internal/ingest"
	"live_commerce/internal/inventory"
	"live_commerce/internal/middleware"
	"live_commerce/internal/reservation"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps 路由层依赖，全部从外部注入（不在本包 new）。
type Deps struct {
	DB       *gorm.DB
	RDB      *rd.Client
	Ledger   *inventory.Ledger
	Engine   *reservation.Engine
	Ingest   *ingest.Service
	FBClient *fb.Client
	Cfg      config.AppConfig
}

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})
	r.GET("/db/ping", dbPing(d.DB))
	r.GET("/redis/ping", redisPing(d.RDB))

	// Products
	r.GET("/api/products", listProducts(d.DB))
	r.POST("/api/products", createProduct(d.DB))
	r.PATCH("/api/products/:id", patchProduct(d.DB, d.Ledger))
	r.DELETE("/api/products/:id", deleteProduct(d.DB))

	// Live sessions / 采集回路
	r.GET("/api/live_sessions", listLiveSessions(d.DB))
	r.POST("/api/live_sessions", createLiveSession(d.DB))
	r.POST("/api/live_sessions/:id/start", startIngest(d.Ingest))
	r.POST("/api/live_sessions/:id/stop", stopIngest(d.Ingest))
	r.POST("/api/live_sessions/:id/backfill", backfillIngest(d.Ingest))
	r.GET("/api/live_sessions/:id/queue", sessionQueue(d.DB))
	r.GET("/api/live_sessions/:id/reservations", sessionReservations(d.DB))

	// 管理端：确认/取消（限流防连点）
	limited := middleware.RedisRateLimit(d.RDB, d.Cfg.AdminRateLimit, d.Cfg.AdminRateWindow)
	r.POST("/api/admin/reservations/:id/confirm", limited, confirmReservation(d.Engine))
	r.POST("/api/admin/reservations/:id/cancel", limited, cancelReservation(d.Engine))

	// Graph API 直通与自动开播
	r.GET("/api/fb/whoami", fbWhoAmI(d.FBClient))
	r.GET("/api/fb/page_info", fbPageInfo(d.FBClient))
	r.GET("/api/fb/videos", fbPageVideos(d.FBClient))
	r.GET("/api/fb/live_current", fbLiveCurrent(d.FBClient))
	r.POST("/api/fb/auto_start", fbAutoStart(d.Ingest))
}

func dbPing(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "ok"})
	}
}

func redisPing(rdb *rd.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "ok"})
	}
}
