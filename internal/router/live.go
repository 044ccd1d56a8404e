package router

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"live_commerce/internal/ingest"
	"live_commerce/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// listLiveSessions 列出直播场次（新的在前）。
func listLiveSessions(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var list []model.LiveSession
		if err := db.Order("id DESC").Find(&list).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

// createLiveSession 手工登记一场直播。
func createLiveSession(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			PageID  string `json:"page_id" binding:"required"`
			VideoID string `json:"video_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		s := &model.LiveSession{
			PageID:  strings.TrimSpace(req.PageID),
			VideoID: strings.TrimSpace(req.VideoID),
			Status:  model.LiveSessionLive,
		}
		if err := db.Create(s).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"code": 0, "data": s})
	}
}

// startIngest 启动该场次的评论采集（幂等）。
func startIngest(svc *ingest.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseUintParam(c, "id")
		if err != nil {
			return
		}
		out, err := svc.Start(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, ingest.ErrSessionNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "直播场次不存在"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": out})
	}
}

// stopIngest 停止采集（幂等，没在跑就报 not running）。
func stopIngest(svc *ingest.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseUintParam(c, "id")
		if err != nil {
			return
		}
		stopped := svc.Stop(id)
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"stopped": stopped, "running": false}})
	}
}

// backfillIngest 一次性回拉历史评论。?minutes= 默认 120，上限 1440。
func backfillIngest(svc *ingest.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseUintParam(c, "id")
		if err != nil {
			return
		}
		minutes := 120
		if raw := c.Query("minutes"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 1 || v > 1440 {
				c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "minutes 取值 1~1440"})
				return
			}
			minutes = v
		}
		out, err := svc.BackfillOnce(c.Request.Context(), id, minutes)
		if err != nil {
			if errors.Is(err, ingest.ErrSessionNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "直播场次不存在"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": out})
	}
}

// sessionQueue 按商品汇总 reserved 数量 + 最近的排队记录。
func sessionQueue(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseUintParam(c, "id")
		if err != nil {
			return
		}

		type summaryRow struct {
			ProductID     uint   `json:"product_id"`
			SKU           string `json:"sku"`
			Name          string `json:"name"`
			ReservedCount int64  `json:"reserved_count"`
		}
		var summary []summaryRow
		err2 := db.Model(&model.Reservation{}).
			Select("reservations.product_id, products.sku, products.name, "+
				"SUM(CASE WHEN reservations.status = ? THEN 1 ELSE 0 END) AS reserved_count",
				model.ReservationReserved).
			Joins("JOIN products ON products.id = reservations.product_id").
			Where("reservations.live_session_id = ?", id).
			Group("reservations.product_id, products.sku, products.name").
			Order("products.name").
			Scan(&summary).Error
		if err2 != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err2.Error()})
			return
		}

		var recent []model.Reservation
		if err := db.Where("live_session_id = ?", id).
			Order("id DESC").Limit(200).Find(&recent).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"summary": summary, "queue": recent}})
	}
}

// sessionReservations 场次内预订历史。
// ?status=all|reserved|confirmed|canceled|expired  ?q=关键词  ?limit=1~500
func sessionReservations(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseUintParam(c, "id")
		if err != nil {
			return
		}

		status := strings.ToLower(c.DefaultQuery("status", "all"))
		limit := 200
		if raw := c.Query("limit"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 1 || v > 500 {
				c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "limit 取值 1~500"})
				return
			}
			limit = v
		}

		type historyRow struct {
			model.Reservation
			SKU         string `json:"sku"`
			ProductName string `json:"product_name"`
		}

		q := db.Model(&model.Reservation{}).
			Select("reservations.*, products.sku, products.name AS product_name").
			Joins("JOIN products ON products.id = reservations.product_id").
			Where("reservations.live_session_id = ?", id)

		switch status {
		case "all":
		case "reserved", "confirmed", "canceled", "expired":
			q = q.Where("reservations.status = ?", status)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "status 无效"})
			return
		}
		if kw := strings.TrimSpace(c.Query("q")); kw != "" {
			like := "%" + strings.ToLower(kw) + "%"
			q = q.Where(
				"lower(products.sku) LIKE ? OR lower(products.name) LIKE ? OR lower(COALESCE(reservations.user_name, '')) LIKE ?",
				like, like, like)
		}

		var rows []historyRow
		if err := q.Order("reservations.id DESC").Limit(limit).Scan(&rows).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": rows})
	}
}
