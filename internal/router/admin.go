package router

import (
	"errors"
	"net/http"

	"live_commerce/internal/reservation"

	"github.com/gin-gonic/gin"
)

// confirmReservation 确认成交：reserved → confirmed，库存不回补。
func confirmReservation(engine *reservation.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseUintParam(c, "id")
		if err != nil {
			return
		}
		r, err := engine.Confirm(c.Request.Context(), id)
		if err != nil {
			writeReservationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": r})
	}
}

// cancelReservation 取消预订：reserved → canceled，归还 1 件库存。
func cancelReservation(engine *reservation.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseUintParam(c, "id")
		if err != nil {
			return
		}
		var req struct {
			Reason string `json:"reason"`
		}
		// body 可以为空，有就取 reason。
		_ = c.ShouldBindJSON(&req)

		r, err := engine.Cancel(c.Request.Context(), id, req.Reason)
		if err != nil {
			writeReservationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": r})
	}
}

// writeReservationError 统一映射引擎错误：404 / 409（带 reason）/ 500。
func writeReservationError(c *gin.Context, err error) {
	if errors.Is(err, reservation.ErrReservationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "预订不存在"})
		return
	}
	var conflict *reservation.ConflictError
	if errors.As(err, &conflict) {
		c.JSON(http.StatusConflict, gin.H{
			"code":   409,
			"msg":    conflict.Reason,
			"status": conflict.Status,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
}
