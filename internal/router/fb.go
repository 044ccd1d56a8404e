package router

import (
	"errors"
	"net/http"
	"strings"

	"live_commerce/internal/fb"
	"live_commerce/internal/ingest"

	"github.com/gin-gonic/gin"
)

// fbWhoAmI 校验 token 对应的主体。
func fbWhoAmI(client *fb.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		me, err := client.WhoAmI(c.Request.Context())
		if err != nil {
			writeFBError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": me})
	}
}

// fbPageInfo 读主页信息。?id= 必填。
func fbPageInfo(client *fb.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.Query("id"))
		if id == "" {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "id 必填"})
			return
		}
		info, err := client.GetPageInfo(c.Request.Context(), id)
		if err != nil {
			writeFBError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": info})
	}
}

// fbPageVideos 列主页视频。?page_id= 为空时用 me，?type=all|uploaded。
func fbPageVideos(client *fb.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		pageID := strings.TrimSpace(c.DefaultQuery("page_id", "me"))
		if pageID == "" {
			pageID = "me"
		}
		videoType := ""
		if strings.EqualFold(c.Query("type"), "uploaded") {
			videoType = "uploaded"
		}
		rows, err := client.FetchPageVideos(c.Request.Context(), pageID, 50, videoType)
		if err != nil {
			writeFBError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": rows})
	}
}

// fbLiveCurrent 查主页当前是否在播。
func fbLiveCurrent(client *fb.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		pageID := strings.TrimSpace(c.DefaultQuery("page_id", "me"))
		if pageID == "" {
			pageID = "me"
		}
		live, err := client.FindLiveVideoOnPage(c.Request.Context(), pageID)
		if err != nil {
			writeFBError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"live": live != nil, "video": live}})
	}
}

// fbAutoStart 找到主页正在播的直播，建场次并拉起采集。
func fbAutoStart(svc *ingest.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			PageID string `json:"page_id"`
		}
		_ = c.ShouldBindJSON(&req)
		pageID := strings.TrimSpace(req.PageID)
		if pageID == "" {
			pageID = "me"
		}

		out, err := svc.AutoStartByPage(c.Request.Context(), pageID)
		if err != nil {
			if errors.Is(err, ingest.ErrNoLiveVideo) {
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "not_live"})
				return
			}
			writeFBError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": out})
	}
}

// writeFBError 上游错误映射：缺 token 是配置问题给 503，其余 502。
func writeFBError(c *gin.Context, err error) {
	if errors.Is(err, fb.ErrNoAccessToken) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": 503, "msg": err.Error()})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"code": 502, "msg": err.Error()})
}
