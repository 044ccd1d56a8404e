package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"live_commerce/internal/config"
	"live_commerce/internal/fb"
	"live_commerce/internal/ingest"
	"live_commerce/internal/inventory"
	"live_commerce/internal/model"
	"live_commerce/internal/reservation"
	"live_commerce/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testRig struct {
	router *gin.Engine
	db     *gorm.DB
	engine *reservation.Engine
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewTestDB(t)
	rdb, _ := testutil.NewTestRedis(t)
	ledger := inventory.NewLedger(db)
	engine := reservation.NewEngine(db, rdb, ledger, nil, 15*time.Minute)
	fbClient := fb.NewClient("v23.0", "")

	r := gin.New()
	Setup(r, Deps{
		DB:       db,
		RDB:      rdb,
		Ledger:   ledger,
		Engine:   engine,
		Ingest:   ingest.NewService(db, fbClient, engine, ingest.NewRegistry(), false),
		FBClient: fbClient,
		Cfg: config.AppConfig{
			AdminRateLimit:  100,
			AdminRateWindow: time.Minute,
		},
	})
	return &testRig{router: r, db: db, engine: engine}
}

func (rig *testRig) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	rig.router.ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	rig := newTestRig(t)
	w := rig.do(t, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pong")
}

func TestProductCRUD(t *testing.T) {
	rig := newTestRig(t)

	w := rig.do(t, http.MethodPost, "/api/products", gin.H{
		"sku": "SK01", "name": "珍珠奶茶", "price_cents": 6500, "stock_total": 10,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Data model.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	// SKU 入库统一小写。
	assert.Equal(t, "sk01", created.Data.SKU)
	assert.Equal(t, int64(10), created.Data.StockAvailable)

	// 重复 SKU 冲突。
	w = rig.do(t, http.MethodPost, "/api/products", gin.H{
		"sku": "sk01", "name": "另一个", "price_cents": 100, "stock_total": 1,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// 缺字段 400。
	w = rig.do(t, http.MethodPost, "/api/products", gin.H{"sku": "sk02"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 补货走台账，总量与可用量一起涨。
	w = rig.do(t, http.MethodPatch, "/api/products/1", gin.H{"restock": 5})
	require.Equal(t, http.StatusOK, w.Code)
	var patched struct {
		Data model.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &patched))
	assert.Equal(t, int64(15), patched.Data.StockTotal)
	assert.Equal(t, int64(15), patched.Data.StockAvailable)

	w = rig.do(t, http.MethodDelete, "/api/products/1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = rig.do(t, http.MethodDelete, "/api/products/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminConfirmCancel(t *testing.T) {
	rig := newTestRig(t)
	sess := testutil.CreateLiveSession(t, rig.db)
	testutil.CreateProduct(t, rig.db, "sk01", 2)

	out, err := rig.engine.CreateFromComment(context.Background(), reservation.CreateInput{
		LiveSessionID: sess.ID, Message: "sk01", CommentID: "c1",
	})
	require.NoError(t, err)
	require.True(t, out.OK)

	w := rig.do(t, http.MethodPost, "/api/admin/reservations/abc/confirm", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = rig.do(t, http.MethodPost, "/api/admin/reservations/9999/confirm", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = rig.do(t, http.MethodPost, "/api/admin/reservations/1/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// 终态重复操作按冲突上报。
	w = rig.do(t, http.MethodPost, "/api/admin/reservations/1/confirm", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_status")

	// 另起一笔走取消路径。
	out, err = rig.engine.CreateFromComment(context.Background(), reservation.CreateInput{
		LiveSessionID: sess.ID, Message: "sk01", CommentID: "c2",
	})
	require.NoError(t, err)
	w = rig.do(t, http.MethodPost, "/api/admin/reservations/2/cancel", gin.H{"reason": "买家反悔"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "买家反悔")
}

func TestSessionQueueAndHistory(t *testing.T) {
	rig := newTestRig(t)
	sess := testutil.CreateLiveSession(t, rig.db)
	testutil.CreateProduct(t, rig.db, "sk01", 5)

	for _, cid := range []string{"c1", "c2", "c3"} {
		out, err := rig.engine.CreateFromComment(context.Background(), reservation.CreateInput{
			LiveSessionID: sess.ID, Message: "sk01", CommentID: cid, UserName: "买家" + cid,
		})
		require.NoError(t, err)
		require.True(t, out.OK)
	}

	w := rig.do(t, http.MethodGet, "/api/live_sessions/1/queue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var queueResp struct {
		Data struct {
			Summary []struct {
				SKU           string `json:"sku"`
				ReservedCount int64  `json:"reserved_count"`
			} `json:"summary"`
			Queue []model.Reservation `json:"queue"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &queueResp))
	require.Len(t, queueResp.Data.Summary, 1)
	assert.Equal(t, int64(3), queueResp.Data.Summary[0].ReservedCount)
	assert.Len(t, queueResp.Data.Queue, 3)

	// 按状态过滤历史。
	w = rig.do(t, http.MethodGet, "/api/live_sessions/1/reservations?status=reserved", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = rig.do(t, http.MethodGet, "/api/live_sessions/1/reservations?status=shipped", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 关键词检索命中买家名。
	w = rig.do(t, http.MethodGet, "/api/live_sessions/1/reservations?q=%E4%B9%B0%E5%AE%B6c2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var histResp struct {
		Data []json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &histResp))
	assert.Len(t, histResp.Data, 1)
}

func TestStopNotRunning(t *testing.T) {
	rig := newTestRig(t)
	testutil.CreateLiveSession(t, rig.db)

	w := rig.do(t, http.MethodPost, "/api/live_sessions/1/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"stopped":false`)
}

func TestFBRoutes_NoToken(t *testing.T) {
	rig := newTestRig(t)
	// token 未配置是配置问题，给 503 而不是 502。
	w := rig.do(t, http.MethodGet, "/api/fb/whoami", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
