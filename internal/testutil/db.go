package testutil

import (
	"path/filepath"
	"testing"

	"live_commerce/internal/model"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB 每个测试一个独立 sqlite 文件库（带建表）。
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Product{},
		&model.LiveSession{},
		&model.Reservation{},
		&model.ReservationEventLog{},
	))
	return db
}

// NewTestRedis 起一个 miniredis 并返回指向它的客户端。
func NewTestRedis(t *testing.T) (*rd.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

// CreateProduct 插入一个上架商品。
func CreateProduct(t *testing.T, db *gorm.DB, sku string, stock int64) model.Product {
	t.Helper()
	p := model.Product{
		SKU:            sku,
		Name:           "商品 " + sku,
		PriceCents:     19900,
		StockTotal:     stock,
		StockAvailable: stock,
		IsActive:       true,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

// CreateLiveSession 插入一场 live 状态的直播。
func CreateLiveSession(t *testing.T, db *gorm.DB) model.LiveSession {
	t.Helper()
	s := model.LiveSession{PageID: "page-1", VideoID: "video-1", Status: model.LiveSessionLive}
	require.NoError(t, db.Create(&s).Error)
	return s
}
