package model

import (
	"time"

	"gorm.io/gorm"
)

// Product 直播商品：SKU、价格、总库存与可用库存。
type Product struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// SKU 统一存小写，查询时用 lower() 比较，保证大小写不敏感匹配。
	SKU        string `gorm:"size:64;uniqueIndex;not null" json:"sku"`
	Name       string `gorm:"size:128;not null" json:"name"`
	PriceCents int64  `gorm:"not null" json:"price_cents"` // 单位：分
	// 不变量：0 <= StockAvailable <= StockTotal，只能经 inventory.Ledger 变更。
	StockTotal     int64 `gorm:"not null;default:0" json:"stock_total"`
	StockAvailable int64 `gorm:"not null;default:0" json:"stock_available"`
	IsActive       bool  `gorm:"not null;default:true" json:"is_active"`
}

func (Product) TableName() string { return "products" }
