package router

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"live_commerce/internal/inventory"
	"live_commerce/internal/model"
	"live_commerce/internal/queue"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// listProducts 查询商品列表。
func listProducts(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var list []model.Product
		if err := db.Order("id DESC").Find(&list).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

// createProduct 创建商品，SKU 统一小写；重复 SKU 返回 409。
func createProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			SKU        string `json:"sku" binding:"required"`
			Name       string `json:"name" binding:"required"`
			PriceCents int64  `json:"price_cents" binding:"required,min=1"`
			StockTotal int64  `json:"stock_total" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}

		p := &model.Product{
			SKU:            strings.ToLower(strings.TrimSpace(req.SKU)),
			Name:           req.Name,
			PriceCents:     req.PriceCents,
			StockTotal:     req.StockTotal,
			StockAvailable: req.StockTotal,
			IsActive:       true,
		}
		if err := db.Create(p).Error; err != nil {
			if queue.ErrorsLikeUnique(err) {
				c.JSON(http.StatusConflict, gin.H{"code": 409, "msg": "SKU 已存在"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"code": 0, "data": p})
	}
}

// patchProduct 局部更新：name/price_cents/is_active 直接写，
// restock 走 Ledger（总量与可用量都 +n，不许直接改库存字段）。
func patchProduct(db *gorm.DB, ledger *inventory.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseUintParam(c, "id")
		if err != nil {
			return
		}
		var req struct {
			Name       *string `json:"name"`
			PriceCents *int64  `json:"price_cents"`
			IsActive   *bool   `json:"is_active"`
			Restock    *int64  `json:"restock"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}

		updates := map[string]any{}
		if req.Name != nil {
			updates["name"] = *req.Name
		}
		if req.PriceCents != nil {
			if *req.PriceCents <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "price_cents 必须 > 0"})
				return
			}
			updates["price_cents"] = *req.PriceCents
		}
		if req.IsActive != nil {
			updates["is_active"] = *req.IsActive
		}
		if len(updates) == 0 && req.Restock == nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "没有可更新的字段"})
			return
		}

		if len(updates) > 0 {
			res := db.Model(&model.Product{}).Where("id = ?", id).Updates(updates)
			if res.Error != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": res.Error.Error()})
				return
			}
			if res.RowsAffected == 0 {
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "商品不存在"})
				return
			}
		}
		if req.Restock != nil {
			if *req.Restock <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "restock 必须 > 0"})
				return
			}
			if err := ledger.Restock(c.Request.Context(), id, *req.Restock); err != nil {
				if errors.Is(err, inventory.ErrProductNotFound) {
					c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "商品不存在"})
					return
				}
				c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
				return
			}
		}

		var p model.Product
		if err := db.First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "商品不存在"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": p})
	}
}

// deleteProduct 删除商品（软删除）。
func deleteProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseUintParam(c, "id")
		if err != nil {
			return
		}
		res := db.Delete(&model.Product{}, id)
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": res.Error.Error()})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "商品不存在"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// parseUintParam 解析路径上的数字 id，失败时直接写 400。
func parseUintParam(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || v == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": name + " 无效"})
		return 0, errors.New("invalid param")
	}
	return uint(v), nil
}
