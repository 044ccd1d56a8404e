package inventory

import (
	"context"
	"errors"

	"live_commerce/internal/model"

	"gorm.io/gorm"
)

// ErrProductNotFound 商品 id 不存在（区别于售罄这种软结果）。
var ErrProductNotFound = errors.New("product not found")

// Ledger 守住 stock_available 的唯一入口。
// 全部走「带条件的单条 UPDATE」：DB 保证同一行的条件判断与写入原子，
// 任意并发调用方都不会把库存扣成负数或补超上限。
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// WithTx 返回绑定到事务的 Ledger，供需要和其他写操作同事务的调用方使用。
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	return &Ledger{db: tx}
}

// ReserveOne 占用 1 件库存。
// 返回 (false, nil) 表示售罄；商品不存在返回 ErrProductNotFound。
func (l *Ledger) ReserveOne(ctx context.Context, productID uint) (bool, error) {
	res := l.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND stock_available > 0", productID).
		UpdateColumn("stock_available", gorm.Expr("stock_available - 1"))
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	// 没扣到：区分「售罄」和「商品不存在」。
	var count int64
	if err := l.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", productID).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, ErrProductNotFound
	}
	return false, nil
}

// RestoreOne 归还 1 件库存。
// 幂等性由调用方的状态机保证（每次状态流转只调一次）；
// stock_available < stock_total 的守卫确保永远不会补超总量。
func (l *Ledger) RestoreOne(ctx context.Context, productID uint) error {
	res := l.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND stock_available < stock_total", productID).
		UpdateColumn("stock_available", gorm.Expr("stock_available + 1"))
	return res.Error
}

// Restock 补货：总量与可用量同步增加 n。
func (l *Ledger) Restock(ctx context.Context, productID uint, n int64) error {
	res := l.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", productID).
		UpdateColumns(map[string]any{
			"stock_total":     gorm.Expr("stock_total + ?", n),
			"stock_available": gorm.Expr("stock_available + ?", n),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}
