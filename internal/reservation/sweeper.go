package reservation

import (
	"context"
	"log"
	"time"

	"live_commerce/internal/model"
	"live_commerce/internal/queue"

	"gorm.io/gorm"
)

const defaultSweepInterval = time.Minute

// ExpireDue 扫一遍所有到期未确认的预订：置 expired 并逐件还库存。
// 不拿商品锁：条件更新（status='reserved'）保证每行只被流转一次，
// 库存归还本身又是原子的，两者叠加已经够了。
func (e *Engine) ExpireDue(ctx context.Context) (int, error) {
	now := time.Now()
	var due []model.Reservation
	err := e.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", model.ReservationReserved, now).
		Find(&due).Error
	if err != nil {
		return 0, err
	}

	swept := 0
	for i := range due {
		r := due[i]
		transitioned := false
		err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			// 扫描和流转之间行可能已被 confirm/cancel 抢先，条件更新会自己让路。
			_, transitioned, err = e.expireIfOverdue(ctx, tx, &r, now)
			return err
		})
		if err != nil {
			// 单行失败不拖垮整轮，下一轮还会扫到。
			log.Printf("[expiry] reservation id=%d: %v", r.ID, err)
			continue
		}
		if transitioned {
			swept++
			e.emit(ctx, queue.EventExpired, &r)
		}
	}
	return swept, nil
}

// Sweeper 固定间隔的后台清扫任务。
type Sweeper struct {
	engine   *Engine
	interval time.Duration
}

func NewSweeper(engine *Engine, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{engine: engine, interval: interval}
}

// Run 阻塞运行直到 ctx 取消。
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.engine.ExpireDue(ctx)
			if err != nil {
				log.Printf("[expiry] sweep: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("[expiry] expired & restored: %d", n)
			}
		}
	}
}
