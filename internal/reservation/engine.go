package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"live_commerce/internal/inventory"
	"live_commerce/internal/model"
	"live_commerce/internal/queue"
	rediskey "live_commerce/pkg/redis"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// 软业务结果的 reason 值（不是错误）。
const (
	ReasonSKUNotFound = "sku_not_found"
	ReasonLocked      = "locked"
	ReasonSoldOut     = "sold_out"
)

var (
	ErrReservationNotFound = errors.New("reservation not found")
	ErrCommentIDRequired   = errors.New("comment_id is required")
)

// ConflictError 状态冲突：预订已过期或已处于终态。
// 过期分支返回前本地状态已被纠正（置 expired + 库存已还）。
type ConflictError struct {
	Reason string // "expired" / "invalid_status"
	Status model.ReservationStatus
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("reservation conflict: %s (status=%s)", e.Reason, e.Status)
}

const (
	defaultHoldTTL = 15 * time.Minute
	productLockTTL = 2 * time.Second
)

// Engine 负责评论到预订的全部状态流转。
// 并发约束：同一商品的「扣库存 + 排队号」必须串行，由 redis 商品锁保证；
// 不同商品完全并行互不影响。
type Engine struct {
	db      *gorm.DB
	rdb     *rd.Client
	ledger  *inventory.Ledger
	events  *queue.Outbox // 可为 nil（事件是旁路）
	holdTTL time.Duration
}

func NewEngine(db *gorm.DB, rdb *rd.Client, ledger *inventory.Ledger, events *queue.Outbox, holdTTL time.Duration) *Engine {
	if holdTTL <= 0 {
		holdTTL = defaultHoldTTL
	}
	return &Engine{db: db, rdb: rdb, ledger: ledger, events: events, holdTTL: holdTTL}
}

// CreateInput 一条待撮合的评论。
type CreateInput struct {
	LiveSessionID uint
	Message       string
	UserName      string
	UserID        string
	CommentID     string
}

// CreateOutcome 撮合结果。业务上的失败（没口令/售罄/没抢到锁）
// 都放在结果里而不是 error，error 只留给存储等硬故障。
type CreateOutcome struct {
	Matched     bool               `json:"matched"`
	OK          bool               `json:"ok"`
	Duplicate   bool               `json:"duplicate,omitempty"`
	Reason      string             `json:"reason,omitempty"`
	Reservation *model.Reservation `json:"reservation,omitempty"`
}

// CreateFromComment 从一条评论创建预订：
//  1. 抽口令，没有就不匹配
//  2. 按口令找商品（大小写不敏感）
//  3. 单次尝试拿商品锁，拿不到按软失败返回（有损，不重试）
//  4. 临界区内同一个 DB 事务完成：扣库存 → 算下一个排队号 → 插入预订行
//  5. comment_id 唯一冲突说明是重复投递：整个事务回滚（库存一分不多扣），
//     按「已存在」成功返回
func (e *Engine) CreateFromComment(ctx context.Context, in CreateInput) (CreateOutcome, error) {
	sku, ok := ParseSKU(in.Message)
	if !ok {
		return CreateOutcome{Matched: false}, nil
	}
	if in.CommentID == "" {
		return CreateOutcome{}, ErrCommentIDRequired
	}

	// 快路径：poll 和 SSE 重叠投递很常见，先查一次免得白抢锁。
	if existing, err := e.findByCommentID(ctx, in.CommentID); err != nil {
		return CreateOutcome{}, err
	} else if existing != nil {
		return CreateOutcome{Matched: true, OK: true, Duplicate: true, Reservation: existing}, nil
	}

	var product model.Product
	err := e.db.WithContext(ctx).
		Where("lower(sku) = lower(?) AND is_active = ?", sku, true).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CreateOutcome{Matched: true, Reason: ReasonSKUNotFound}, nil
		}
		return CreateOutcome{}, err
	}

	var (
		created   *model.Reservation
		soldOut   bool
		duplicate bool
	)
	locked, lockErr := rediskey.WithProductLock(ctx, e.rdb, product.ID, productLockTTL, func() error {
		return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			got, err := e.ledger.WithTx(tx).ReserveOne(ctx, product.ID)
			if err != nil {
				return err
			}
			if !got {
				soldOut = true
				return nil
			}

			var maxPos int
			if err := tx.Model(&model.Reservation{}).
				Where("live_session_id = ? AND product_id = ?", in.LiveSessionID, product.ID).
				Select("COALESCE(MAX(position_in_queue), 0)").
				Scan(&maxPos).Error; err != nil {
				return err
			}

			expiresAt := time.Now().Add(e.holdTTL)
			r := model.Reservation{
				LiveSessionID:   in.LiveSessionID,
				ProductID:       product.ID,
				UserFBID:        in.UserID,
				UserName:        in.UserName,
				CommentID:       in.CommentID,
				PositionInQueue: maxPos + 1,
				Status:          model.ReservationReserved,
				ExpiresAt:       &expiresAt,
			}
			if err := tx.Create(&r).Error; err != nil {
				if queue.ErrorsLikeUnique(err) {
					// 返回 error 让事务回滚，把刚扣的那 1 件库存还回去。
					duplicate = true
				}
				return err
			}
			created = &r
			return nil
		})
	})
	if lockErr != nil && !duplicate {
		return CreateOutcome{}, lockErr
	}
	if !locked {
		return CreateOutcome{Matched: true, OK: false, Reason: ReasonLocked}, nil
	}
	if duplicate {
		existing, err := e.findByCommentID(ctx, in.CommentID)
		if err != nil {
			return CreateOutcome{}, err
		}
		return CreateOutcome{Matched: true, OK: true, Duplicate: true, Reservation: existing}, nil
	}
	if soldOut {
		return CreateOutcome{Matched: true, OK: false, Reason: ReasonSoldOut}, nil
	}

	e.emit(ctx, queue.EventReserved, created)
	return CreateOutcome{Matched: true, OK: true, Reservation: created}, nil
}

// Confirm 把 reserved 预订置为 confirmed（成交，不还库存，清掉过期时间）。
// 已过期：先落地 expired + 还库存再报冲突；终态：报 invalid_status。
func (e *Engine) Confirm(ctx context.Context, reservationID uint) (*model.Reservation, error) {
	now := time.Now()
	var (
		out      *model.Reservation
		conflict *ConflictError
		expired  *model.Reservation
	)
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := e.loadReservation(tx, reservationID)
		if err != nil {
			return err
		}

		lapsed, transitioned, err := e.expireIfOverdue(ctx, tx, r, now)
		if err != nil {
			return err
		}
		if lapsed {
			// 返回 nil 提交事务：过期流转与库存归还必须落地。
			conflict = &ConflictError{Reason: "expired", Status: r.Status}
			if transitioned {
				expired = r
			}
			return nil
		}
		if r.Status != model.ReservationReserved {
			conflict = &ConflictError{Reason: "invalid_status", Status: r.Status}
			return nil
		}

		res := tx.Model(&model.Reservation{}).
			Where("id = ? AND status = ?", reservationID, model.ReservationReserved).
			Updates(map[string]any{
				"status":       model.ReservationConfirmed,
				"confirmed_at": now,
				"expires_at":   nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// 并发请求抢先流转，重读后按冲突上报。
			fresh, err := e.loadReservation(tx, reservationID)
			if err != nil {
				return err
			}
			conflict = &ConflictError{Reason: "invalid_status", Status: fresh.Status}
			return nil
		}

		out, err = e.loadReservation(tx, reservationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		if conflict.Reason == "expired" && expired != nil {
			e.emit(ctx, queue.EventExpired, expired)
		}
		return nil, conflict
	}

	e.emit(ctx, queue.EventConfirmed, out)
	return out, nil
}

// Cancel 把 reserved 预订置为 canceled 并归还 1 件库存。
// 冲突语义与 Confirm 完全一致。
func (e *Engine) Cancel(ctx context.Context, reservationID uint, reason string) (*model.Reservation, error) {
	now := time.Now()
	var (
		out      *model.Reservation
		conflict *ConflictError
		expired  *model.Reservation
	)
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := e.loadReservation(tx, reservationID)
		if err != nil {
			return err
		}

		lapsed, transitioned, err := e.expireIfOverdue(ctx, tx, r, now)
		if err != nil {
			return err
		}
		if lapsed {
			conflict = &ConflictError{Reason: "expired", Status: r.Status}
			if transitioned {
				expired = r
			}
			return nil
		}
		if r.Status != model.ReservationReserved {
			conflict = &ConflictError{Reason: "invalid_status", Status: r.Status}
			return nil
		}

		res := tx.Model(&model.Reservation{}).
			Where("id = ? AND status = ?", reservationID, model.ReservationReserved).
			Updates(map[string]any{
				"status":          model.ReservationCanceled,
				"canceled_at":     now,
				"canceled_reason": reason,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			fresh, err := e.loadReservation(tx, reservationID)
			if err != nil {
				return err
			}
			conflict = &ConflictError{Reason: "invalid_status", Status: fresh.Status}
			return nil
		}

		if err := e.ledger.WithTx(tx).RestoreOne(ctx, r.ProductID); err != nil {
			return err
		}
		out, err = e.loadReservation(tx, reservationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		if conflict.Reason == "expired" && expired != nil {
			e.emit(ctx, queue.EventExpired, expired)
		}
		return nil, conflict
	}

	e.emit(ctx, queue.EventCanceled, out)
	return out, nil
}

// expireIfOverdue 是 Confirm/Cancel/清扫共用的「真实状态落地」：
// reserved 且 expires_at 已过 → 置 expired + 还库存。
// 条件更新保证同一行只会被某一个调用方流转成功一次；
// transitioned 标记流转是否由本次调用完成（事件只该发一次）。
func (e *Engine) expireIfOverdue(ctx context.Context, tx *gorm.DB, r *model.Reservation, now time.Time) (lapsed, transitioned bool, err error) {
	if r.Status != model.ReservationReserved || r.ExpiresAt == nil || r.ExpiresAt.After(now) {
		return false, false, nil
	}

	res := tx.Model(&model.Reservation{}).
		Where("id = ? AND status = ?", r.ID, model.ReservationReserved).
		Update("status", model.ReservationExpired)
	if res.Error != nil {
		return false, false, res.Error
	}
	if res.RowsAffected == 1 {
		if err := e.ledger.WithTx(tx).RestoreOne(ctx, r.ProductID); err != nil {
			return false, false, err
		}
		r.Status = model.ReservationExpired
		return true, true, nil
	}

	// 别的调用方抢先流转了本行，重读拿真实状态。
	fresh, err := e.loadReservation(tx, r.ID)
	if err != nil {
		return false, false, err
	}
	*r = *fresh
	return r.Status == model.ReservationExpired, false, nil
}

func (e *Engine) loadReservation(tx *gorm.DB, id uint) (*model.Reservation, error) {
	var r model.Reservation
	if err := tx.First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (e *Engine) findByCommentID(ctx context.Context, commentID string) (*model.Reservation, error) {
	var r model.Reservation
	err := e.db.WithContext(ctx).Where("comment_id = ?", commentID).First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

func (e *Engine) emit(ctx context.Context, eventType string, r *model.Reservation) {
	if e.events == nil || r == nil {
		return
	}
	e.events.Publish(ctx, queue.ReservationEvent{
		EventID:       uuid.NewString(),
		Type:          eventType,
		ReservationID: r.ID,
		LiveSessionID: r.LiveSessionID,
		ProductID:     r.ProductID,
		Position:      r.PositionInQueue,
		OccurredAt:    time.Now(),
	})
}
