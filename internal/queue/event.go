package queue

import (
	"fmt"
	"time"
)

// 预订生命周期事件类型。
const (
	EventReserved  = "reserved"
	EventConfirmed = "confirmed"
	EventCanceled  = "canceled"
	EventExpired   = "expired"
)

// ReservationEvent 是写入 outbox / Kafka 的预订生命周期事件。
type ReservationEvent struct {
	EventID       string    `json:"event_id"`
	Type          string    `json:"type"`
	ReservationID uint      `json:"reservation_id"`
	LiveSessionID uint      `json:"live_session_id"`
	ProductID     uint      `json:"product_id"`
	Position      int       `json:"position"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Validate 做最小字段校验，防止消费端处理脏消息。
func (e ReservationEvent) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	switch e.Type {
	case EventReserved, EventConfirmed, EventCanceled, EventExpired:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.ReservationID == 0 {
		return fmt.Errorf("reservation_id is required")
	}
	if e.ProductID == 0 {
		return fmt.Errorf("product_id is required")
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("occurred_at is required")
	}
	return nil
}
