package model

import (
	"time"

	"gorm.io/gorm"
)

// ReservationEventLog 预订生命周期事件流水（由 Kafka 消费者落库）。
// EventID 唯一索引保证重复消费不会写出第二行。
type ReservationEventLog struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	EventID       string    `gorm:"size:64;uniqueIndex;not null" json:"event_id"`
	EventType     string    `gorm:"size:32;not null;index" json:"event_type"`
	ReservationID uint      `gorm:"not null;index" json:"reservation_id"`
	LiveSessionID uint      `gorm:"not null;index" json:"live_session_id"`
	ProductID     uint      `gorm:"not null" json:"product_id"`
	Position      int       `gorm:"not null" json:"position"`
	OccurredAt    time.Time `gorm:"not null" json:"occurred_at"`
}

func (ReservationEventLog) TableName() string { return "reservation_event_logs" }
