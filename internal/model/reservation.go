package model

import (
	"time"

	"gorm.io/gorm"
)

// ReservationStatus 预订状态机，单向流转：
// reserved -> confirmed | canceled | expired，终态不可再变。
type ReservationStatus string

const (
	ReservationReserved  ReservationStatus = "reserved"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCanceled  ReservationStatus = "canceled"
	ReservationExpired   ReservationStatus = "expired"
)

// Reservation 一条评论对一件库存的限时占用。
type Reservation struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	LiveSessionID uint   `gorm:"not null;index" json:"live_session_id"`
	ProductID     uint   `gorm:"not null;index" json:"product_id"`
	UserFBID      string `gorm:"size:64" json:"user_fb_id"`
	UserName      string `gorm:"size:128" json:"user_name"`
	// CommentID 是幂等键：同一条评论最多产生一行（靠 UNIQUE 约束兜底）。
	CommentID string `gorm:"size:128;uniqueIndex;not null" json:"comment_id"`
	// PositionInQueue 按 (live_session_id, product_id) 维度 1 起步、无空洞。
	PositionInQueue int               `gorm:"not null" json:"position_in_queue"`
	Status          ReservationStatus `gorm:"size:16;not null;default:reserved;index" json:"status"`
	// ExpiresAt 仅在 reserved 态有值，confirm 时清空。
	ExpiresAt      *time.Time `gorm:"index" json:"expires_at"`
	ConfirmedAt    *time.Time `json:"confirmed_at"`
	CanceledAt     *time.Time `json:"canceled_at"`
	CanceledReason string     `gorm:"size:255" json:"canceled_reason,omitempty"`
}

func (Reservation) TableName() string { return "reservations" }
