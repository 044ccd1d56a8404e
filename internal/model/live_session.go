package model

import (
	"time"

	"gorm.io/gorm"
)

// LiveSessionStatus 直播场次状态。
type LiveSessionStatus string

const (
	LiveSessionLive  LiveSessionStatus = "live"
	LiveSessionEnded LiveSessionStatus = "ended"
)

// LiveSession 一场被监听下单的直播。
type LiveSession struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	PageID  string            `gorm:"size:64;not null;index" json:"page_id"`
	VideoID string            `gorm:"size:64;not null;index" json:"video_id"`
	Status  LiveSessionStatus `gorm:"size:16;not null;default:live" json:"status"`
	EndedAt *time.Time        `json:"ended_at"`
}

func (LiveSession) TableName() string { return "live_sessions" }
