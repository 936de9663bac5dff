package model

import "time"

// AlertEvent records one threshold crossing. It stays open until explicitly resolved.
type AlertEvent struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID     string     `gorm:"size:64;not null;index" json:"roomId"`
	RoomName   string     `gorm:"size:128;not null" json:"roomName"`
	AlertType  string     `gorm:"size:16;not null" json:"alertType"`
	Severity   string     `gorm:"size:16;not null" json:"severity"`
	Value      float64    `gorm:"not null" json:"value"`
	Resolved   bool       `gorm:"not null;default:false;index" json:"resolved"`
	ResolvedAt *time.Time `json:"resolvedAt"`
	Timestamp  time.Time  `gorm:"not null;index" json:"timestamp"`
	CreatedAt  time.Time  `json:"createdAt"`
}
