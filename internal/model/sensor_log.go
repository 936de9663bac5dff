package model

import "time"

// SensorLog is one persisted, classified reading (history table).
type SensorLog struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID         string    `gorm:"size:64;not null;index" json:"roomId"`
	RoomName       string    `gorm:"size:128;not null" json:"roomName"`
	Location       string    `gorm:"size:128" json:"location"`
	Fire           bool      `gorm:"not null;default:false" json:"fire"`
	Flood          bool      `gorm:"not null;default:false" json:"flood"`
	Quake          bool      `gorm:"not null;default:false" json:"quake"`
	FloodLevel     int       `gorm:"not null;default:0" json:"floodLevel"`
	QuakeIntensity float64   `gorm:"not null;default:0" json:"quakeIntensity"`
	Temperature    *float64  `json:"temperature,omitempty"`
	Humidity       *float64  `json:"humidity,omitempty"`
	RSSI           int       `gorm:"column:rssi;not null" json:"rssi"`
	Status         string    `gorm:"size:16;not null" json:"status"`
	EventType      string    `gorm:"size:16;not null;index" json:"eventType"`
	Message        string    `gorm:"size:512" json:"message"`
	Timestamp      time.Time `gorm:"not null;index" json:"timestamp"`
	CreatedAt      time.Time `json:"createdAt"`
}
