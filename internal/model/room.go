package model

import "time"

// Room is a monitored room that devices report readings for.
type Room struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Name        string    `gorm:"size:128;not null" json:"name"`
	Location    string    `gorm:"size:128;not null" json:"location"`
	Description string    `gorm:"size:512" json:"description,omitempty"`
	IsActive    bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt   time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"not null" json:"updatedAt"`
}

// DefaultRooms are provisioned at startup when seeding is enabled.
var DefaultRooms = []Room{
	{ID: "1", Name: "Living Room", Location: "Ground Floor", IsActive: true},
	{ID: "2", Name: "Kitchen", Location: "Ground Floor", IsActive: true},
	{ID: "3", Name: "Master Bedroom", Location: "First Floor", IsActive: true},
	{ID: "4", Name: "Basement", Location: "Basement", IsActive: true},
	{ID: "5", Name: "Garage", Location: "Ground Floor", IsActive: true},
}
