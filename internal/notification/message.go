package notification

import (
	"context"

	"home-sensor-backend/internal/sensor"
)

// Message is one notification announcing an alert in a room.
type Message struct {
	RoomID   string   `json:"roomId"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Priority string   `json:"priority"`
	Tags     []string `json:"tags,omitempty"`
}

// FromAlert builds the notification for an alert raised in roomID.
func FromAlert(roomID string, a sensor.Alert) Message {
	return Message{
		RoomID:   roomID,
		Title:    a.Title,
		Body:     a.Body,
		Priority: a.Priority,
		Tags:     a.Tags,
	}
}

// Sender delivers a message over one channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}
