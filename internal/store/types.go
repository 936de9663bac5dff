package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("store: not found")

// Query limits shared by the log and alert endpoints.
const (
	DefaultLogLimit     = 100
	DefaultRoomLogLimit = 50
	DefaultAlertLimit   = 50
	SearchResultLimit   = 500
	maxQueryLimit       = 1000
)

// LogFilters narrows a log search. Empty fields are ignored.
type LogFilters struct {
	Search    string
	RoomID    string
	EventType string
	Status    string
	StartDate *time.Time
	EndDate   *time.Time
}

// LogStats counts persisted logs by status.
type LogStats struct {
	Total    int64 `json:"total"`
	Critical int64 `json:"critical"`
	Warning  int64 `json:"warning"`
	Normal   int64 `json:"normal"`
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}
