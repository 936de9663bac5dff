package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"home-sensor-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	// Rooms
	SeedRooms(ctx context.Context, rooms []model.Room) error
	UpsertRoom(ctx context.Context, room *model.Room) error
	GetAllRooms(ctx context.Context) ([]model.Room, error)

	// Sensor logs
	InsertSensorLog(ctx context.Context, log *model.SensorLog) error
	ListLogs(ctx context.Context, limit, offset int) ([]model.SensorLog, error)
	LogsByRoom(ctx context.Context, roomID string, limit int) ([]model.SensorLog, error)
	SearchLogs(ctx context.Context, f LogFilters) ([]model.SensorLog, error)
	LogStats(ctx context.Context) (LogStats, error)

	// Alert events
	InsertAlertEvent(ctx context.Context, alert *model.AlertEvent) error
	ActiveAlerts(ctx context.Context) ([]model.AlertEvent, error)
	RecentAlerts(ctx context.Context, limit int) ([]model.AlertEvent, error)
	ResolveAlert(ctx context.Context, id int64, at time.Time) (*model.AlertEvent, error)

	// Push subscriptions
	PutSubscription(ctx context.Context, sub *model.PushSubscription, roomIDs []string) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForRoom(ctx context.Context, roomID string) ([]model.PushSubscription, error)

	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// SeedRooms inserts the given rooms, refreshing name and location of rooms that exist.
func (s *gormStore) SeedRooms(ctx context.Context, rooms []model.Room) error {
	if len(rooms) == 0 {
		return nil
	}
	slog.Info("seeding rooms", "count", len(rooms))
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rooms {
			if err := upsertRoom(tx, &rooms[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *gormStore) UpsertRoom(ctx context.Context, room *model.Room) error {
	return upsertRoom(s.db.WithContext(ctx), room)
}

func upsertRoom(tx *gorm.DB, room *model.Room) error {
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "location", "is_active", "updated_at"}),
	}).Create(room).Error
	if err != nil {
		return fmt.Errorf("failed to upsert room %s: %w", room.ID, err)
	}
	return nil
}

func (s *gormStore) GetAllRooms(ctx context.Context) ([]model.Room, error) {
	var rooms []model.Room
	if err := s.db.WithContext(ctx).Order("id").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

func (s *gormStore) InsertSensorLog(ctx context.Context, log *model.SensorLog) error {
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to insert sensor log for room %s: %w", log.RoomID, err)
	}
	return nil
}

func (s *gormStore) ListLogs(ctx context.Context, limit, offset int) ([]model.SensorLog, error) {
	if offset < 0 {
		offset = 0
	}
	var logs []model.SensorLog
	err := s.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(clampLimit(limit, DefaultLogLimit)).
		Offset(offset).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	return logs, nil
}

func (s *gormStore) LogsByRoom(ctx context.Context, roomID string, limit int) ([]model.SensorLog, error) {
	var logs []model.SensorLog
	err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("timestamp DESC").
		Limit(clampLimit(limit, DefaultRoomLogLimit)).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list logs for room %s: %w", roomID, err)
	}
	return logs, nil
}

// SearchLogs matches the free-text term against room name, location and message,
// case-insensitively, and applies the remaining filters as exact matches.
func (s *gormStore) SearchLogs(ctx context.Context, f LogFilters) ([]model.SensorLog, error) {
	q := s.db.WithContext(ctx).Model(&model.SensorLog{})

	if term := strings.TrimSpace(f.Search); term != "" {
		pattern := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(room_name) LIKE ? OR LOWER(location) LIKE ? OR LOWER(message) LIKE ?", pattern, pattern, pattern)
	}
	if f.RoomID != "" {
		q = q.Where("room_id = ?", f.RoomID)
	}
	if f.EventType != "" {
		q = q.Where("event_type = ?", f.EventType)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.StartDate != nil {
		q = q.Where("timestamp >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		q = q.Where("timestamp <= ?", *f.EndDate)
	}

	var logs []model.SensorLog
	if err := q.Order("timestamp DESC").Limit(SearchResultLimit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to search logs: %w", err)
	}
	return logs, nil
}

func (s *gormStore) LogStats(ctx context.Context) (LogStats, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&model.SensorLog{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return LogStats{}, fmt.Errorf("failed to aggregate log stats: %w", err)
	}

	var stats LogStats
	for _, r := range rows {
		stats.Total += r.Count
		switch r.Status {
		case "critical":
			stats.Critical = r.Count
		case "warning":
			stats.Warning = r.Count
		}
	}
	stats.Normal = stats.Total - stats.Critical - stats.Warning
	return stats, nil
}

func (s *gormStore) InsertAlertEvent(ctx context.Context, alert *model.AlertEvent) error {
	if err := s.db.WithContext(ctx).Create(alert).Error; err != nil {
		return fmt.Errorf("failed to insert %s alert for room %s: %w", alert.AlertType, alert.RoomID, err)
	}
	return nil
}

func (s *gormStore) ActiveAlerts(ctx context.Context) ([]model.AlertEvent, error) {
	var alerts []model.AlertEvent
	err := s.db.WithContext(ctx).
		Where("resolved = ?", false).
		Order("timestamp DESC").
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	return alerts, nil
}

func (s *gormStore) RecentAlerts(ctx context.Context, limit int) ([]model.AlertEvent, error) {
	var alerts []model.AlertEvent
	err := s.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(clampLimit(limit, DefaultAlertLimit)).
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent alerts: %w", err)
	}
	return alerts, nil
}

// ResolveAlert marks the alert resolved at the given time. Resolving an already
// resolved alert keeps its original resolution time.
func (s *gormStore) ResolveAlert(ctx context.Context, id int64, at time.Time) (*model.AlertEvent, error) {
	var alert model.AlertEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&alert, id).Error; err != nil {
			return err
		}
		if alert.Resolved {
			return nil
		}
		alert.Resolved = true
		alert.ResolvedAt = &at
		return tx.Model(&alert).Updates(map[string]any{"resolved": true, "resolved_at": at}).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve alert %d: %w", id, err)
	}
	return &alert, nil
}

// PutSubscription creates or replaces a browser subscription and the rooms it follows.
func (s *gormStore) PutSubscription(ctx context.Context, sub *model.PushSubscription, roomIDs []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Omit("Rooms").Create(sub).Error; err != nil {
			return fmt.Errorf("failed to upsert subscription: %w", err)
		}

		var rooms []*model.Room
		if len(roomIDs) > 0 {
			if err := tx.Where("id IN ?", roomIDs).Find(&rooms).Error; err != nil {
				return fmt.Errorf("failed to load subscribed rooms: %w", err)
			}
		}

		if err := tx.Model(sub).Association("Rooms").Replace(&rooms); err != nil {
			return fmt.Errorf("failed to replace subscribed rooms: %w", err)
		}
		return nil
	})
}

func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).Preload("Rooms").First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &sub, nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub := model.PushSubscription{Endpoint: endpoint}
		if err := tx.Model(&sub).Association("Rooms").Clear(); err != nil {
			return fmt.Errorf("failed to clear subscription rooms: %w", err)
		}
		if err := tx.Delete(&sub).Error; err != nil {
			return fmt.Errorf("failed to delete subscription: %w", err)
		}
		return nil
	})
}

// SubscriptionsForRoom returns the browser subscriptions following roomID.
func (s *gormStore) SubscriptionsForRoom(ctx context.Context, roomID string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	err := s.db.WithContext(ctx).
		Joins("JOIN subscription_room_mapping srm ON srm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("srm.room_id = ?", roomID).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find subscriptions for room %s: %w", roomID, err)
	}
	return subs, nil
}
