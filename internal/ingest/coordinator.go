// Package ingest turns raw device readings into state updates, history, alerts and
// live pushes.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"home-sensor-backend/internal/metrics"
	"home-sensor-backend/internal/model"
	"home-sensor-backend/internal/notification"
	"home-sensor-backend/internal/roomstate"
	"home-sensor-backend/internal/sensor"
)

// UnknownRoomPolicy decides what happens to readings for rooms that were never registered.
type UnknownRoomPolicy string

const (
	// PolicyDrop logs and discards the reading.
	PolicyDrop UnknownRoomPolicy = "drop"
	// PolicyCreate provisions the room and processes the reading.
	PolicyCreate UnknownRoomPolicy = "create"
)

// ParseUnknownRoomPolicy validates a configured policy name.
func ParseUnknownRoomPolicy(s string) (UnknownRoomPolicy, error) {
	switch UnknownRoomPolicy(s) {
	case "", PolicyDrop:
		return PolicyDrop, nil
	case PolicyCreate:
		return PolicyCreate, nil
	}
	return "", fmt.Errorf("unknown room policy %q", s)
}

// Repository persists what ingestion produces.
type Repository interface {
	InsertSensorLog(ctx context.Context, log *model.SensorLog) error
	InsertAlertEvent(ctx context.Context, alert *model.AlertEvent) error
	UpsertRoom(ctx context.Context, room *model.Room) error
}

// Dispatcher queues notifications for asynchronous delivery.
type Dispatcher interface {
	Dispatch(msg notification.Message) bool
}

// Publisher pushes live updates to subscribers.
type Publisher interface {
	Publish(event string, data any)
}

// Invalidator drops cached views of the persisted data.
type Invalidator interface {
	Invalidate()
}

// Event names pushed after each accepted reading.
const (
	EventSensorUpdate = "sensor-update"
	EventRoomsUpdate  = "rooms-update"
)

// SensorUpdate is the live view of one accepted reading.
type SensorUpdate struct {
	ID             string        `json:"id"`
	Fire           bool          `json:"fire"`
	Flood          bool          `json:"flood"`
	Quake          bool          `json:"quake"`
	FloodLevel     int           `json:"floodLevel"`
	QuakeIntensity float64       `json:"quakeIntensity"`
	Temperature    *float64      `json:"temperature,omitempty"`
	Humidity       *float64      `json:"humidity,omitempty"`
	RSSI           int           `json:"rssi"`
	Status         sensor.Status `json:"status"`
	Timestamp      int64         `json:"timestamp"`
}

// Result describes what happened to one reading.
type Result struct {
	Accepted       bool
	Room           roomstate.RoomState
	Classification sensor.Classification
	Alerts         []sensor.Alert
}

// Coordinator runs the per-reading pipeline. Only an invalid reading is reported to
// the caller; downstream failures are logged and counted.
type Coordinator struct {
	classifier *sensor.Classifier
	rooms      *roomstate.Store
	repo       Repository
	notifier   Dispatcher
	publisher  Publisher
	cache      Invalidator
	policy     UnknownRoomPolicy
	now        func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithPublisher sets where live updates go.
func WithPublisher(p Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// WithDispatcher sets where alert notifications go.
func WithDispatcher(d Dispatcher) Option {
	return func(c *Coordinator) { c.notifier = d }
}

// WithInvalidator sets the cache cleared after each accepted reading.
func WithInvalidator(inv Invalidator) Option {
	return func(c *Coordinator) { c.cache = inv }
}

// NewCoordinator wires the pipeline.
func NewCoordinator(classifier *sensor.Classifier, rooms *roomstate.Store, repo Repository, policy UnknownRoomPolicy, opts ...Option) *Coordinator {
	if policy == "" {
		policy = PolicyDrop
	}
	c := &Coordinator{
		classifier: classifier,
		rooms:      rooms,
		repo:       repo,
		policy:     policy,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ingest processes one reading received from source.
func (c *Coordinator) Ingest(ctx context.Context, source string, r sensor.Reading) (Result, error) {
	start := time.Now()
	if err := r.Validate(); err != nil {
		metrics.ObserveReading(source, metrics.ReadingRejected, time.Since(start))
		return Result{}, err
	}

	room, ok := c.rooms.Get(r.RoomID)
	if !ok {
		if c.policy != PolicyCreate {
			slog.Warn("reading for unknown room dropped", "room", r.RoomID, "source", source)
			metrics.ObserveReading(source, metrics.ReadingUnknownRoom, time.Since(start))
			return Result{}, nil
		}
		room = c.provision(ctx, r.RoomID)
	}

	now := c.now()
	cls := c.classifier.Classify(r, room.Name)
	state, ok := c.rooms.Upsert(r, cls.Status)
	if !ok {
		// Rooms are never removed, so this only happens if Get and Upsert disagree.
		return Result{}, fmt.Errorf("room %s disappeared during ingest", r.RoomID)
	}

	c.persistLog(ctx, r, state, cls, now)
	alerts := c.raiseAlerts(ctx, r, state.Room(), now)
	if c.cache != nil {
		c.cache.Invalidate()
	}
	c.publish(r, cls.Status, now)

	metrics.ObserveReading(source, metrics.ReadingAccepted, time.Since(start))
	return Result{Accepted: true, Room: state, Classification: cls, Alerts: alerts}, nil
}

func (c *Coordinator) provision(ctx context.Context, id string) roomstate.RoomState {
	name, location := "Room "+id, "Unknown"
	slog.Info("provisioning unknown room", "room", id)
	state := c.rooms.Register(id, name, location, true)
	if err := c.repo.UpsertRoom(ctx, &model.Room{ID: id, Name: name, Location: location, IsActive: true}); err != nil {
		metrics.IncIngestError(metrics.StageRoom)
		slog.Error("failed to persist provisioned room", "room", id, "err", err)
	}
	return state
}

func (c *Coordinator) persistLog(ctx context.Context, r sensor.Reading, room roomstate.RoomState, cls sensor.Classification, now time.Time) {
	entry := &model.SensorLog{
		RoomID:         r.RoomID,
		RoomName:       room.Name,
		Location:       room.Location,
		Fire:           r.Fire,
		Flood:          r.Flood,
		Quake:          r.Quake,
		FloodLevel:     r.FloodLevel,
		QuakeIntensity: r.QuakeIntensity,
		Temperature:    r.Temperature,
		Humidity:       r.Humidity,
		RSSI:           r.SignalStrength(),
		Status:         string(cls.Status),
		EventType:      string(cls.EventType),
		Message:        cls.Message,
		Timestamp:      r.ObservedAt(now),
		CreatedAt:      now,
	}
	if err := c.repo.InsertSensorLog(ctx, entry); err != nil {
		metrics.IncIngestError(metrics.StageLog)
		slog.Error("failed to persist sensor log", "room", r.RoomID, "err", err)
	}
}

// raiseAlerts records and announces every alert in r. Each alert is handled on its own
// so one failed insert does not suppress the others or their notifications.
func (c *Coordinator) raiseAlerts(ctx context.Context, r sensor.Reading, room sensor.Room, now time.Time) []sensor.Alert {
	alerts := sensor.DeriveAlerts(r, room)
	for _, a := range alerts {
		metrics.IncAlert(string(a.Type), string(a.Severity))
		slog.Warn("alert raised", "room", room.ID, "type", a.Type, "severity", a.Severity, "value", a.Value)

		event := &model.AlertEvent{
			RoomID:    room.ID,
			RoomName:  room.Name,
			AlertType: string(a.Type),
			Severity:  string(a.Severity),
			Value:     a.Value,
			Timestamp: now,
			CreatedAt: now,
		}
		if err := c.repo.InsertAlertEvent(ctx, event); err != nil {
			metrics.IncIngestError(metrics.StageAlert)
			slog.Error("failed to persist alert", "room", room.ID, "type", a.Type, "err", err)
		}
		if c.notifier != nil {
			c.notifier.Dispatch(notification.FromAlert(room.ID, a))
		}
	}
	return alerts
}

func (c *Coordinator) publish(r sensor.Reading, status sensor.Status, now time.Time) {
	if c.publisher == nil {
		return
	}
	c.publisher.Publish(EventSensorUpdate, SensorUpdate{
		ID:             r.RoomID,
		Fire:           r.Fire,
		Flood:          r.Flood,
		Quake:          r.Quake,
		FloodLevel:     r.FloodLevel,
		QuakeIntensity: r.QuakeIntensity,
		Temperature:    r.Temperature,
		Humidity:       r.Humidity,
		RSSI:           r.SignalStrength(),
		Status:         status,
		Timestamp:      r.ObservedAt(now).UnixMilli(),
	})
	c.publisher.Publish(EventRoomsUpdate, c.rooms.List())
}
