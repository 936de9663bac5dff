package roomstate

import (
	"sort"
	"sync"
	"time"

	"home-sensor-backend/internal/sensor"
)

// Defaults applied to a room before its first reading arrives.
const (
	defaultTemperature = 22.0
	defaultHumidity    = 45.0
)

// RoomState is the latest known reading and derived status for one room.
type RoomState struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Location       string        `json:"location"`
	Fire           bool          `json:"fire"`
	Flood          bool          `json:"flood"`
	Quake          bool          `json:"quake"`
	FloodLevel     int           `json:"floodLevel"`
	QuakeIntensity float64       `json:"quakeIntensity"`
	RSSI           int           `json:"rssi"`
	Temperature    *float64      `json:"temperature,omitempty"`
	Humidity       *float64      `json:"humidity,omitempty"`
	Status         sensor.Status `json:"status"`
	LastUpdate     int64         `json:"lastUpdate"` // epoch milliseconds
	IsActive       bool          `json:"isActive"`
}

// Room returns the identity used for alert derivation.
func (s RoomState) Room() sensor.Room {
	return sensor.Room{ID: s.ID, Name: s.Name, Location: s.Location}
}

// Aggregate is the whole-house snapshot over active rooms.
type Aggregate struct {
	Fire           bool    `json:"fire"`
	Flood          bool    `json:"flood"`
	Quake          bool    `json:"quake"`
	FloodLevel     int     `json:"floodLevel"`
	QuakeIntensity float64 `json:"quakeIntensity"`
	RSSI           int     `json:"rssi"`
	Timestamp      int64   `json:"timestamp"`
}

// Store holds the latest RoomState per room. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*RoomState
	now   func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		rooms: make(map[string]*RoomState),
		now:   time.Now,
	}
}

// Register adds a room with default readings. An already known room only has its
// name, location and active flag refreshed.
func (s *Store) Register(id, name, location string, active bool) RoomState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.rooms[id]; ok {
		existing.Name = name
		existing.Location = location
		existing.IsActive = active
		return copyState(existing)
	}

	temp, hum := defaultTemperature, defaultHumidity
	st := &RoomState{
		ID:          id,
		Name:        name,
		Location:    location,
		RSSI:        sensor.DefaultRSSI,
		Temperature: &temp,
		Humidity:    &hum,
		Status:      sensor.StatusNormal,
		LastUpdate:  s.now().UnixMilli(),
		IsActive:    active,
	}
	s.rooms[id] = st
	return copyState(st)
}

// Get returns the state of a room.
func (s *Store) Get(id string) (RoomState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.rooms[id]
	if !ok {
		return RoomState{}, false
	}
	return copyState(st), true
}

// Upsert merges the fields present in r onto the room's state and stamps it with the
// given status. Fields the device did not send keep their previous values.
func (s *Store) Upsert(r sensor.Reading, status sensor.Status) (RoomState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rooms[r.RoomID]
	if !ok {
		return RoomState{}, false
	}

	if r.Has(sensor.FieldFire) {
		st.Fire = r.Fire
	}
	if r.Has(sensor.FieldFlood) {
		st.Flood = r.Flood
	}
	if r.Has(sensor.FieldQuake) {
		st.Quake = r.Quake
	}
	if r.Has(sensor.FieldFloodLevel) {
		st.FloodLevel = r.FloodLevel
	}
	if r.Has(sensor.FieldQuakeIntensity) {
		st.QuakeIntensity = r.QuakeIntensity
	}
	if r.Has(sensor.FieldRSSI) && r.RSSI != nil {
		st.RSSI = *r.RSSI
	}
	if r.Has(sensor.FieldTemperature) && r.Temperature != nil {
		v := *r.Temperature
		st.Temperature = &v
	}
	if r.Has(sensor.FieldHumidity) && r.Humidity != nil {
		v := *r.Humidity
		st.Humidity = &v
	}

	st.Status = status
	st.IsActive = true
	st.LastUpdate = s.now().UnixMilli()
	return copyState(st), true
}

// List returns a snapshot of every room ordered by id.
func (s *Store) List() []RoomState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RoomState, 0, len(s.rooms))
	for _, st := range s.rooms {
		out = append(out, copyState(st))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns the ids of all known rooms.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Aggregate summarises the active rooms: any raised flag, the highest flood level and
// quake intensity, and the mean signal strength.
func (s *Store) Aggregate() Aggregate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var agg Aggregate
	var rssiSum, active int
	for _, st := range s.rooms {
		if !st.IsActive {
			continue
		}
		agg.Fire = agg.Fire || st.Fire
		agg.Flood = agg.Flood || st.Flood
		agg.Quake = agg.Quake || st.Quake
		if st.FloodLevel > agg.FloodLevel {
			agg.FloodLevel = st.FloodLevel
		}
		if st.QuakeIntensity > agg.QuakeIntensity {
			agg.QuakeIntensity = st.QuakeIntensity
		}
		rssiSum += st.RSSI
		active++
	}
	if active > 0 {
		agg.RSSI = rssiSum / active
	}
	agg.Timestamp = s.now().UnixMilli()
	return agg
}

func copyState(st *RoomState) RoomState {
	out := *st
	if st.Temperature != nil {
		v := *st.Temperature
		out.Temperature = &v
	}
	if st.Humidity != nil {
		v := *st.Humidity
		out.Humidity = &v
	}
	return out
}
