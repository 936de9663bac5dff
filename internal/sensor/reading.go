package sensor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultRSSI is recorded when a device omits its signal strength.
const DefaultRSSI = -45

// Field identifies one optional member of a Reading's JSON body.
type Field uint16

const (
	FieldFire Field = 1 << iota
	FieldFlood
	FieldQuake
	FieldFloodLevel
	FieldQuakeIntensity
	FieldTemperature
	FieldHumidity
	FieldRSSI
	FieldTimestamp
)

// ErrMissingRoomID is returned when a decoded reading has no room id.
var ErrMissingRoomID = errors.New("reading: missing room id")

// Reading is one raw sensor sample reported by a device for a room.
type Reading struct {
	RoomID         string    `json:"id"`
	Fire           bool      `json:"fire"`
	Flood          bool      `json:"flood"`
	Quake          bool      `json:"quake"`
	FloodLevel     int       `json:"floodLevel"`
	QuakeIntensity float64   `json:"quakeIntensity"`
	Temperature    *float64  `json:"temperature,omitempty"`
	Humidity       *float64  `json:"humidity,omitempty"`
	RSSI           *int      `json:"rssi,omitempty"`
	Timestamp      time.Time `json:"timestamp"`

	// present records which fields appeared in the decoded body. A Reading built in
	// code rather than decoded has decoded unset and is treated as carrying every field.
	present Field
	decoded bool
}

type wireReading struct {
	RoomID         json.RawMessage `json:"id"`
	Fire           *bool           `json:"fire"`
	Flood          *bool           `json:"flood"`
	Quake          *bool           `json:"quake"`
	FloodLevel     *float64        `json:"floodLevel"`
	QuakeIntensity *float64        `json:"quakeIntensity"`
	Temperature    *float64        `json:"temperature"`
	Humidity       *float64        `json:"humidity"`
	RSSI           *float64        `json:"rssi"`
	Timestamp      json.RawMessage `json:"timestamp"`
}

// UnmarshalJSON decodes a device payload. Devices send the room id either as a string
// or a bare number, and the timestamp as epoch milliseconds or an RFC3339 string.
func (r *Reading) UnmarshalJSON(data []byte) error {
	var w wireReading
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	id, err := decodeRoomID(w.RoomID)
	if err != nil {
		return err
	}

	*r = Reading{RoomID: id, decoded: true}
	if w.Fire != nil {
		r.Fire = *w.Fire
		r.present |= FieldFire
	}
	if w.Flood != nil {
		r.Flood = *w.Flood
		r.present |= FieldFlood
	}
	if w.Quake != nil {
		r.Quake = *w.Quake
		r.present |= FieldQuake
	}
	if w.FloodLevel != nil {
		r.FloodLevel = int(*w.FloodLevel)
		r.present |= FieldFloodLevel
	}
	if w.QuakeIntensity != nil {
		r.QuakeIntensity = *w.QuakeIntensity
		r.present |= FieldQuakeIntensity
	}
	if w.Temperature != nil {
		r.Temperature = w.Temperature
		r.present |= FieldTemperature
	}
	if w.Humidity != nil {
		r.Humidity = w.Humidity
		r.present |= FieldHumidity
	}
	if w.RSSI != nil {
		rssi := int(*w.RSSI)
		r.RSSI = &rssi
		r.present |= FieldRSSI
	}
	if ts, ok, err := decodeTimestamp(w.Timestamp); err != nil {
		return err
	} else if ok {
		r.Timestamp = ts
		r.present |= FieldTimestamp
	}
	return nil
}

// Has reports whether the field was supplied by the device.
func (r Reading) Has(f Field) bool {
	if !r.decoded {
		return true
	}
	return r.present&f != 0
}

// Validate checks the reading is usable for ingestion.
func (r Reading) Validate() error {
	if r.RoomID == "" {
		return ErrMissingRoomID
	}
	return nil
}

// SignalStrength returns the reported RSSI or DefaultRSSI.
func (r Reading) SignalStrength() int {
	if r.RSSI == nil {
		return DefaultRSSI
	}
	return *r.RSSI
}

// ObservedAt returns the device timestamp, or now when the device sent none.
func (r Reading) ObservedAt(now time.Time) time.Time {
	if r.Timestamp.IsZero() {
		return now
	}
	return r.Timestamp
}

func decodeRoomID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("reading: invalid id: %w", err)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("reading: invalid id: %w", err)
	}
	return n.String(), nil
}

func decodeTimestamp(raw json.RawMessage) (time.Time, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, false, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, false, fmt.Errorf("reading: invalid timestamp: %w", err)
		}
		if s == "" {
			return time.Time{}, false, nil
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("reading: invalid timestamp %q: %w", s, err)
		}
		return ts, true, nil
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}, false, fmt.Errorf("reading: invalid timestamp: %w", err)
	}
	if ms <= 0 {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(int64(ms)), true, nil
}

// RoomID is a room identifier that decodes from either a JSON string or number.
type RoomID string

// UnmarshalJSON accepts "3" and 3 alike.
func (id *RoomID) UnmarshalJSON(data []byte) error {
	s, err := decodeRoomID(data)
	if err != nil {
		return err
	}
	*id = RoomID(s)
	return nil
}

// Timestamp is an instant sent as epoch milliseconds or an RFC3339 string. Null, zero
// and empty values decode to the zero time.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON decodes the same forms a Reading accepts for its timestamp.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	t, _, err := decodeTimestamp(data)
	if err != nil {
		return err
	}
	ts.Time = t
	return nil
}
