package sensor

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReading_UnmarshalTracksPresentFields(t *testing.T) {
	var r Reading
	require.NoError(t, json.Unmarshal([]byte(`{"id":"2","flood":true,"floodLevel":35}`), &r))

	assert.Equal(t, "2", r.RoomID)
	assert.True(t, r.Flood)
	assert.Equal(t, 35, r.FloodLevel)
	assert.True(t, r.Has(FieldFlood))
	assert.True(t, r.Has(FieldFloodLevel))
	assert.False(t, r.Has(FieldFire))
	assert.False(t, r.Has(FieldTemperature))
	assert.Equal(t, DefaultRSSI, r.SignalStrength())
}

func TestReading_IDOnlyCarriesNoFields(t *testing.T) {
	var r Reading
	require.NoError(t, json.Unmarshal([]byte(`{"id":"2"}`), &r))

	for _, f := range []Field{FieldFire, FieldFlood, FieldQuake, FieldFloodLevel, FieldQuakeIntensity, FieldRSSI, FieldTimestamp} {
		assert.False(t, r.Has(f))
	}
	assert.True(t, Reading{RoomID: "2"}.Has(FieldFire), "readings built in code carry every field")
}

func TestTimestamp_Unmarshal(t *testing.T) {
	var v struct {
		At Timestamp `json:"at"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"at":1700000000000}`), &v))
	assert.Equal(t, time.UnixMilli(1700000000000), v.At.Time)

	require.NoError(t, json.Unmarshal([]byte(`{"at":"2026-05-01T08:00:00Z"}`), &v))
	assert.Equal(t, time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC), v.At.Time)

	v.At = Timestamp{}
	require.NoError(t, json.Unmarshal([]byte(`{"at":null}`), &v))
	assert.True(t, v.At.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`{"at":"yesterday"}`), &v))
}

func TestReading_NumericIDAndTimestamp(t *testing.T) {
	var r Reading
	require.NoError(t, json.Unmarshal([]byte(`{"id":3,"rssi":-61,"timestamp":1700000000000,"temperature":21.5}`), &r))

	assert.Equal(t, "3", r.RoomID)
	assert.Equal(t, -61, r.SignalStrength())
	assert.Equal(t, time.UnixMilli(1700000000000), r.Timestamp)
	require.NotNil(t, r.Temperature)
	assert.Equal(t, 21.5, *r.Temperature)
}

func TestReading_RFC3339Timestamp(t *testing.T) {
	var r Reading
	require.NoError(t, json.Unmarshal([]byte(`{"id":"1","timestamp":"2026-01-02T03:04:05Z"}`), &r))

	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), r.Timestamp.UTC())
}

func TestReading_Invalid(t *testing.T) {
	var r Reading
	assert.Error(t, json.Unmarshal([]byte(`{"id":"1","timestamp":"yesterday"}`), &r))
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &r))

	require.NoError(t, json.Unmarshal([]byte(`{"fire":true}`), &r))
	assert.ErrorIs(t, r.Validate(), ErrMissingRoomID)
}

func TestReading_BuiltInCodeCarriesEveryField(t *testing.T) {
	r := Reading{RoomID: "1"}
	assert.True(t, r.Has(FieldFire))
	assert.True(t, r.Has(FieldHumidity))

	now := time.Now()
	assert.Equal(t, now, r.ObservedAt(now))
}

func TestRoomID_Unmarshal(t *testing.T) {
	var body struct {
		RoomID RoomID `json:"roomId"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"roomId":3}`), &body))
	assert.Equal(t, RoomID("3"), body.RoomID)

	require.NoError(t, json.Unmarshal([]byte(`{"roomId":"kitchen"}`), &body))
	assert.Equal(t, RoomID("kitchen"), body.RoomID)

	body.RoomID = ""
	require.NoError(t, json.Unmarshal([]byte(`{}`), &body))
	assert.Empty(t, body.RoomID)
}
