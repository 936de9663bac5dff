// Package devicesim emulates ESP32 room sensors against the backend's device API.
package devicesim

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// Commands understood by the simulated firmware.
const (
	CommandResetAlarm = "RESET_ALARM"
	CommandTestPing   = "TEST_PING"
)

// Reading is the JSON body a device posts to /api/readings.
type Reading struct {
	ID             string   `json:"id"`
	Fire           bool     `json:"fire"`
	Flood          bool     `json:"flood"`
	Quake          bool     `json:"quake"`
	FloodLevel     int      `json:"floodLevel"`
	QuakeIntensity float64  `json:"quakeIntensity"`
	Temperature    *float64 `json:"temperature,omitempty"`
	Humidity       *float64 `json:"humidity,omitempty"`
	RSSI           int      `json:"rssi"`
	Timestamp      int64    `json:"timestamp"`
}

// Device is the simulated sensor board of one room. Incidents start at random and
// persist until the backend sends RESET_ALARM.
type Device struct {
	RoomID string

	rng            *rand.Rand
	incidentChance float64

	fire           bool
	floodLevel     float64
	quakeIntensity float64
	temperature    float64
	humidity       float64
	rssi           int
}

// NewDevice creates a device whose behaviour is fully determined by seed.
func NewDevice(roomID string, seed uint64, incidentChance float64) *Device {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return &Device{
		RoomID:         roomID,
		rng:            rng,
		incidentChance: incidentChance,
		temperature:    20 + rng.Float64()*4,
		humidity:       40 + rng.Float64()*10,
		rssi:           -40 - rng.IntN(40),
	}
}

// Next advances the simulation by one tick and returns the reading to report.
func (d *Device) Next(now time.Time) Reading {
	d.temperature = clamp(d.temperature+d.rng.NormFloat64()*0.2, 10, 40)
	d.humidity = clamp(d.humidity+d.rng.NormFloat64()*0.5, 20, 90)
	d.rssi = int(clamp(float64(d.rssi)+float64(d.rng.IntN(5)-2), -95, -30))

	if d.rng.Float64() < d.incidentChance {
		switch d.rng.IntN(3) {
		case 0:
			d.fire = true
		case 1:
			d.floodLevel = math.Max(d.floodLevel, 20+d.rng.Float64()*30)
		default:
			d.quakeIntensity = 3 + d.rng.Float64()*4
		}
	}
	if d.fire {
		d.temperature = clamp(d.temperature+2, 10, 80)
	}
	if d.floodLevel > 0 {
		d.floodLevel = clamp(d.floodLevel+d.rng.Float64()*5, 0, 100)
		d.humidity = clamp(d.humidity+1, 20, 100)
	}

	temp := math.Round(d.temperature*10) / 10
	hum := math.Round(d.humidity*10) / 10
	r := Reading{
		ID:             d.RoomID,
		Fire:           d.fire,
		Flood:          d.floodLevel > 30,
		Quake:          d.quakeIntensity > 0,
		FloodLevel:     int(d.floodLevel),
		QuakeIntensity: math.Round(d.quakeIntensity*10) / 10,
		Temperature:    &temp,
		Humidity:       &hum,
		RSSI:           d.rssi,
		Timestamp:      now.UnixMilli(),
	}
	// A quake is a single shock, not a lasting condition.
	d.quakeIntensity = 0
	return r
}

// Apply executes a command received from the backend. It reports whether the device
// knows the command.
func (d *Device) Apply(cmd string) bool {
	switch cmd {
	case CommandResetAlarm:
		d.fire = false
		d.floodLevel = 0
		d.quakeIntensity = 0
		slog.Info("alarm reset", "room", d.RoomID)
		return true
	case CommandTestPing:
		slog.Info("ping received", "room", d.RoomID)
		return true
	}
	slog.Warn("unknown command ignored", "room", d.RoomID, "command", cmd)
	return false
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
