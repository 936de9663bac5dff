package sensor

import (
	"fmt"
	"strings"
)

// AlertType names the condition that raised an alert.
type AlertType string

const (
	AlertFire  AlertType = "fire"
	AlertFlood AlertType = "flood"
	AlertQuake AlertType = "quake"
)

// Severity of an alert.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert thresholds.
const (
	FloodAlertLevel        = 40
	FloodCriticalLevel     = 60
	QuakeAlertIntensity    = 4.0
	QuakeCriticalIntensity = 6.0
)

// Notification priorities understood by ntfy-style endpoints.
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
)

// Room identifies where a reading came from.
type Room struct {
	ID       string
	Name     string
	Location string
}

// Alert is a threshold crossing derived from one reading, together with the
// notification content announcing it.
type Alert struct {
	Type     AlertType
	Severity Severity
	Value    float64

	Title    string
	Body     string
	Priority string
	Tags     []string
}

// DeriveAlerts evaluates the fire, flood and quake rules independently; a single
// reading may raise all three.
func DeriveAlerts(r Reading, room Room) []Alert {
	var alerts []Alert

	if r.Fire {
		alerts = append(alerts, Alert{
			Type:     AlertFire,
			Severity: SeverityCritical,
			Value:    1,
			Title:    "FIRE ALERT - CRITICAL",
			Body:     fmt.Sprintf("Fire detected in %s (%s). Evacuate immediately!", room.Name, room.Location),
			Priority: PriorityUrgent,
			Tags:     []string{"fire", "warning", "rotating_light"},
		})
	}

	if r.Flood && r.FloodLevel > FloodAlertLevel {
		severity := SeverityWarning
		if r.FloodLevel > FloodCriticalLevel {
			severity = SeverityCritical
		}
		alerts = append(alerts, Alert{
			Type:     AlertFlood,
			Severity: severity,
			Value:    float64(r.FloodLevel),
			Title:    "FLOOD ALERT - " + strings.ToUpper(string(severity)),
			Body:     fmt.Sprintf("Flood detected in %s (%s). Water level: %d%%", room.Name, room.Location, r.FloodLevel),
			Priority: priorityFor(severity),
			Tags:     []string{"droplet", "warning"},
		})
	}

	if r.Quake && r.QuakeIntensity > QuakeAlertIntensity {
		severity := SeverityWarning
		if r.QuakeIntensity > QuakeCriticalIntensity {
			severity = SeverityCritical
		}
		alerts = append(alerts, Alert{
			Type:     AlertQuake,
			Severity: severity,
			Value:    r.QuakeIntensity,
			Title:    "EARTHQUAKE ALERT - " + strings.ToUpper(string(severity)),
			Body:     fmt.Sprintf("Earthquake detected in %s (%s). Magnitude: %s", room.Name, room.Location, formatIntensity(r.QuakeIntensity)),
			Priority: priorityFor(severity),
			Tags:     []string{"warning", "zap"},
		})
	}

	return alerts
}

func priorityFor(s Severity) string {
	if s == SeverityCritical {
		return PriorityUrgent
	}
	return PriorityHigh
}
