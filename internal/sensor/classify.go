package sensor

import (
	"fmt"
	"strconv"
	"strings"
)

// Status is the severity label shown for a room or persisted with a log.
type Status string

const (
	StatusNormal   Status = "normal"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// EventType tags a persisted log entry.
type EventType string

const (
	EventHeartbeat EventType = "heartbeat"
	EventAlert     EventType = "alert"
	EventWarning   EventType = "warning"
	EventCritical  EventType = "critical"
)

// StatusRule selects how Status is derived from a reading.
type StatusRule string

const (
	// StatusRuleStrict marks any raised flag as critical.
	StatusRuleStrict StatusRule = "strict"
	// StatusRuleThreshold only escalates a flood to critical above 50%.
	StatusRuleThreshold StatusRule = "threshold"
)

// ParseStatusRule validates a configured rule name.
func ParseStatusRule(s string) (StatusRule, error) {
	switch StatusRule(s) {
	case StatusRuleStrict, StatusRuleThreshold:
		return StatusRule(s), nil
	case "":
		return StatusRuleStrict, nil
	}
	return "", fmt.Errorf("unknown status rule %q", s)
}

// Classification is the derived view of one reading.
type Classification struct {
	Status    Status    `json:"status"`
	EventType EventType `json:"eventType"`
	Message   string    `json:"message"`
}

// Classifier derives status, event type and message from readings.
type Classifier struct {
	rule StatusRule
}

// NewClassifier returns a classifier using the given status rule.
func NewClassifier(rule StatusRule) *Classifier {
	if rule == "" {
		rule = StatusRuleStrict
	}
	return &Classifier{rule: rule}
}

// Rule returns the status rule in use.
func (c *Classifier) Rule() StatusRule {
	return c.rule
}

// Classify derives the classification of r for the named room.
func (c *Classifier) Classify(r Reading, roomName string) Classification {
	return Classification{
		Status:    c.Status(r),
		EventType: EventTypeOf(r),
		Message:   Message(r, roomName),
	}
}

// Status derives the severity status of r under the classifier's rule.
func (c *Classifier) Status(r Reading) Status {
	if c.rule == StatusRuleThreshold {
		switch {
		case isCritical(r):
			return StatusCritical
		case r.Flood || r.FloodLevel > 30:
			return StatusWarning
		}
		return StatusNormal
	}

	switch {
	case r.Fire || r.Quake || r.Flood:
		return StatusCritical
	case r.FloodLevel > 30:
		return StatusWarning
	}
	return StatusNormal
}

// EventTypeOf derives the log event type. It is evaluated independently of Status and
// may disagree with the strict rule for flood levels in (30, 50].
func EventTypeOf(r Reading) EventType {
	switch {
	case isCritical(r):
		return EventCritical
	case r.Flood || r.FloodLevel > 30:
		return EventWarning
	case r.FloodLevel > 10:
		return EventAlert
	}
	return EventHeartbeat
}

// Message formats the human readable log line for r.
func Message(r Reading, roomName string) string {
	var triggered []string
	if r.Fire {
		triggered = append(triggered, "FIRE DETECTED")
	}
	if r.Flood {
		triggered = append(triggered, fmt.Sprintf("FLOOD %d%%", r.FloodLevel))
	}
	if r.Quake {
		triggered = append(triggered, "QUAKE "+formatIntensity(r.QuakeIntensity))
	}
	if len(triggered) == 0 {
		return "Normal reading from " + roomName
	}
	return strings.Join(triggered, ", ") + " in " + roomName
}

func isCritical(r Reading) bool {
	return r.Fire || r.Quake || (r.Flood && r.FloodLevel > 50)
}

func formatIntensity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
