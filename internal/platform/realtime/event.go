// Package realtime fans bed-state changes out to connected dashboard
// sessions over WebSockets. A single hub owns the session table; services
// hand it domain payloads through the Broadcaster interface and never touch
// connections directly.
package realtime

import (
	"encoding/json"
	"time"
)

// Event names pushed to connected sessions.
const (
	EventBedUpdated          = "bed-updated"
	EventRequestCreated      = "request-created"
	EventRequestApproved     = "request-approved"
	EventRequestRejected     = "request-rejected"
	EventOccupancyLogUpdated = "occupancy-log-updated"
	EventAlertCreated        = "alert-created"
	EventConnectedUserCount  = "connected-user-count"
)

// Event is the wire envelope for every message pushed to a session.
type Event struct {
	Event     string          `json:"event"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Broadcaster is the write side of the hub as seen by domain services.
type Broadcaster interface {
	Broadcast(event string, payload interface{})
}

// NopBroadcaster discards every event. Used in tests and migrations.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(string, interface{}) {}
