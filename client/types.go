// Package client is a Go client for the bedtrack API. It keeps a local
// snapshot of beds and emergency requests reconciled against server pushes,
// falls back to the cached snapshot while offline, and re-baselines over
// REST after every reconnect.
package client

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Wire types mirroring the server's JSON shapes.

type UserRef struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  string    `json:"role"`
}

type Bed struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Ward      string    `json:"ward"`
	Status    string    `json:"status"`
	Patient   *UserRef  `json:"patientId"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (b Bed) Identity() string { return b.ID.String() }

type Request struct {
	ID          uuid.UUID `json:"id"`
	Patient     *UserRef  `json:"patientId"`
	Location    string    `json:"location"`
	Ward        string    `json:"ward,omitempty"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (r Request) Identity() string { return r.ID.String() }

type Alert struct {
	ID          uuid.UUID  `json:"id"`
	Type        string     `json:"type"`
	Severity    string     `json:"severity"`
	Message     string     `json:"message"`
	BedID       *uuid.UUID `json:"bedId,omitempty"`
	RequestID   *uuid.UUID `json:"requestId,omitempty"`
	TargetRoles []string   `json:"targetRoles"`
	Read        bool       `json:"read"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Event is the envelope every server push arrives in.
type Event struct {
	Event     string          `json:"event"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Event names, matching the server.
const (
	EventBedUpdated          = "bed-updated"
	EventRequestCreated      = "request-created"
	EventRequestApproved     = "request-approved"
	EventRequestRejected     = "request-rejected"
	EventOccupancyLogUpdated = "occupancy-log-updated"
	EventAlertCreated        = "alert-created"
	EventConnectedUserCount  = "connected-user-count"
)

// envelope is the server's uniform response body.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Count   *int            `json:"count,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}
