package bed

import (
	"time"

	"github.com/google/uuid"

	"github.com/bedtrack/bedtrack/internal/domain/user"
)

// Bed statuses.
const (
	StatusAvailable   = "available"
	StatusOccupied    = "occupied"
	StatusMaintenance = "maintenance"
	StatusReserved    = "reserved"
)

// Statuses lists every valid bed status, in display order.
var Statuses = []string{StatusAvailable, StatusOccupied, StatusMaintenance, StatusReserved}

func ValidStatus(status string) bool {
	switch status {
	case StatusAvailable, StatusOccupied, StatusMaintenance, StatusReserved:
		return true
	}
	return false
}

// Bed is one physical bed. Patient is the populated occupant and is non-nil
// exactly when Status is occupied. Version increments on every status update
// and backs the optional optimistic concurrency check.
type Bed struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Ward      string    `json:"ward"`
	Status    string    `json:"status"`
	Patient   *user.Ref `json:"patientId"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Occupancy log status-change tags.
const (
	ChangeAssigned             = "assigned"
	ChangeReleased             = "released"
	ChangeMaintenanceStart     = "maintenance_start"
	ChangeMaintenanceEnd       = "maintenance_end"
	ChangeReserved             = "reserved"
	ChangeReservationCancelled = "reservation_cancelled"
)

// OccupancyLogEntry is one append-only audit record of a bed status change.
type OccupancyLogEntry struct {
	ID           uuid.UUID  `json:"id"`
	BedID        uuid.UUID  `json:"bedId"`
	BedCode      string     `json:"bedCode,omitempty"`
	UserID       *uuid.UUID `json:"userId,omitempty"`
	StatusChange string     `json:"statusChange"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// transitions maps a (previous, next) status pair to its log tag. Pairs not
// listed fall through to the next-status rules below.
var transitions = map[[2]string]string{
	{StatusOccupied, StatusAvailable}:    ChangeReleased,
	{StatusMaintenance, StatusAvailable}: ChangeMaintenanceEnd,
	{StatusReserved, StatusAvailable}:    ChangeReservationCancelled,
}

// ClassifyTransition returns the occupancy-log tag for a status change.
// Unrecognized pairs default to assigned.
func ClassifyTransition(previous, next string) string {
	if change, ok := transitions[[2]string{previous, next}]; ok {
		return change
	}
	switch next {
	case StatusMaintenance:
		return ChangeMaintenanceStart
	case StatusReserved:
		return ChangeReserved
	}
	return ChangeAssigned
}
