// Package alert stores operational alerts and the server-side rules that
// raise them in reaction to bed and request mutations.
package alert

import (
	"time"

	"github.com/google/uuid"
)

// Alert types.
const (
	TypeOccupancyHigh     = "occupancy_high"
	TypeBedEmergency      = "bed_emergency"
	TypeMaintenanceNeeded = "maintenance_needed"
	TypeRequestPending    = "request_pending"
)

// Severities.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Alert is one operational notification. TargetRoles limits who sees it; an
// empty list means everyone.
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

// Targets reports whether the alert is addressed to the given role.
func (a *Alert) Targets(role string) bool {
	if len(a.TargetRoles) == 0 {
		return true
	}
	for _, r := range a.TargetRoles {
		if r == role {
			return true
		}
	}
	return false
}
