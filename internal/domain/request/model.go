// Package request implements emergency bed requests: staff raise them for a
// patient, managers approve or reject them. Terminal decisions never revert.
package request

import (
	"time"

	"github.com/google/uuid"

	"github.com/bedtrack/bedtrack/internal/domain/user"
)

// Request statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether a status can never change again.
func Terminal(status string) bool {
	return status == StatusApproved || status == StatusRejected
}

// Priorities.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

func ValidPriority(priority string) bool {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Request is one emergency bed request. Patient is the populated subject.
type Request struct {
	ID          uuid.UUID `json:"id"`
	Patient     *user.Ref `json:"patientId"`
	Location    string    `json:"location"`
	Ward        string    `json:"ward,omitempty"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
