package user

import (
	"time"

	"github.com/google/uuid"
)

// Staff and patient roles. Role gates what a caller may do over REST and
// which alerts are addressed to them.
const (
	RoleNurse         = "nurse"
	RoleDoctor        = "doctor"
	RoleManager       = "manager"
	RoleHospitalAdmin = "hospital_admin"
	RolePatient       = "patient"
)

// StaffRoles are the roles allowed to hold a session against the API.
var StaffRoles = []string{RoleNurse, RoleDoctor, RoleManager, RoleHospitalAdmin}

func ValidRole(role string) bool {
	switch role {
	case RoleNurse, RoleDoctor, RoleManager, RoleHospitalAdmin, RolePatient:
		return true
	}
	return false
}

type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Ref is the embedded shape of a user inside other payloads, for example a
// bed's current occupant.
type Ref struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  string    `json:"role"`
}

func (u *User) Ref() Ref {
	return Ref{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}
