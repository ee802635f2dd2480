package models

import "time"

// Roles treated as active board-level positions.
const (
	RoleDirector  = "director"
	RoleLLPMember = "llp-member"
	RoleSecretary = "secretary"
)

// Appointment records a director's position at a company as reported by the
// registry. The (director, company, role) triple is unique.
type Appointment struct {
	ID             string     `db:"id" json:"id"`
	DirectorID     string     `db:"director_id" json:"directorId"`
	CompanyNumber  string     `db:"company_number" json:"companyNumber"`
	CompanyName    string     `db:"company_name" json:"companyName"`
	Role           string     `db:"role" json:"role"`
	AppointedOn    *time.Time `db:"appointed_on" json:"appointedOn,omitempty"`
	ResignedOn     *time.Time `db:"resigned_on" json:"resignedOn,omitempty"`
	LastObservedAt time.Time  `db:"last_observed_at" json:"lastObservedAt"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsActive reports whether the appointment is a current board-level position:
// not resigned and holding one of the recognized active roles.
func (a *Appointment) IsActive() bool {
	if a.ResignedOn != nil {
		return false
	}
	switch a.Role {
	case RoleDirector, RoleLLPMember, RoleSecretary:
		return true
	}
	return false
}
