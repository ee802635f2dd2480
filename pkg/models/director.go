package models

import "time"

// Director is a person holding one or more company appointments. Records
// resolved from the registry carry an external officer id; records created
// from name-only sources may have none until a later link step fills it in.
type Director struct {
	ID                string    `db:"id" json:"id"`
	ExternalOfficerID *string   `db:"external_officer_id" json:"externalOfficerId,omitempty"`
	Name              string    `db:"name" json:"name"`
	NameNormalized    string    `db:"name_normalized" json:"-"`
	DateOfBirth       *string   `db:"date_of_birth" json:"dateOfBirth,omitempty"`
	Nationality       *string   `db:"nationality" json:"nationality,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
}
