package models

import (
	"time"

	"github.com/lib/pq"
)

const ConnectionTypeDirect = "direct"

// NetworkConnection is an edge from a practice's source company to another
// company reached through a shared director. The edge is unique per
// (practice, source company, target company) and accumulates the directors
// that connect the pair.
type NetworkConnection struct {
	ID                  string         `db:"id" json:"id"`
	PracticeID          string         `db:"practice_id" json:"practiceId"`
	SourceCompanyNumber string         `db:"source_company_number" json:"sourceCompanyNumber"`
	SourceCompanyName   string         `db:"source_company_name" json:"sourceCompanyName"`
	TargetCompanyNumber string         `db:"target_company_number" json:"targetCompanyNumber"`
	TargetCompanyName   string         `db:"target_company_name" json:"targetCompanyName"`
	TargetSector        *string        `db:"target_sector" json:"targetSector,omitempty"`
	ConnectionType      string         `db:"connection_type" json:"connectionType"`
	ConnectingDirectors pq.StringArray `db:"connecting_directors" json:"connectingDirectors"`
	ConnectionStrength  int            `db:"connection_strength" json:"connectionStrength"`
	LastObservedAt      time.Time      `db:"last_observed_at" json:"lastObservedAt"`
	CreatedAt           time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updatedAt"`
}
