package models

// OpportunitySummary is one active-target connection discovered through an
// officer during a build.
type OpportunitySummary struct {
	TargetCompanyNumber string  `json:"targetCompanyNumber"`
	TargetCompanyName   string  `json:"targetCompanyName"`
	TargetSector        *string `json:"targetSector,omitempty"`
}

// DirectorSummary reports the outcome of discovering one officer during a
// network build.
type DirectorSummary struct {
	DirectorID    string               `json:"directorId,omitempty"`
	Name          string               `json:"name"`
	Appointments  []Appointment        `json:"appointments"`
	Opportunities []OpportunitySummary `json:"opportunities"`
	Skipped       bool                 `json:"skipped"`
	SkipReason    string               `json:"skipReason,omitempty"`
}

// BuildResult summarizes a completed network build for a source company.
type BuildResult struct {
	PracticeID         string            `json:"practiceId"`
	CompanyNumber      string            `json:"companyNumber"`
	CompanyName        string            `json:"companyName,omitempty"`
	DirectorsProcessed int               `json:"directorsProcessed"`
	DirectorsSkipped   int               `json:"directorsSkipped"`
	TotalOpportunities int               `json:"totalOpportunities"`
	Directors          []DirectorSummary `json:"directors"`
}

// NetworkOpportunity is a ranked introduction path surfaced to the practice:
// a target company reachable through named directors.
type NetworkOpportunity struct {
	ConnectionID        string   `json:"connectionId"`
	SourceCompanyNumber string   `json:"sourceCompanyNumber"`
	SourceCompanyName   string   `json:"sourceCompanyName"`
	TargetCompanyNumber string   `json:"targetCompanyNumber"`
	TargetCompanyName   string   `json:"targetCompanyName"`
	TargetSector        *string  `json:"targetSector,omitempty"`
	ConnectionStrength  int      `json:"connectionStrength"`
	IntroductionPath    []string `json:"introductionPath"`
}
