package registry

import (
	"fmt"
	"strings"
	"time"
)

// dateLayout is the wire format used by the registry for plain dates.
const dateLayout = "2006-01-02"

// Envelope is the registry's standard paginated list wrapper.
type Envelope[T any] struct {
	Items        []T `json:"items"`
	TotalResults int `json:"total_results"`
	ItemsPerPage int `json:"items_per_page"`
	StartIndex   int `json:"start_index"`
}

// wireDateOfBirth is the registry's partial date of birth.
type wireDateOfBirth struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

type wireOfficerLinks struct {
	Officer struct {
		Appointments string `json:"appointments"`
	} `json:"officer"`
}

// wireOfficer is an entry in a company's officer list.
type wireOfficer struct {
	Name        string           `json:"name"`
	OfficerRole string           `json:"officer_role"`
	AppointedOn string           `json:"appointed_on"`
	ResignedOn  string           `json:"resigned_on"`
	DateOfBirth *wireDateOfBirth `json:"date_of_birth"`
	Nationality string           `json:"nationality"`
	Links       wireOfficerLinks `json:"links"`
}

type wireAppointedTo struct {
	CompanyNumber string `json:"company_number"`
	CompanyName   string `json:"company_name"`
	CompanyStatus string `json:"company_status"`
}

// wireAppointment is an entry in an officer's appointment list.
type wireAppointment struct {
	AppointedTo wireAppointedTo `json:"appointed_to"`
	OfficerRole string          `json:"officer_role"`
	AppointedOn string          `json:"appointed_on"`
	ResignedOn  string          `json:"resigned_on"`
}

// OfficerRecord is a normalized officer from a company's officer list.
type OfficerRecord struct {
	// ExternalOfficerID is the registry's stable officer identifier,
	// extracted from the appointments link. Empty when the registry
	// returned no link.
	ExternalOfficerID string
	Name              string
	Role              string
	AppointedOn       *time.Time
	ResignedOn        *time.Time
	// DateOfBirth is a partial date in YYYY-MM form, empty when unknown.
	DateOfBirth string
	Nationality string
	// AppointmentsLink is the opaque path to the officer's appointment list.
	AppointmentsLink string
}

// AppointmentRecord is a normalized entry from an officer's appointment list.
type AppointmentRecord struct {
	CompanyNumber string
	CompanyName   string
	CompanyStatus string
	Role          string
	AppointedOn   *time.Time
	ResignedOn    *time.Time
}

// CompanyRecord is a normalized company profile.
type CompanyRecord struct {
	CompanyNumber string `json:"company_number"`
	CompanyName   string `json:"company_name"`
	CompanyStatus string `json:"company_status"`
	SICCodes      []string
}

// wireCompany is the registry's company profile.
type wireCompany struct {
	CompanyNumber string   `json:"company_number"`
	CompanyName   string   `json:"company_name"`
	CompanyStatus string   `json:"company_status"`
	SICCodes      []string `json:"sic_codes"`
}

// NormalizeRole lowercases a registry role and replaces spaces with dashes,
// so "LLP Member" and "llp-member" compare equal.
func NormalizeRole(role string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(role)), " ", "-")
}

// ExtractOfficerID pulls the officer identifier out of an appointments link
// like "/officers/abc123/appointments". Returns "" when the link has no
// usable segment.
func ExtractOfficerID(appointmentsLink string) string {
	link := strings.TrimSuffix(strings.TrimRight(appointmentsLink, "/"), "/appointments")
	idx := strings.LastIndex(link, "/")
	if idx < 0 || idx == len(link)-1 {
		return ""
	}
	return link[idx+1:]
}

func parseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil
	}
	return &t
}

func formatDateOfBirth(dob *wireDateOfBirth) string {
	if dob == nil || dob.Year == 0 {
		return ""
	}
	if dob.Month == 0 {
		return fmt.Sprintf("%04d", dob.Year)
	}
	return fmt.Sprintf("%04d-%02d", dob.Year, dob.Month)
}

func (w wireOfficer) toRecord() OfficerRecord {
	link := w.Links.Officer.Appointments
	return OfficerRecord{
		ExternalOfficerID: ExtractOfficerID(link),
		Name:              strings.TrimSpace(w.Name),
		Role:              NormalizeRole(w.OfficerRole),
		AppointedOn:       parseDate(w.AppointedOn),
		ResignedOn:        parseDate(w.ResignedOn),
		DateOfBirth:       formatDateOfBirth(w.DateOfBirth),
		Nationality:       strings.TrimSpace(w.Nationality),
		AppointmentsLink:  link,
	}
}

func (w wireAppointment) toRecord() AppointmentRecord {
	return AppointmentRecord{
		CompanyNumber: w.AppointedTo.CompanyNumber,
		CompanyName:   w.AppointedTo.CompanyName,
		CompanyStatus: strings.ToLower(strings.TrimSpace(w.AppointedTo.CompanyStatus)),
		Role:          NormalizeRole(w.OfficerRole),
		AppointedOn:   parseDate(w.AppointedOn),
		ResignedOn:    parseDate(w.ResignedOn),
	}
}

func (w wireCompany) toRecord() CompanyRecord {
	return CompanyRecord{
		CompanyNumber: w.CompanyNumber,
		CompanyName:   w.CompanyName,
		CompanyStatus: strings.ToLower(strings.TrimSpace(w.CompanyStatus)),
		SICCodes:      w.SICCodes,
	}
}
