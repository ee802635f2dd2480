package network

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/fernlabs/clover/pkg/models"
	"github.com/fernlabs/clover/pkg/tracing"
)

// DirectorLookup resolves director ids to records in one batch.
type DirectorLookup interface {
	GetByIDs(ctx context.Context, ids []string) ([]models.Director, error)
}

// AppointmentLookup reads persisted appointments.
type AppointmentLookup interface {
	ListByDirectorID(ctx context.Context, directorID string) ([]models.Appointment, error)
}

// OpportunityService reads persisted connections and renders them as the
// practice-facing opportunity list.
type OpportunityService struct {
	connections  ConnectionStore
	directors    DirectorLookup
	appointments AppointmentLookup
	logger       ectologger.Logger
}

// NewOpportunityService creates a new opportunity service
func NewOpportunityService(connections ConnectionStore, directors DirectorLookup, appointments AppointmentLookup, logger ectologger.Logger) *OpportunityService {
	return &OpportunityService{
		connections:  connections,
		directors:    directors,
		appointments: appointments,
		logger:       logger,
	}
}

// GetNetworkOpportunities returns the practice's opportunities, newest first.
// Director names are resolved with a single batch lookup; a connection whose
// directors cannot be resolved keeps an empty introduction path rather than
// dropping out of the list.
func (s *OpportunityService) GetNetworkOpportunities(ctx context.Context, practiceID string) ([]models.NetworkOpportunity, error) {
	ctx, span := tracing.StartSpan(ctx, "network.OpportunityService.GetNetworkOpportunities")
	defer span.End()

	if practiceID == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "practice id is required")
	}

	connections, err := s.connections.ListByPractice(ctx, practiceID)
	if err != nil {
		return nil, err
	}

	return s.render(ctx, connections)
}

// GetCompanyConnections returns the connections discovered from one source
// company of the practice, newest first.
func (s *OpportunityService) GetCompanyConnections(ctx context.Context, practiceID, companyNumber string) ([]models.NetworkOpportunity, error) {
	ctx, span := tracing.StartSpan(ctx, "network.OpportunityService.GetCompanyConnections")
	defer span.End()

	if practiceID == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "practice id is required")
	}
	if companyNumber == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "company number is required")
	}

	connections, err := s.connections.ListBySourceCompany(ctx, practiceID, companyNumber)
	if err != nil {
		return nil, err
	}

	return s.render(ctx, connections)
}

// GetDirectorAppointments returns the recorded appointment history for a
// director, most recent appointment first.
func (s *OpportunityService) GetDirectorAppointments(ctx context.Context, directorID string) ([]models.Appointment, error) {
	ctx, span := tracing.StartSpan(ctx, "network.OpportunityService.GetDirectorAppointments")
	defer span.End()

	if directorID == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "director id is required")
	}

	appointments, err := s.appointments.ListByDirectorID(ctx, directorID)
	if err != nil {
		return nil, err
	}
	if appointments == nil {
		appointments = []models.Appointment{}
	}
	return appointments, nil
}

func (s *OpportunityService) render(ctx context.Context, connections []models.NetworkConnection) ([]models.NetworkOpportunity, error) {
	if len(connections) == 0 {
		return []models.NetworkOpportunity{}, nil
	}

	seen := map[string]bool{}
	var directorIDs []string
	for _, connection := range connections {
		for _, id := range connection.ConnectingDirectors {
			if !seen[id] {
				seen[id] = true
				directorIDs = append(directorIDs, id)
			}
		}
	}

	names := map[string]string{}
	if len(directorIDs) > 0 {
		directors, err := s.directors.GetByIDs(ctx, directorIDs)
		if err != nil {
			return nil, err
		}
		for _, director := range directors {
			names[director.ID] = director.Name
		}
	}

	opportunities := make([]models.NetworkOpportunity, 0, len(connections))
	for _, connection := range connections {
		path := []string{}
		for _, id := range connection.ConnectingDirectors {
			if name, ok := names[id]; ok {
				path = append(path, name)
			}
		}

		opportunities = append(opportunities, models.NetworkOpportunity{
			ConnectionID:        connection.ID,
			SourceCompanyNumber: connection.SourceCompanyNumber,
			SourceCompanyName:   connection.SourceCompanyName,
			TargetCompanyNumber: connection.TargetCompanyNumber,
			TargetCompanyName:   connection.TargetCompanyName,
			TargetSector:        connection.TargetSector,
			ConnectionStrength:  connection.ConnectionStrength,
			IntroductionPath:    path,
		})
	}

	return opportunities, nil
}
