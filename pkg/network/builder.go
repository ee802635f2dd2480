// Package network builds and serves the director network for a practice.
package network

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/fernlabs/clover/internal/repositories/appointment"
	"github.com/fernlabs/clover/internal/repositories/networkconnection"
	"github.com/fernlabs/clover/pkg/identity"
	"github.com/fernlabs/clover/pkg/models"
	"github.com/fernlabs/clover/pkg/registry"
	"github.com/fernlabs/clover/pkg/tracing"
)

// DefaultCallDelay is the pause between officers during a build, keeping a
// single build from draining the shared registry budget in a burst.
const DefaultCallDelay = 200 * time.Millisecond

const companyStatusActive = "active"

// RegistryAPI is the registry surface the builder consumes.
type RegistryAPI interface {
	GetCompanyOfficers(ctx context.Context, companyNumber string) ([]registry.OfficerRecord, error)
	GetOfficerAppointments(ctx context.Context, appointmentsLink string) ([]registry.AppointmentRecord, error)
	GetCompanyProfile(ctx context.Context, companyNumber string) (*registry.CompanyRecord, error)
}

// AppointmentStore persists director appointments.
type AppointmentStore interface {
	Upsert(ctx context.Context, appt *models.Appointment) (*appointment.UpsertResult, error)
}

// ConnectionStore persists network connections.
type ConnectionStore interface {
	Upsert(ctx context.Context, connection *models.NetworkConnection) (*networkconnection.UpsertResult, error)
	ListByPractice(ctx context.Context, practiceID string) ([]models.NetworkConnection, error)
	ListBySourceCompany(ctx context.Context, practiceID, sourceCompanyNumber string) ([]models.NetworkConnection, error)
}

// Projector mirrors persisted rows into the graph. A nil projector disables
// projection.
type Projector interface {
	ProjectAppointment(ctx context.Context, director *models.Director, appt *models.Appointment) error
	ProjectConnection(ctx context.Context, connection *models.NetworkConnection) error
}

// EventSink publishes connection lifecycle events. A nil sink disables
// emission.
type EventSink interface {
	EmitConnectionUpserted(ctx context.Context, connection *models.NetworkConnection, isNew bool) error
}

// Builder discovers a source company's director network: it walks the
// company's active officers, resolves each to a stored director, records
// their appointments, and upserts warm-introduction edges to other active
// companies they serve.
type Builder struct {
	registry     RegistryAPI
	resolver     identity.Resolver
	appointments AppointmentStore
	connections  ConnectionStore
	projector    Projector
	events       EventSink
	logger       ectologger.Logger
	callDelay    time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// NewBuilder creates a network builder. projector and events may be nil.
func NewBuilder(
	registryAPI RegistryAPI,
	resolver identity.Resolver,
	appointments AppointmentStore,
	connections ConnectionStore,
	projector Projector,
	events EventSink,
	callDelay time.Duration,
	logger ectologger.Logger,
) *Builder {
	if callDelay < 0 {
		callDelay = DefaultCallDelay
	}
	return &Builder{
		registry:     registryAPI,
		resolver:     resolver,
		appointments: appointments,
		connections:  connections,
		projector:    projector,
		events:       events,
		logger:       logger,
		callDelay:    callDelay,
		sleep:        sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Build runs a full network discovery for one source company of a practice.
// It is safe to re-run: every write is an idempotent upsert.
func (b *Builder) Build(ctx context.Context, practiceID, companyNumber string) (*models.BuildResult, error) {
	ctx, span := tracing.StartSpan(ctx, "network.Builder.Build")
	defer span.End()

	if practiceID == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "practice id is required")
	}
	if companyNumber == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "company number is required")
	}

	log := b.logger.WithContext(ctx).WithFields(map[string]any{
		"practice_id":    practiceID,
		"company_number": companyNumber,
	})

	result := &models.BuildResult{
		PracticeID:    practiceID,
		CompanyNumber: companyNumber,
		Directors:     []models.DirectorSummary{},
	}

	// One up-front profile fetch captures the source company name for every
	// edge this build writes. Losing it costs only the display name.
	sourceName := ""
	if profile, err := b.registry.GetCompanyProfile(ctx, companyNumber); err != nil {
		log.WithError(err).Warn("failed to fetch source company profile")
	} else {
		sourceName = profile.CompanyName
	}
	result.CompanyName = sourceName

	officers, err := b.registry.GetCompanyOfficers(ctx, companyNumber)
	if err != nil {
		log.WithError(err).Error("failed to fetch source company officers")
		return nil, err
	}

	active := make([]registry.OfficerRecord, 0, len(officers))
	for _, officer := range officers {
		if isActiveOfficer(officer) {
			active = append(active, officer)
		}
	}

	if len(active) == 0 {
		log.Info("no active officers found")
		return result, nil
	}

	for i, officer := range active {
		if i > 0 && b.callDelay > 0 {
			if err := b.sleep(ctx, b.callDelay); err != nil {
				return nil, err
			}
		}

		summary, err := b.processOfficer(ctx, practiceID, companyNumber, sourceName, officer)
		if err != nil {
			return nil, err
		}

		result.Directors = append(result.Directors, *summary)
		if summary.Skipped {
			result.DirectorsSkipped++
		} else {
			result.DirectorsProcessed++
		}
		result.TotalOpportunities += len(summary.Opportunities)
	}

	log.WithFields(map[string]any{
		"directors_processed": result.DirectorsProcessed,
		"directors_skipped":   result.DirectorsSkipped,
		"total_opportunities": result.TotalOpportunities,
	}).Info("completed network build")

	return result, nil
}

// processOfficer resolves one officer, records their appointments, and writes
// connection edges for their other active companies. Appointment-history and
// target-profile fetch failures skip the affected unit; persistence failures
// fail the build.
func (b *Builder) processOfficer(ctx context.Context, practiceID, companyNumber, sourceName string, officer registry.OfficerRecord) (*models.DirectorSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "network.Builder.processOfficer")
	defer span.End()

	summary := &models.DirectorSummary{
		Name:          officer.Name,
		Appointments:  []models.Appointment{},
		Opportunities: []models.OpportunitySummary{},
	}

	director, err := b.resolver.Resolve(ctx, officer)
	if err != nil {
		return nil, err
	}
	summary.DirectorID = director.ID

	sourceAppt, err := b.upsertAppointment(ctx, director, &models.Appointment{
		DirectorID:    director.ID,
		CompanyNumber: companyNumber,
		CompanyName:   sourceName,
		Role:          officer.Role,
		AppointedOn:   officer.AppointedOn,
		ResignedOn:    officer.ResignedOn,
	})
	if err != nil {
		return nil, err
	}
	summary.Appointments = append(summary.Appointments, *sourceAppt)

	if officer.AppointmentsLink == "" {
		return summary, nil
	}

	history, err := b.registry.GetOfficerAppointments(ctx, officer.AppointmentsLink)
	if err != nil {
		b.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"director_id": director.ID,
			"officer":     officer.Name,
		}).Warn("failed to fetch officer appointment history, skipping officer")
		summary.Skipped = true
		summary.SkipReason = "failed to fetch appointment history"
		return summary, nil
	}

	for _, record := range history {
		if record.CompanyNumber == "" || record.CompanyNumber == companyNumber {
			continue
		}
		if record.ResignedOn != nil {
			continue
		}

		targetName := record.CompanyName
		var targetSector *string
		var targetStatus string

		profile, err := b.registry.GetCompanyProfile(ctx, record.CompanyNumber)
		detailOK := err == nil
		if detailOK {
			if profile.CompanyName != "" {
				targetName = profile.CompanyName
			}
			targetStatus = profile.CompanyStatus
			if len(profile.SICCodes) > 0 {
				sector := profile.SICCodes[0]
				targetSector = &sector
			}
		} else {
			b.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"target_company_number": record.CompanyNumber,
			}).Warn("failed to fetch target company profile")
		}

		// The appointment is recorded even when the profile fetch failed;
		// only the connection needs confirmed company status.
		appt, err := b.upsertAppointment(ctx, director, &models.Appointment{
			DirectorID:    director.ID,
			CompanyNumber: record.CompanyNumber,
			CompanyName:   targetName,
			Role:          record.Role,
			AppointedOn:   record.AppointedOn,
			ResignedOn:    record.ResignedOn,
		})
		if err != nil {
			return nil, err
		}
		summary.Appointments = append(summary.Appointments, *appt)

		if !detailOK || targetStatus != companyStatusActive {
			continue
		}

		connection, err := b.upsertConnection(ctx, &models.NetworkConnection{
			PracticeID:          practiceID,
			SourceCompanyNumber: companyNumber,
			SourceCompanyName:   sourceName,
			TargetCompanyNumber: record.CompanyNumber,
			TargetCompanyName:   targetName,
			TargetSector:        targetSector,
			ConnectionType:      models.ConnectionTypeDirect,
			ConnectingDirectors: []string{director.ID},
			ConnectionStrength:  1,
		})
		if err != nil {
			return nil, err
		}

		summary.Opportunities = append(summary.Opportunities, models.OpportunitySummary{
			TargetCompanyNumber: connection.TargetCompanyNumber,
			TargetCompanyName:   connection.TargetCompanyName,
			TargetSector:        connection.TargetSector,
		})
	}

	return summary, nil
}

func (b *Builder) upsertAppointment(ctx context.Context, director *models.Director, appt *models.Appointment) (*models.Appointment, error) {
	result, err := b.appointments.Upsert(ctx, appt)
	if err != nil {
		return nil, err
	}

	if b.projector != nil {
		if err := b.projector.ProjectAppointment(ctx, director, result.Appointment); err != nil {
			b.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"appointment_id": result.Appointment.ID,
			}).Warn("failed to project appointment into graph")
		}
	}

	return result.Appointment, nil
}

func (b *Builder) upsertConnection(ctx context.Context, connection *models.NetworkConnection) (*models.NetworkConnection, error) {
	result, err := b.connections.Upsert(ctx, connection)
	if err != nil {
		return nil, err
	}

	if b.projector != nil {
		if err := b.projector.ProjectConnection(ctx, result.Connection); err != nil {
			b.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"connection_id": result.Connection.ID,
			}).Warn("failed to project connection into graph")
		}
	}
	if b.events != nil {
		if err := b.events.EmitConnectionUpserted(ctx, result.Connection, result.IsNew); err != nil {
			b.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"connection_id": result.Connection.ID,
			}).Warn("failed to emit connection event")
		}
	}

	return result.Connection, nil
}

func isActiveOfficer(officer registry.OfficerRecord) bool {
	if officer.ResignedOn != nil {
		return false
	}
	switch officer.Role {
	case models.RoleDirector, models.RoleLLPMember, models.RoleSecretary:
		return true
	}
	return false
}
