package graph

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/fernlabs/clover/pkg/models"
	"github.com/fernlabs/clover/pkg/tracing"
)

// ProjectionService mirrors persisted directors, appointments, and network
// connections into the graph for path queries.
type ProjectionService struct {
	client *Client
	logger ectologger.Logger
}

// NewProjectionService creates a new projection service
func NewProjectionService(client *Client, logger ectologger.Logger) *ProjectionService {
	return &ProjectionService{
		client: client,
		logger: logger,
	}
}

// ProjectAppointment upserts the director and company nodes and the
// OFFICER_OF edge between them.
func (s *ProjectionService) ProjectAppointment(ctx context.Context, director *models.Director, appointment *models.Appointment) error {
	ctx, span := tracing.StartSpan(ctx, "graph.ProjectionService.ProjectAppointment")
	defer span.End()

	cypher := `
		MERGE (d:Director {id: $director_id})
		SET d.name = $director_name
		MERGE (c:Company {company_number: $company_number})
		SET c.name = $company_name
		MERGE (d)-[r:OFFICER_OF]->(c)
		SET r.role = $role,
		    r.last_observed_at = $last_observed_at
		RETURN r
	`

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"director_id":      director.ID,
			"director_name":    director.Name,
			"company_number":   appointment.CompanyNumber,
			"company_name":     appointment.CompanyName,
			"role":             appointment.Role,
			"last_observed_at": appointment.LastObservedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})

	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"director_id":    director.ID,
			"company_number": appointment.CompanyNumber,
		}).Error("Failed to project appointment into graph")
		return fmt.Errorf("failed to project appointment: %w", err)
	}

	return nil
}

// ProjectConnection upserts company nodes for both ends of a connection and
// the SHARED_DIRECTOR edge between them.
func (s *ProjectionService) ProjectConnection(ctx context.Context, connection *models.NetworkConnection) error {
	ctx, span := tracing.StartSpan(ctx, "graph.ProjectionService.ProjectConnection")
	defer span.End()

	cypher := `
		MERGE (s:Company {company_number: $source_company_number})
		SET s.name = $source_company_name
		MERGE (t:Company {company_number: $target_company_number})
		SET t.name = $target_company_name
		MERGE (s)-[r:SHARED_DIRECTOR {practice_id: $practice_id}]->(t)
		SET r.connecting_directors = $connecting_directors,
		    r.connection_strength = $connection_strength,
		    r.last_observed_at = $last_observed_at
		RETURN r
	`

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"practice_id":           connection.PracticeID,
			"source_company_number": connection.SourceCompanyNumber,
			"source_company_name":   connection.SourceCompanyName,
			"target_company_number": connection.TargetCompanyNumber,
			"target_company_name":   connection.TargetCompanyName,
			"connecting_directors":  []string(connection.ConnectingDirectors),
			"connection_strength":   connection.ConnectionStrength,
			"last_observed_at":      connection.LastObservedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})

	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"practice_id":           connection.PracticeID,
			"source_company_number": connection.SourceCompanyNumber,
			"target_company_number": connection.TargetCompanyNumber,
		}).Error("Failed to project connection into graph")
		return fmt.Errorf("failed to project connection: %w", err)
	}

	return nil
}
