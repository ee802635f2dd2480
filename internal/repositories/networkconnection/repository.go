package networkconnection

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/fernlabs/clover/pkg/database"
	"github.com/fernlabs/clover/pkg/models"
	"github.com/fernlabs/clover/pkg/tracing"
)

var connectionColumns = []string{
	"id", "practice_id", "source_company_number", "source_company_name",
	"target_company_number", "target_company_name", "target_sector",
	"connection_type", "connecting_directors", "connection_strength",
	"last_observed_at", "created_at", "updated_at",
}

// Repository handles network connection persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new network connection repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// UpsertResult contains the result of an upsert operation
type UpsertResult struct {
	Connection *models.NetworkConnection
	IsNew      bool
}

// Upsert creates or merges a connection keyed on
// (practice_id, source_company_number, target_company_number). Re-observing
// an existing edge unions its connecting directors in the database, so
// concurrent builds never lose a director from the set.
func (r *Repository) Upsert(ctx context.Context, connection *models.NetworkConnection) (*UpsertResult, error) {
	ctx, span := tracing.StartSpan(ctx, "networkconnection.Repository.Upsert")
	defer span.End()

	now := time.Now().UTC()
	id := uuid.New().String()

	query := `
		INSERT INTO network_connections (
			id, practice_id, source_company_number, source_company_name,
			target_company_number, target_company_name, target_sector,
			connection_type, connecting_directors, connection_strength,
			last_observed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (practice_id, source_company_number, target_company_number)
		DO UPDATE SET
			source_company_name = EXCLUDED.source_company_name,
			target_company_name = EXCLUDED.target_company_name,
			target_sector = COALESCE(EXCLUDED.target_sector, network_connections.target_sector),
			connecting_directors = (
				SELECT ARRAY(
					SELECT DISTINCT e
					FROM unnest(network_connections.connecting_directors || EXCLUDED.connecting_directors) AS e
					ORDER BY e
				)
			),
			last_observed_at = EXCLUDED.last_observed_at,
			updated_at = EXCLUDED.updated_at
		RETURNING
			id, practice_id, source_company_number, source_company_name,
			target_company_number, target_company_name, target_sector,
			connection_type, connecting_directors, connection_strength,
			last_observed_at, created_at, updated_at,
			(xmax = 0) AS inserted
	`

	connectionType := connection.ConnectionType
	if connectionType == "" {
		connectionType = models.ConnectionTypeDirect
	}
	strength := connection.ConnectionStrength
	if strength <= 0 {
		strength = 1
	}

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	var result struct {
		models.NetworkConnection
		Inserted bool `db:"inserted"`
	}

	err = tx.GetContext(ctx, &result, query,
		id, connection.PracticeID, connection.SourceCompanyNumber, connection.SourceCompanyName,
		connection.TargetCompanyNumber, connection.TargetCompanyName, connection.TargetSector,
		connectionType, connection.ConnectingDirectors, strength,
		now, now, now,
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"practice_id":           connection.PracticeID,
			"source_company_number": connection.SourceCompanyNumber,
			"target_company_number": connection.TargetCompanyNumber,
		}).Error("Failed to upsert network connection")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert network connection")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit")
	}

	return &UpsertResult{Connection: &result.NetworkConnection, IsNew: result.Inserted}, nil
}

// ListByPractice returns all connections recorded for a practice, newest first
func (r *Repository) ListByPractice(ctx context.Context, practiceID string) ([]models.NetworkConnection, error) {
	ctx, span := tracing.StartSpan(ctx, "networkconnection.Repository.ListByPractice")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(connectionColumns...)
	sb.From("network_connections")
	sb.Where(sb.Equal("practice_id", practiceID))
	sb.OrderBy("created_at DESC")

	query, args := sb.Build()
	var connections []models.NetworkConnection
	if err := r.db.SelectContext(ctx, &connections, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"practice_id": practiceID}).Error("Failed to list network connections")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list network connections")
	}
	return connections, nil
}

// ListBySourceCompany returns connections for one source company of a practice
func (r *Repository) ListBySourceCompany(ctx context.Context, practiceID, sourceCompanyNumber string) ([]models.NetworkConnection, error) {
	ctx, span := tracing.StartSpan(ctx, "networkconnection.Repository.ListBySourceCompany")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(connectionColumns...)
	sb.From("network_connections")
	sb.Where(
		sb.Equal("practice_id", practiceID),
		sb.Equal("source_company_number", sourceCompanyNumber),
	)
	sb.OrderBy("created_at DESC")

	query, args := sb.Build()
	var connections []models.NetworkConnection
	if err := r.db.SelectContext(ctx, &connections, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"practice_id": practiceID, "source_company_number": sourceCompanyNumber}).Error("Failed to list network connections")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list network connections")
	}
	return connections, nil
}
