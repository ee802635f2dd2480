package director

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/fernlabs/clover/pkg/database"
	"github.com/fernlabs/clover/pkg/models"
	"github.com/fernlabs/clover/pkg/tracing"
)

var directorColumns = []string{
	"id", "external_officer_id", "name", "name_normalized",
	"date_of_birth", "nationality", "created_at", "updated_at",
}

// Repository handles director persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new director repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// GetByExternalOfficerID retrieves a director by the registry's officer id.
// Returns (nil, nil) when no row matches.
func (r *Repository) GetByExternalOfficerID(ctx context.Context, externalID string) (*models.Director, error) {
	ctx, span := tracing.StartSpan(ctx, "director.Repository.GetByExternalOfficerID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(directorColumns...)
	sb.From("directors")
	sb.Where(sb.Equal("external_officer_id", externalID))
	sb.Limit(1)

	query, args := sb.Build()
	var director models.Director
	if err := r.db.GetContext(ctx, &director, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"external_officer_id": externalID}).Error("Failed to get director by external officer id")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get director")
	}
	return &director, nil
}

// FindByExactName retrieves a name-only director record (no external officer
// id yet) by its normalized name. Returns (nil, nil) when no row matches.
func (r *Repository) FindByExactName(ctx context.Context, normalizedName string) (*models.Director, error) {
	ctx, span := tracing.StartSpan(ctx, "director.Repository.FindByExactName")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(directorColumns...)
	sb.From("directors")
	sb.Where(
		sb.Equal("name_normalized", normalizedName),
		sb.IsNull("external_officer_id"),
	)
	sb.OrderBy("updated_at DESC")
	sb.Limit(1)

	query, args := sb.Build()
	var director models.Director
	if err := r.db.GetContext(ctx, &director, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"name_normalized": normalizedName}).Error("Failed to find director by name")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find director")
	}
	return &director, nil
}

// SearchUnlinkedByName returns name-only director records similar to the
// given normalized name, using trigram similarity.
func (r *Repository) SearchUnlinkedByName(ctx context.Context, normalizedName string, limit int) ([]models.Director, error) {
	ctx, span := tracing.StartSpan(ctx, "director.Repository.SearchUnlinkedByName")
	defer span.End()

	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, external_officer_id, name, name_normalized,
		       date_of_birth, nationality, created_at, updated_at
		FROM directors
		WHERE external_officer_id IS NULL
		  AND name_normalized % $1
		ORDER BY similarity(name_normalized, $1) DESC
		LIMIT $2
	`

	var directors []models.Director
	if err := r.db.SelectContext(ctx, &directors, query, normalizedName, limit); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"name_normalized": normalizedName}).Error("Failed to search directors by name")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to search directors")
	}
	return directors, nil
}

// GetByIDs retrieves directors by id
func (r *Repository) GetByIDs(ctx context.Context, ids []string) ([]models.Director, error) {
	ctx, span := tracing.StartSpan(ctx, "director.Repository.GetByIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(directorColumns...)
	sb.From("directors")
	sb.Where(sb.In("id", sqlbuilder.Flatten(ids)...))

	query, args := sb.Build()
	var directors []models.Director
	if err := r.db.SelectContext(ctx, &directors, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"ids": ids}).Error("Failed to get directors by ids")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get directors")
	}
	return directors, nil
}

// Create inserts a new director
func (r *Repository) Create(ctx context.Context, director *models.Director) error {
	ctx, span := tracing.StartSpan(ctx, "director.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	director.CreatedAt = now
	director.UpdatedAt = now

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("directors")
	sb.Cols(directorColumns...)
	sb.Values(
		director.ID, director.ExternalOfficerID, director.Name, director.NameNormalized,
		director.DateOfBirth, director.Nationality, director.CreatedAt, director.UpdatedAt,
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": director.ID, "name": director.Name}).Error("Failed to create director")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create director")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"id": director.ID}).Info("Created director")
	return nil
}

// UpdateDetails updates a director's registry-sourced fields
func (r *Repository) UpdateDetails(ctx context.Context, director *models.Director) error {
	ctx, span := tracing.StartSpan(ctx, "director.Repository.UpdateDetails")
	defer span.End()

	now := time.Now().UTC()
	director.UpdatedAt = now

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("directors")
	sb.Set(
		sb.Assign("external_officer_id", director.ExternalOfficerID),
		sb.Assign("name", director.Name),
		sb.Assign("name_normalized", director.NameNormalized),
		sb.Assign("date_of_birth", director.DateOfBirth),
		sb.Assign("nationality", director.Nationality),
		sb.Assign("updated_at", now),
	)
	sb.Where(sb.Equal("id", director.ID))

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": director.ID}).Error("Failed to update director")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update director")
	}
	return nil
}
