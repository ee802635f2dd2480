package appointment

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

var appointmentColumns = []string{
	"id", "director_id", "company_number", "company_name", "role",
	"appointed_on", "resigned_on", "last_observed_at", "created_at", "updated_at",
}

// Repository handles appointment persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new appointment repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// UpsertResult contains the result of an upsert operation
type UpsertResult struct {
	Appointment *models.Appointment
	IsNew       bool
}

// Upsert creates or refreshes an appointment keyed on
// (director_id, company_number, role). Re-observing an existing appointment
// updates its registry-sourced fields and last_observed_at in place.
func (r *Repository) Upsert(ctx context.Context, appointment *models.Appointment) (*UpsertResult, error) {
	ctx, span := tracing.StartSpan(ctx, "appointment.Repository.Upsert")
	defer span.End()

	now := time.Now().UTC()
	id := uuid.New().String()

	ib := database.NewInsertBuilder().
		InsertInto("appointments").
		Cols(appointmentColumns...).
		Values(
			id, appointment.DirectorID, appointment.CompanyNumber, appointment.CompanyName,
			appointment.Role, appointment.AppointedOn, appointment.ResignedOn, now, now, now,
		)
	ub := ib.OnConflict("director_id", "company_number", "role")
	ub.Set(
		ub.Assign("company_name", database.Excluded("company_name")),
		ub.Assign("appointed_on", database.Excluded("appointed_on")),
		ub.Assign("resigned_on", database.Excluded("resigned_on")),
		ub.Assign("last_observed_at", database.Excluded("last_observed_at")),
		ub.Assign("updated_at", database.Excluded("updated_at")),
	)
	ib.Returning(append(append([]string{}, appointmentColumns...), "(xmax = 0) AS inserted")...)

	query, args := ib.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	var result struct {
		models.Appointment
		Inserted bool `db:"inserted"`
	}

	if err := tx.GetContext(ctx, &result, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"director_id":    appointment.DirectorID,
			"company_number": appointment.CompanyNumber,
			"role":           appointment.Role,
		}).Error("Failed to upsert appointment")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert appointment")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit")
	}

	return &UpsertResult{Appointment: &result.Appointment, IsNew: result.Inserted}, nil
}

// ListByDirectorID returns all appointments recorded for a director
func (r *Repository) ListByDirectorID(ctx context.Context, directorID string) ([]models.Appointment, error) {
	ctx, span := tracing.StartSpan(ctx, "appointment.Repository.ListByDirectorID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(appointmentColumns...)
	sb.From("appointments")
	sb.Where(sb.Equal("director_id", directorID))
	sb.OrderBy("appointed_on DESC NULLS LAST")

	query, args := sb.Build()
	var appointments []models.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"director_id": directorID}).Error("Failed to list appointments")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list appointments")
	}
	return appointments, nil
}
