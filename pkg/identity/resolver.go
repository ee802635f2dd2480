package identity

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/fernlabs/clover/pkg/models"
	"github.com/fernlabs/clover/pkg/registry"
	"github.com/fernlabs/clover/pkg/tracing"
)

// DirectorStore is the persistence surface the resolvers need. Lookup
// methods return (nil, nil) when no row matches.
type DirectorStore interface {
	GetByExternalOfficerID(ctx context.Context, externalID string) (*models.Director, error)
	FindByExactName(ctx context.Context, normalizedName string) (*models.Director, error)
	SearchUnlinkedByName(ctx context.Context, normalizedName string, limit int) ([]models.Director, error)
	Create(ctx context.Context, director *models.Director) error
	UpdateDetails(ctx context.Context, director *models.Director) error
}

// Resolver maps a registry officer record to a stored director, creating one
// when no existing record matches.
type Resolver interface {
	Resolve(ctx context.Context, officer registry.OfficerRecord) (*models.Director, error)
}

// EventSink receives notification when a resolver creates a new director.
// A nil sink disables emission.
type EventSink interface {
	EmitDirectorCreated(ctx context.Context, director *models.Director) error
}

// ExternalIDResolver resolves officers by the registry's stable officer id,
// falling back to a secondary resolver when the record carries none.
type ExternalIDResolver struct {
	store    DirectorStore
	fallback Resolver
	events   EventSink
	logger   ectologger.Logger
}

// NewExternalIDResolver creates the primary resolver.
func NewExternalIDResolver(store DirectorStore, fallback Resolver, events EventSink, logger ectologger.Logger) *ExternalIDResolver {
	return &ExternalIDResolver{
		store:    store,
		fallback: fallback,
		events:   events,
		logger:   logger,
	}
}

func (r *ExternalIDResolver) Resolve(ctx context.Context, officer registry.OfficerRecord) (*models.Director, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.ExternalIDResolver.Resolve")
	defer span.End()

	if officer.ExternalOfficerID == "" {
		return r.fallback.Resolve(ctx, officer)
	}

	director, err := r.store.GetByExternalOfficerID(ctx, officer.ExternalOfficerID)
	if err != nil {
		return nil, err
	}
	if director != nil {
		if applyOfficerDetails(director, officer) {
			if err := r.store.UpdateDetails(ctx, director); err != nil {
				return nil, err
			}
		}
		return director, nil
	}

	// A name-only record may predate the external id. Link it rather than
	// creating a duplicate.
	normalized := NormalizeName(officer.Name)
	existing, err := r.store.FindByExactName(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		externalID := officer.ExternalOfficerID
		existing.ExternalOfficerID = &externalID
		applyOfficerDetails(existing, officer)
		if err := r.store.UpdateDetails(ctx, existing); err != nil {
			return nil, err
		}
		r.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"director_id":         existing.ID,
			"external_officer_id": externalID,
		}).Info("linked existing director to external officer id")
		return existing, nil
	}

	return createDirector(ctx, r.store, r.events, r.logger, officer, normalized)
}

// NameResolver resolves officers by normalized name alone, with an optional
// fuzzy pass over unlinked records.
type NameResolver struct {
	store          DirectorStore
	scorer         *Scorer
	fuzzyThreshold float64
	events         EventSink
	logger         ectologger.Logger
}

// NewNameResolver creates the fallback resolver. A fuzzyThreshold of 0
// disables fuzzy matching.
func NewNameResolver(store DirectorStore, fuzzyThreshold float64, events EventSink, logger ectologger.Logger) *NameResolver {
	return &NameResolver{
		store:          store,
		scorer:         NewScorer(),
		fuzzyThreshold: fuzzyThreshold,
		events:         events,
		logger:         logger,
	}
}

func (r *NameResolver) Resolve(ctx context.Context, officer registry.OfficerRecord) (*models.Director, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.NameResolver.Resolve")
	defer span.End()

	normalized := NormalizeName(officer.Name)

	existing, err := r.store.FindByExactName(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if r.fuzzyThreshold > 0 {
		candidates, err := r.store.SearchUnlinkedByName(ctx, normalized, 10)
		if err != nil {
			return nil, err
		}

		var best *models.Director
		bestScore := 0.0
		for i := range candidates {
			score := r.scorer.JaroWinkler(normalized, candidates[i].NameNormalized)
			if score > bestScore {
				bestScore = score
				best = &candidates[i]
			}
		}

		if best != nil && bestScore >= r.fuzzyThreshold {
			r.logger.WithContext(ctx).WithFields(map[string]interface{}{
				"director_id": best.ID,
				"score":       bestScore,
			}).Info("fuzzy matched director by name")
			return best, nil
		}
	}

	return createDirector(ctx, r.store, r.events, r.logger, officer, normalized)
}

func createDirector(ctx context.Context, store DirectorStore, events EventSink, logger ectologger.Logger, officer registry.OfficerRecord, normalized string) (*models.Director, error) {
	director := &models.Director{
		ID:             uuid.New().String(),
		Name:           officer.Name,
		NameNormalized: normalized,
	}
	if officer.ExternalOfficerID != "" {
		externalID := officer.ExternalOfficerID
		director.ExternalOfficerID = &externalID
	}
	if officer.DateOfBirth != "" {
		dob := officer.DateOfBirth
		director.DateOfBirth = &dob
	}
	if officer.Nationality != "" {
		nationality := officer.Nationality
		director.Nationality = &nationality
	}

	if err := store.Create(ctx, director); err != nil {
		return nil, err
	}

	if events != nil {
		if err := events.EmitDirectorCreated(ctx, director); err != nil {
			logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{"director_id": director.ID}).Warn("failed to emit director created event")
		}
	}

	return director, nil
}

// applyOfficerDetails copies fresher registry detail onto the director,
// reporting whether anything changed.
func applyOfficerDetails(director *models.Director, officer registry.OfficerRecord) bool {
	changed := false
	if officer.Name != "" && director.Name != officer.Name {
		director.Name = officer.Name
		director.NameNormalized = NormalizeName(officer.Name)
		changed = true
	}
	if officer.DateOfBirth != "" && (director.DateOfBirth == nil || *director.DateOfBirth != officer.DateOfBirth) {
		dob := officer.DateOfBirth
		director.DateOfBirth = &dob
		changed = true
	}
	if officer.Nationality != "" && (director.Nationality == nil || *director.Nationality != officer.Nationality) {
		nationality := officer.Nationality
		director.Nationality = &nationality
		changed = true
	}
	return changed
}
