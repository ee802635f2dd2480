package network

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernlabs/clover/pkg/models"
)

type fakeDirectorLookup struct {
	directors map[string]models.Director
	calls     int
}

func (f *fakeDirectorLookup) GetByIDs(_ context.Context, ids []string) ([]models.Director, error) {
	f.calls++
	var out []models.Director
	for _, id := range ids {
		if director, ok := f.directors[id]; ok {
			out = append(out, director)
		}
	}
	return out, nil
}

type fakeAppointmentLookup struct {
	byDirector map[string][]models.Appointment
}

func (f *fakeAppointmentLookup) ListByDirectorID(_ context.Context, directorID string) ([]models.Appointment, error) {
	return f.byDirector[directorID], nil
}

func newTestOpportunityService(conns *fakeConnectionStore, directors *fakeDirectorLookup, appointments *fakeAppointmentLookup) *OpportunityService {
	if appointments == nil {
		appointments = &fakeAppointmentLookup{}
	}
	return NewOpportunityService(conns, directors, appointments, testLogger())
}

func TestOpportunityService_GetNetworkOpportunities(t *testing.T) {
	ctx := context.Background()
	sector := "62020"

	t.Run("renders connections newest first with introduction paths", func(t *testing.T) {
		conns := newFakeConnectionStore()
		now := time.Now().UTC()
		_, err := conns.Upsert(ctx, &models.NetworkConnection{
			PracticeID:          "practice-1",
			SourceCompanyNumber: "00000001",
			SourceCompanyName:   "SOURCE LTD",
			TargetCompanyNumber: "00000002",
			TargetCompanyName:   "TARGET LTD",
			TargetSector:        &sector,
			ConnectionType:      models.ConnectionTypeDirect,
			ConnectingDirectors: []string{"d1"},
			ConnectionStrength:  1,
			CreatedAt:           now,
		})
		require.NoError(t, err)
		_, err = conns.Upsert(ctx, &models.NetworkConnection{
			PracticeID:          "practice-1",
			SourceCompanyNumber: "00000001",
			TargetCompanyNumber: "00000003",
			TargetCompanyName:   "OTHER LTD",
			ConnectionType:      models.ConnectionTypeDirect,
			ConnectingDirectors: []string{"d1", "d2"},
			ConnectionStrength:  1,
			CreatedAt:           now.Add(time.Minute),
		})
		require.NoError(t, err)

		lookup := &fakeDirectorLookup{directors: map[string]models.Director{
			"d1": {ID: "d1", Name: "SMITH, Jane"},
			"d2": {ID: "d2", Name: "JONES, Robert"},
		}}
		service := newTestOpportunityService(conns, lookup, nil)

		opportunities, err := service.GetNetworkOpportunities(ctx, "practice-1")
		require.NoError(t, err)
		require.Len(t, opportunities, 2)

		// Store order is newest first; the service preserves it.
		assert.Equal(t, "00000003", opportunities[0].TargetCompanyNumber)
		assert.Equal(t, []string{"SMITH, Jane", "JONES, Robert"}, opportunities[0].IntroductionPath)

		assert.Equal(t, "00000002", opportunities[1].TargetCompanyNumber)
		assert.Equal(t, "TARGET LTD", opportunities[1].TargetCompanyName)
		require.NotNil(t, opportunities[1].TargetSector)
		assert.Equal(t, sector, *opportunities[1].TargetSector)
		assert.Equal(t, []string{"SMITH, Jane"}, opportunities[1].IntroductionPath)

		// One batch lookup regardless of connection count.
		assert.Equal(t, 1, lookup.calls)
	})

	t.Run("unknown director omitted from path, connection kept", func(t *testing.T) {
		conns := newFakeConnectionStore()
		_, err := conns.Upsert(ctx, &models.NetworkConnection{
			PracticeID:          "practice-1",
			SourceCompanyNumber: "00000001",
			TargetCompanyNumber: "00000002",
			ConnectingDirectors: []string{"missing"},
			ConnectionStrength:  1,
		})
		require.NoError(t, err)

		lookup := &fakeDirectorLookup{directors: map[string]models.Director{}}
		service := newTestOpportunityService(conns, lookup, nil)

		opportunities, err := service.GetNetworkOpportunities(ctx, "practice-1")
		require.NoError(t, err)
		require.Len(t, opportunities, 1)
		assert.Empty(t, opportunities[0].IntroductionPath)
	})

	t.Run("empty practice yields empty list", func(t *testing.T) {
		service := newTestOpportunityService(newFakeConnectionStore(), &fakeDirectorLookup{}, nil)

		opportunities, err := service.GetNetworkOpportunities(ctx, "practice-2")
		require.NoError(t, err)
		assert.NotNil(t, opportunities)
		assert.Empty(t, opportunities)
	})

	t.Run("requires practice id", func(t *testing.T) {
		service := newTestOpportunityService(newFakeConnectionStore(), &fakeDirectorLookup{}, nil)

		_, err := service.GetNetworkOpportunities(ctx, "")
		require.Error(t, err)
	})
}

func TestOpportunityService_GetCompanyConnections(t *testing.T) {
	ctx := context.Background()

	t.Run("scopes to one source company", func(t *testing.T) {
		conns := newFakeConnectionStore()
		_, err := conns.Upsert(ctx, &models.NetworkConnection{
			PracticeID:          "practice-1",
			SourceCompanyNumber: "00000001",
			TargetCompanyNumber: "00000002",
			ConnectingDirectors: []string{"d1"},
			ConnectionStrength:  1,
		})
		require.NoError(t, err)
		_, err = conns.Upsert(ctx, &models.NetworkConnection{
			PracticeID:          "practice-1",
			SourceCompanyNumber: "00000009",
			TargetCompanyNumber: "00000003",
			ConnectingDirectors: []string{"d2"},
			ConnectionStrength:  1,
		})
		require.NoError(t, err)

		lookup := &fakeDirectorLookup{directors: map[string]models.Director{
			"d1": {ID: "d1", Name: "SMITH, Jane"},
		}}
		service := newTestOpportunityService(conns, lookup, nil)

		opportunities, err := service.GetCompanyConnections(ctx, "practice-1", "00000001")
		require.NoError(t, err)
		require.Len(t, opportunities, 1)
		assert.Equal(t, "00000002", opportunities[0].TargetCompanyNumber)
		assert.Equal(t, []string{"SMITH, Jane"}, opportunities[0].IntroductionPath)
	})

	t.Run("company with no connections yields empty list", func(t *testing.T) {
		service := newTestOpportunityService(newFakeConnectionStore(), &fakeDirectorLookup{}, nil)

		opportunities, err := service.GetCompanyConnections(ctx, "practice-1", "00000001")
		require.NoError(t, err)
		assert.NotNil(t, opportunities)
		assert.Empty(t, opportunities)
	})

	t.Run("validates inputs", func(t *testing.T) {
		service := newTestOpportunityService(newFakeConnectionStore(), &fakeDirectorLookup{}, nil)

		_, err := service.GetCompanyConnections(ctx, "", "00000001")
		require.Error(t, err)

		_, err = service.GetCompanyConnections(ctx, "practice-1", "")
		require.Error(t, err)
	})
}

func TestOpportunityService_GetDirectorAppointments(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the stored history", func(t *testing.T) {
		appointments := &fakeAppointmentLookup{byDirector: map[string][]models.Appointment{
			"d1": {
				{ID: "a1", DirectorID: "d1", CompanyNumber: "00000002", Role: models.RoleDirector},
				{ID: "a2", DirectorID: "d1", CompanyNumber: "00000003", Role: models.RoleSecretary},
			},
		}}
		service := newTestOpportunityService(newFakeConnectionStore(), &fakeDirectorLookup{}, appointments)

		result, err := service.GetDirectorAppointments(ctx, "d1")
		require.NoError(t, err)
		require.Len(t, result, 2)
		assert.Equal(t, "00000002", result[0].CompanyNumber)
	})

	t.Run("unknown director yields empty list", func(t *testing.T) {
		service := newTestOpportunityService(newFakeConnectionStore(), &fakeDirectorLookup{}, nil)

		result, err := service.GetDirectorAppointments(ctx, "missing")
		require.NoError(t, err)
		assert.NotNil(t, result)
		assert.Empty(t, result)
	})

	t.Run("requires director id", func(t *testing.T) {
		service := newTestOpportunityService(newFakeConnectionStore(), &fakeDirectorLookup{}, nil)

		_, err := service.GetDirectorAppointments(ctx, "")
		require.Error(t, err)
	})
}
