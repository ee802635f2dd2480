package network

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernlabs/clover/internal/repositories/appointment"
	"github.com/fernlabs/clover/internal/repositories/networkconnection"
	"github.com/fernlabs/clover/pkg/identity"
	"github.com/fernlabs/clover/pkg/models"
	"github.com/fernlabs/clover/pkg/registry"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeRegistry struct {
	officers        map[string][]registry.OfficerRecord
	appointments    map[string][]registry.AppointmentRecord
	profiles        map[string]*registry.CompanyRecord
	officersErr     map[string]error
	appointmentsErr map[string]error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		officers:        map[string][]registry.OfficerRecord{},
		appointments:    map[string][]registry.AppointmentRecord{},
		profiles:        map[string]*registry.CompanyRecord{},
		officersErr:     map[string]error{},
		appointmentsErr: map[string]error{},
	}
}

func (f *fakeRegistry) GetCompanyOfficers(_ context.Context, companyNumber string) ([]registry.OfficerRecord, error) {
	if err := f.officersErr[companyNumber]; err != nil {
		return nil, err
	}
	return f.officers[companyNumber], nil
}

func (f *fakeRegistry) GetOfficerAppointments(_ context.Context, link string) ([]registry.AppointmentRecord, error) {
	if err := f.appointmentsErr[link]; err != nil {
		return nil, err
	}
	return f.appointments[link], nil
}

func (f *fakeRegistry) GetCompanyProfile(_ context.Context, companyNumber string) (*registry.CompanyRecord, error) {
	if profile, ok := f.profiles[companyNumber]; ok {
		return profile, nil
	}
	return nil, &registry.FetchError{StatusCode: 404, Err: registry.ErrNotFound}
}

// fakeResolver assigns stable ids keyed by external officer id, falling back
// to normalized name.
type fakeResolver struct {
	directors map[string]*models.Director
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{directors: map[string]*models.Director{}}
}

func (f *fakeResolver) Resolve(_ context.Context, officer registry.OfficerRecord) (*models.Director, error) {
	key := officer.ExternalOfficerID
	if key == "" {
		key = identity.NormalizeName(officer.Name)
	}
	if director, ok := f.directors[key]; ok {
		return director, nil
	}
	director := &models.Director{
		ID:             fmt.Sprintf("dir-%d", len(f.directors)+1),
		Name:           officer.Name,
		NameNormalized: identity.NormalizeName(officer.Name),
	}
	f.directors[key] = director
	return director, nil
}

type fakeAppointmentStore struct {
	rows map[string]*models.Appointment
}

func newFakeAppointmentStore() *fakeAppointmentStore {
	return &fakeAppointmentStore{rows: map[string]*models.Appointment{}}
}

func (f *fakeAppointmentStore) Upsert(_ context.Context, appt *models.Appointment) (*appointment.UpsertResult, error) {
	key := appt.DirectorID + "|" + appt.CompanyNumber + "|" + appt.Role
	now := time.Now().UTC()

	existing, ok := f.rows[key]
	if ok {
		existing.CompanyName = appt.CompanyName
		existing.AppointedOn = appt.AppointedOn
		existing.ResignedOn = appt.ResignedOn
		existing.LastObservedAt = now
		stored := *existing
		return &appointment.UpsertResult{Appointment: &stored, IsNew: false}, nil
	}

	row := *appt
	row.ID = fmt.Sprintf("appt-%d", len(f.rows)+1)
	row.LastObservedAt = now
	row.CreatedAt = now
	f.rows[key] = &row
	stored := row
	return &appointment.UpsertResult{Appointment: &stored, IsNew: true}, nil
}

func (f *fakeAppointmentStore) get(directorID, companyNumber, role string) *models.Appointment {
	return f.rows[directorID+"|"+companyNumber+"|"+role]
}

type fakeConnectionStore struct {
	rows  map[string]*models.NetworkConnection
	order []string
}

func newFakeConnectionStore() *fakeConnectionStore {
	return &fakeConnectionStore{rows: map[string]*models.NetworkConnection{}}
}

func (f *fakeConnectionStore) Upsert(_ context.Context, connection *models.NetworkConnection) (*networkconnection.UpsertResult, error) {
	key := connection.PracticeID + "|" + connection.SourceCompanyNumber + "|" + connection.TargetCompanyNumber

	existing, ok := f.rows[key]
	if ok {
		for _, id := range connection.ConnectingDirectors {
			found := false
			for _, have := range existing.ConnectingDirectors {
				if have == id {
					found = true
					break
				}
			}
			if !found {
				existing.ConnectingDirectors = append(existing.ConnectingDirectors, id)
			}
		}
		existing.LastObservedAt = time.Now().UTC()
		stored := *existing
		return &networkconnection.UpsertResult{Connection: &stored, IsNew: false}, nil
	}

	row := *connection
	row.ID = fmt.Sprintf("conn-%d", len(f.rows)+1)
	f.rows[key] = &row
	f.order = append(f.order, key)
	stored := row
	return &networkconnection.UpsertResult{Connection: &stored, IsNew: true}, nil
}

func (f *fakeConnectionStore) ListByPractice(_ context.Context, practiceID string) ([]models.NetworkConnection, error) {
	var connections []models.NetworkConnection
	// Newest first.
	for i := len(f.order) - 1; i >= 0; i-- {
		row := f.rows[f.order[i]]
		if row.PracticeID == practiceID {
			connections = append(connections, *row)
		}
	}
	return connections, nil
}

func (f *fakeConnectionStore) ListBySourceCompany(ctx context.Context, practiceID, sourceCompanyNumber string) ([]models.NetworkConnection, error) {
	all, err := f.ListByPractice(ctx, practiceID)
	if err != nil {
		return nil, err
	}
	var connections []models.NetworkConnection
	for _, connection := range all {
		if connection.SourceCompanyNumber == sourceCompanyNumber {
			connections = append(connections, connection)
		}
	}
	return connections, nil
}

func newTestBuilder(reg *fakeRegistry, appts *fakeAppointmentStore, conns *fakeConnectionStore) *Builder {
	builder := NewBuilder(reg, newFakeResolver(), appts, conns, nil, nil, 0, testLogger())
	builder.sleep = func(_ context.Context, _ time.Duration) error { return nil }
	return builder
}

// janeSmithRegistry builds the canonical scenario: source company 00000001
// with one active director whose other appointments reach an active company
// (00000002) and a dissolved one (00000003).
func janeSmithRegistry() *fakeRegistry {
	reg := newFakeRegistry()
	reg.officers["00000001"] = []registry.OfficerRecord{
		{
			ExternalOfficerID: "abc123",
			Name:              "SMITH, Jane",
			Role:              "director",
			AppointmentsLink:  "/officers/abc123/appointments",
		},
	}
	reg.appointments["/officers/abc123/appointments"] = []registry.AppointmentRecord{
		{CompanyNumber: "00000001", CompanyName: "SOURCE LTD", Role: "director"},
		{CompanyNumber: "00000002", CompanyName: "TARGET LTD", Role: "director"},
		{CompanyNumber: "00000003", CompanyName: "GONE LTD", Role: "secretary"},
	}
	reg.profiles["00000001"] = &registry.CompanyRecord{CompanyNumber: "00000001", CompanyName: "SOURCE LTD", CompanyStatus: "active"}
	reg.profiles["00000002"] = &registry.CompanyRecord{CompanyNumber: "00000002", CompanyName: "TARGET LTD", CompanyStatus: "active", SICCodes: []string{"62020"}}
	reg.profiles["00000003"] = &registry.CompanyRecord{CompanyNumber: "00000003", CompanyName: "GONE LTD", CompanyStatus: "dissolved"}
	return reg
}

func TestBuilder_Build(t *testing.T) {
	ctx := context.Background()

	t.Run("canonical scenario", func(t *testing.T) {
		reg := janeSmithRegistry()
		appts := newFakeAppointmentStore()
		conns := newFakeConnectionStore()
		builder := newTestBuilder(reg, appts, conns)

		result, err := builder.Build(ctx, "practice-1", "00000001")
		require.NoError(t, err)

		assert.Equal(t, "SOURCE LTD", result.CompanyName)
		assert.Equal(t, 1, result.DirectorsProcessed)
		assert.Equal(t, 0, result.DirectorsSkipped)
		assert.Equal(t, 1, result.TotalOpportunities)

		// Appointments for all three companies exist.
		require.Len(t, appts.rows, 3)
		assert.NotNil(t, appts.get("dir-1", "00000001", "director"))
		assert.NotNil(t, appts.get("dir-1", "00000002", "director"))
		assert.NotNil(t, appts.get("dir-1", "00000003", "secretary"))

		// Exactly one connection, to the active target only.
		require.Len(t, conns.rows, 1)
		connection := conns.rows["practice-1|00000001|00000002"]
		require.NotNil(t, connection)
		assert.Equal(t, []string{"dir-1"}, []string(connection.ConnectingDirectors))
		assert.Equal(t, models.ConnectionTypeDirect, connection.ConnectionType)
		assert.Equal(t, 1, connection.ConnectionStrength)
		assert.Equal(t, "SOURCE LTD", connection.SourceCompanyName)
		assert.Equal(t, "TARGET LTD", connection.TargetCompanyName)
		require.NotNil(t, connection.TargetSector)
		assert.Equal(t, "62020", *connection.TargetSector)
	})

	t.Run("idempotent across re-runs", func(t *testing.T) {
		reg := janeSmithRegistry()
		appts := newFakeAppointmentStore()
		conns := newFakeConnectionStore()
		builder := newTestBuilder(reg, appts, conns)

		_, err := builder.Build(ctx, "practice-1", "00000001")
		require.NoError(t, err)
		firstAppointments := len(appts.rows)
		firstConnections := len(conns.rows)

		result, err := builder.Build(ctx, "practice-1", "00000001")
		require.NoError(t, err)

		assert.Equal(t, firstAppointments, len(appts.rows))
		assert.Equal(t, firstConnections, len(conns.rows))
		assert.Equal(t, 1, result.TotalOpportunities)

		connection := conns.rows["practice-1|00000001|00000002"]
		assert.Equal(t, []string{"dir-1"}, []string(connection.ConnectingDirectors))
	})

	t.Run("later resignation updates stored appointment", func(t *testing.T) {
		reg := janeSmithRegistry()
		appts := newFakeAppointmentStore()
		conns := newFakeConnectionStore()
		builder := newTestBuilder(reg, appts, conns)

		_, err := builder.Build(ctx, "practice-1", "00000001")
		require.NoError(t, err)
		require.Nil(t, appts.get("dir-1", "00000002", "director").ResignedOn)

		resigned := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		reg.appointments["/officers/abc123/appointments"][1].ResignedOn = &resigned

		_, err = builder.Build(ctx, "practice-1", "00000001")
		require.NoError(t, err)

		stored := appts.get("dir-1", "00000002", "director")
		require.NotNil(t, stored.ResignedOn)
		assert.Equal(t, resigned, *stored.ResignedOn)
	})

	t.Run("partial failure of one officer keeps the rest", func(t *testing.T) {
		reg := newFakeRegistry()
		reg.officers["00000001"] = []registry.OfficerRecord{
			{ExternalOfficerID: "off1", Name: "ONE, Officer", Role: "director", AppointmentsLink: "/officers/off1/appointments"},
			{ExternalOfficerID: "off2", Name: "TWO, Officer", Role: "director", AppointmentsLink: "/officers/off2/appointments"},
			{ExternalOfficerID: "off3", Name: "THREE, Officer", Role: "director", AppointmentsLink: "/officers/off3/appointments"},
		}
		reg.appointments["/officers/off1/appointments"] = []registry.AppointmentRecord{
			{CompanyNumber: "00000010", CompanyName: "TEN LTD", Role: "director"},
		}
		reg.appointmentsErr["/officers/off2/appointments"] = errors.New("registry unavailable")
		reg.appointments["/officers/off3/appointments"] = []registry.AppointmentRecord{
			{CompanyNumber: "00000030", CompanyName: "THIRTY LTD", Role: "director"},
		}
		reg.profiles["00000001"] = &registry.CompanyRecord{CompanyNumber: "00000001", CompanyName: "SOURCE LTD", CompanyStatus: "active"}
		reg.profiles["00000010"] = &registry.CompanyRecord{CompanyNumber: "00000010", CompanyName: "TEN LTD", CompanyStatus: "active"}
		reg.profiles["00000030"] = &registry.CompanyRecord{CompanyNumber: "00000030", CompanyName: "THIRTY LTD", CompanyStatus: "active"}

		appts := newFakeAppointmentStore()
		conns := newFakeConnectionStore()
		builder := newTestBuilder(reg, appts, conns)

		result, err := builder.Build(ctx, "practice-1", "00000001")
		require.NoError(t, err)

		assert.Equal(t, 2, result.DirectorsProcessed)
		assert.Equal(t, 1, result.DirectorsSkipped)
		assert.Equal(t, 2, result.TotalOpportunities)
		assert.Len(t, conns.rows, 2)

		require.Len(t, result.Directors, 3)
		assert.True(t, result.Directors[1].Skipped)
		assert.Equal(t, "failed to fetch appointment history", result.Directors[1].SkipReason)
	})

	t.Run("resigned and non-board officers excluded", func(t *testing.T) {
		resigned := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		reg := newFakeRegistry()
		reg.officers["00000001"] = []registry.OfficerRecord{
			{ExternalOfficerID: "off1", Name: "GONE, Officer", Role: "director", ResignedOn: &resigned},
			{ExternalOfficerID: "off2", Name: "AUDIT, Firm", Role: "auditor"},
		}
		reg.profiles["00000001"] = &registry.CompanyRecord{CompanyNumber: "00000001", CompanyName: "SOURCE LTD", CompanyStatus: "active"}

		appts := newFakeAppointmentStore()
		conns := newFakeConnectionStore()
		builder := newTestBuilder(reg, appts, conns)

		result, err := builder.Build(ctx, "practice-1", "00000001")
		require.NoError(t, err)

		assert.Empty(t, result.Directors)
		assert.Empty(t, appts.rows)
		assert.Empty(t, conns.rows)
	})

	t.Run("target profile failure persists appointment but no edge", func(t *testing.T) {
		reg := janeSmithRegistry()
		delete(reg.profiles, "00000002")

		appts := newFakeAppointmentStore()
		conns := newFakeConnectionStore()
		builder := newTestBuilder(reg, appts, conns)

		result, err := builder.Build(ctx, "practice-1", "00000001")
		require.NoError(t, err)

		assert.Equal(t, 0, result.TotalOpportunities)
		assert.NotNil(t, appts.get("dir-1", "00000002", "director"))
		assert.Empty(t, conns.rows)
	})

	t.Run("source officer list failure fails the build", func(t *testing.T) {
		reg := newFakeRegistry()
		reg.officersErr["00000001"] = errors.New("registry unavailable")
		reg.profiles["00000001"] = &registry.CompanyRecord{CompanyNumber: "00000001", CompanyStatus: "active"}

		builder := newTestBuilder(reg, newFakeAppointmentStore(), newFakeConnectionStore())

		_, err := builder.Build(ctx, "practice-1", "00000001")
		require.Error(t, err)
	})

	t.Run("missing source profile tolerated", func(t *testing.T) {
		reg := janeSmithRegistry()
		delete(reg.profiles, "00000001")

		appts := newFakeAppointmentStore()
		conns := newFakeConnectionStore()
		builder := newTestBuilder(reg, appts, conns)

		result, err := builder.Build(ctx, "practice-1", "00000001")
		require.NoError(t, err)
		assert.Equal(t, "", result.CompanyName)
		assert.Equal(t, 1, result.TotalOpportunities)
		assert.Equal(t, "", conns.rows["practice-1|00000001|00000002"].SourceCompanyName)
	})

	t.Run("validates inputs", func(t *testing.T) {
		builder := newTestBuilder(newFakeRegistry(), newFakeAppointmentStore(), newFakeConnectionStore())

		_, err := builder.Build(ctx, "", "00000001")
		require.Error(t, err)

		_, err = builder.Build(ctx, "practice-1", "")
		require.Error(t, err)
	})

	t.Run("two builds share a connection row", func(t *testing.T) {
		reg := janeSmithRegistry()
		reg.officers["00000001"] = append(reg.officers["00000001"], registry.OfficerRecord{
			ExternalOfficerID: "def456",
			Name:              "JONES, Robert",
			Role:              "director",
			AppointmentsLink:  "/officers/def456/appointments",
		})
		reg.appointments["/officers/def456/appointments"] = []registry.AppointmentRecord{
			{CompanyNumber: "00000002", CompanyName: "TARGET LTD", Role: "director"},
		}

		appts := newFakeAppointmentStore()
		conns := newFakeConnectionStore()
		builder := newTestBuilder(reg, appts, conns)

		result, err := builder.Build(ctx, "practice-1", "00000001")
		require.NoError(t, err)

		assert.Equal(t, 2, result.TotalOpportunities)
		require.Len(t, conns.rows, 1)
		connection := conns.rows["practice-1|00000001|00000002"]
		assert.ElementsMatch(t, []string{"dir-1", "dir-2"}, []string(connection.ConnectingDirectors))
	})
}
