// Package events handles event emission for network lifecycle changes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/fernlabs/clover/pkg/kafka"
	"github.com/fernlabs/clover/pkg/models"
	"github.com/fernlabs/clover/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter publishes director and network connection lifecycle events
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitDirectorCreated emits a director created event
func (e *Emitter) EmitDirectorCreated(ctx context.Context, director *models.Director) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitDirectorCreated")
	defer span.End()

	data := map[string]any{
		"schema_version":      SchemaVersion,
		"name":                director.Name,
		"external_officer_id": director.ExternalOfficerID,
	}
	dataJSON, _ := json.Marshal(data)

	event := &kafka.NetworkEvent{
		EventType: "director.created",
		SubjectID: director.ID,
		Data:      dataJSON,
	}

	if err := e.producer.PublishNetworkEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit director.created event")
		return err
	}

	return nil
}

// EmitConnectionUpserted emits a created or updated event for a connection
func (e *Emitter) EmitConnectionUpserted(ctx context.Context, connection *models.NetworkConnection, isNew bool) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitConnectionUpserted")
	defer span.End()

	eventType := "network.connection.updated"
	if isNew {
		eventType = "network.connection.created"
	}

	data := map[string]any{
		"schema_version":        SchemaVersion,
		"source_company_number": connection.SourceCompanyNumber,
		"target_company_number": connection.TargetCompanyNumber,
		"connecting_directors":  connection.ConnectingDirectors,
		"connection_strength":   connection.ConnectionStrength,
	}
	dataJSON, _ := json.Marshal(data)

	event := &kafka.NetworkEvent{
		EventType:  eventType,
		PracticeID: connection.PracticeID,
		SubjectID:  connection.ID,
		Data:       dataJSON,
	}

	if err := e.producer.PublishNetworkEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to emit %s event", eventType)
		return err
	}

	return nil
}
