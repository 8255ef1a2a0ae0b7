package models

import (
	"encoding/json"
	"time"
)

// Domain event types published through the outbox.
const (
	EventApplicationSubmitted = "application.submitted"
)

// Inbound provider event types.
const (
	EventAllocationChanged = "allocation-changed"
	EventLocationChanged   = "location-changed"
)

// DomainEventRecord is an externally visible domain event, persisted before it
// is published so the outbound message always reflects committed state.
type DomainEventRecord struct {
	ID            string          `json:"id"`
	ApplicationID string          `json:"applicationId"`
	Type          string          `json:"type"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// EventEnvelope is the shape of an inbound provider event. SubjectID and
// DetailURL are optional on the wire; the reconcilers classify events missing
// them as ignorable.
type EventEnvelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	SubjectID  string    `json:"subjectIdentifier,omitempty"`
	DetailURL  string    `json:"detailReference,omitempty"`
}
