package models

import "time"

// ApplicationStatus is the lifecycle state of a casework application.
type ApplicationStatus string

const (
	StatusDraft     ApplicationStatus = "draft"
	StatusSubmitted ApplicationStatus = "submitted"
	StatusAbandoned ApplicationStatus = "abandoned"
)

// Application is a caseworker-authored record progressing through a lifecycle.
// SubmittedAt and AbandonedAt are mutually exclusive; form data is immutable
// once either is set (and cleared on abandon).
type Application struct {
	ID              string                 `json:"id"`
	SubjectID       string                 `json:"subjectId"`
	Owner           string                 `json:"owner"`
	Data            map[string]interface{} `json:"data"`
	SchemaVersionID string                 `json:"schemaVersionId"`
	OriginLocation  string                 `json:"originLocation"`
	CreatedAt       time.Time              `json:"createdAt"`
	SubmittedAt     *time.Time             `json:"submittedAt,omitempty"`
	AbandonedAt     *time.Time             `json:"abandonedAt,omitempty"`
}

// Status derives the lifecycle state from the terminal timestamps.
func (a *Application) Status() ApplicationStatus {
	switch {
	case a.AbandonedAt != nil:
		return StatusAbandoned
	case a.SubmittedAt != nil:
		return StatusSubmitted
	default:
		return StatusDraft
	}
}

func (a *Application) IsDraft() bool     { return a.Status() == StatusDraft }
func (a *Application) IsSubmitted() bool { return a.Status() == StatusSubmitted }
func (a *Application) IsAbandoned() bool { return a.Status() == StatusAbandoned }

// User identifies a caseworker and the location they currently work from.
type User struct {
	Username       string `json:"username"`
	ActiveLocation string `json:"activeLocation"`
}

// SubjectSummary is the subset of the person read model needed at creation.
type SubjectSummary struct {
	SubjectID      string `json:"subjectId"`
	Name           string `json:"name"`
	ActiveLocation string `json:"activeLocation"`
}
