package models

import "time"

// AssignmentPeriod records which location and officer were responsible for an
// application over a validity window. At most one period per application is
// open (EndedAt == nil); periods are never deleted, only closed and superseded.
type AssignmentPeriod struct {
	ID            string     `json:"id"`
	ApplicationID string     `json:"applicationId"`
	Location      string     `json:"location"`
	Officer       *string    `json:"officer,omitempty"` // nil = unassigned
	StartedAt     time.Time  `json:"startedAt"`
	EndedAt       *time.Time `json:"endedAt,omitempty"` // nil = currently open
}

// Open reports whether this is the currently open period.
func (p *AssignmentPeriod) Open() bool { return p.EndedAt == nil }

// Allocation is the officer/location pair resolved from the allocation read model.
type Allocation struct {
	Officer  string `json:"officer"`
	Location string `json:"location"`
}
