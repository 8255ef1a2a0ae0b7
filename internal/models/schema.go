package models

import (
	"encoding/json"
	"time"
)

// SchemaVersion is one registered version of the application form schema.
// The newest version (max AddedAt) is the one new applications bind to.
type SchemaVersion struct {
	ID      string          `json:"id"`
	Content json.RawMessage `json:"content"`
	AddedAt time.Time       `json:"addedAt"`
}
