package domain

import (
	"encoding/json"
	"time"
)

// RawRecord is one payload exactly as fetched from a source.
// Records are written once by the loader and never mutated;
// they are retained for audit and re-transformation.
type RawRecord struct {
	Source     Source
	ExternalID string // provider-assigned identifier, "" when not derivable
	FetchedAt  time.Time
	Payload    json.RawMessage
}
