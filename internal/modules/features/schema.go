// Package features turns raw entity and event documents into fixed-order feature vectors.
package features

import "github.com/tourguard/riskcast/internal/domain"

// Schema maps raw document fields onto the normalized model.
// Changing any field name requires a new Version so persisted bundles can be matched against it.
type Schema struct {
	Version int

	LocationField string
	LatField      string
	LngField      string

	// TimestampFields is the entity time priority list; the first present field wins.
	TimestampFields []string
	// EventTimestampFields is the same list for events.
	EventTimestampFields []string

	IDFields      []string
	TypeField     string
	PriorityField string
}

// SchemaV1 is the mapping used by the tourist/alert documents.
var SchemaV1 = Schema{
	Version:              1,
	LocationField:        "location",
	LatField:             "lat",
	LngField:             "lng",
	TimestampFields:      []string{"lastUpdate", "lastSeen", "checkInDate", "timestamp"},
	EventTimestampFields: []string{"timestamp", "createdAt"},
	IDFields:             []string{"touristId", "id"},
	TypeField:            "type",
	PriorityField:        "priority",
}

var priorityOrdinals = map[string]domain.Priority{
	"low":      domain.PriorityLow,
	"medium":   domain.PriorityMedium,
	"high":     domain.PriorityHigh,
	"critical": domain.PriorityCritical,
}
