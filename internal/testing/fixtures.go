package testing

import (
	"fmt"
	"time"

	"github.com/tourguard/riskcast/internal/domain"
)

// FixedClock returns a clock function pinned to t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// EntityDoc builds a raw entity document at the given location and update time.
func EntityDoc(id string, lat, lng float64, at time.Time) domain.RawRecord {
	return domain.RawRecord{
		"touristId":  id,
		"name":       "Visitor " + id,
		"location":   map[string]interface{}{"lat": lat, "lng": lng},
		"lastUpdate": at.Format(time.RFC3339),
	}
}

// EventDoc builds a raw alert document.
func EventDoc(lat, lng float64, priority string, at time.Time) domain.RawRecord {
	return domain.RawRecord{
		"type":      "panic",
		"priority":  priority,
		"location":  map[string]interface{}{"lat": lat, "lng": lng},
		"timestamp": at.Format(time.RFC3339),
	}
}

// EntityTrack returns n entity documents one hour apart starting at start,
// cycling over the given locations.
func EntityTrack(n int, start time.Time, locations ...domain.LatLng) []domain.RawRecord {
	if len(locations) == 0 {
		locations = []domain.LatLng{{Lat: 26.1445, Lng: 91.7362}}
	}
	docs := make([]domain.RawRecord, 0, n)
	for i := 0; i < n; i++ {
		loc := locations[i%len(locations)]
		docs = append(docs, EntityDoc(fmt.Sprintf("T%03d", i), loc.Lat, loc.Lng, start.Add(time.Duration(i)*time.Hour)))
	}
	return docs
}
