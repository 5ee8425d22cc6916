package proximity

import (
	"math"

	"github.com/tourguard/riskcast/internal/domain"
)

// Predicate decides whether an event counts toward a site's risk.
type Predicate interface {
	Near(site, event domain.LatLng) bool
}

// BoxPredicate matches events strictly inside an axis-aligned box of half-width Degrees.
type BoxPredicate struct {
	Degrees float64
}

// Near implements Predicate.
func (p BoxPredicate) Near(site, event domain.LatLng) bool {
	return math.Abs(event.Lat-site.Lat) < p.Degrees && math.Abs(event.Lng-site.Lng) < p.Degrees
}

// RadiusPredicate matches events strictly within Km great-circle kilometres.
type RadiusPredicate struct {
	Km float64
}

// Near implements Predicate.
func (p RadiusPredicate) Near(site, event domain.LatLng) bool {
	return Haversine(site, event) < p.Km
}

const earthRadiusKm = 6371

// Haversine returns the great-circle distance between two points in kilometres.
func Haversine(a, b domain.LatLng) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
