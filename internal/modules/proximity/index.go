// Package proximity scores locations by the events reported near them.
package proximity

import (
	"math"

	"github.com/rs/zerolog"
	"github.com/tourguard/riskcast/internal/domain"
	"gonum.org/v1/gonum/stat"
)

const (
	countWeight    = 0.1
	priorityWeight = 0.3
)

// Index computes proximity risk for sites against a fixed event set.
type Index struct {
	predicate Predicate
	log       zerolog.Logger
}

// NewIndex creates an index; a nil predicate defaults to the 0.01 degree box.
func NewIndex(predicate Predicate, log zerolog.Logger) *Index {
	if predicate == nil {
		predicate = BoxPredicate{Degrees: 0.01}
	}
	return &Index{
		predicate: predicate,
		log:       log.With().Str("component", "proximity_index").Logger(),
	}
}

// Score returns min(1, n*0.1 + mean(priority)*0.3) over the events near site.
// The (0,0) sentinel and sites with no nearby events score 0.
func (ix *Index) Score(site domain.LatLng, events []domain.Event) float64 {
	if site.IsZero() || len(events) == 0 {
		return 0
	}

	var priorities []float64
	for _, e := range events {
		if ix.predicate.Near(site, e.Location) {
			priorities = append(priorities, float64(e.Priority))
		}
	}
	if len(priorities) == 0 {
		return 0
	}

	risk := float64(len(priorities))*countWeight + stat.Mean(priorities, nil)*priorityWeight
	return math.Min(risk, 1)
}

// Build scores every distinct site once. The result is keyed by (lat, lng).
func (ix *Index) Build(sites []domain.LatLng, events []domain.Event) map[domain.LatLng]float64 {
	scores := make(map[domain.LatLng]float64, len(sites))
	for _, site := range sites {
		if _, done := scores[site]; done {
			continue
		}
		scores[site] = ix.Score(site, events)
	}
	ix.log.Debug().
		Int("sites", len(scores)).
		Int("events", len(events)).
		Msg("Built proximity risk table")
	return scores
}

// Apply fills the risk score of each observation from the site table.
func (ix *Index) Apply(obs []domain.Observation, events []domain.Event) []domain.Observation {
	sites := make([]domain.LatLng, len(obs))
	for i, o := range obs {
		sites[i] = o.Vector.Location()
	}
	scores := ix.Build(sites, events)

	out := make([]domain.Observation, len(obs))
	for i, o := range obs {
		o.Vector.RiskScore = scores[o.Vector.Location()]
		out[i] = o
	}
	return out
}
