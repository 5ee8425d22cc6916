// Package seed generates synthetic tourist and alert documents for local runs.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/tourguard/riskcast/internal/domain"
)

// Place is a named point of interest that documents are scattered around.
type Place struct {
	Name     string
	District string
	Lat      float64
	Lng      float64
}

// Places are the default points of interest.
var Places = []Place{
	{"Shillong", "East Khasi Hills", 25.5788, 91.8933},
	{"Cherrapunji", "East Khasi Hills", 25.2676, 91.7320},
	{"Mawsynram", "East Khasi Hills", 25.2958, 91.5831},
	{"Tura", "West Garo Hills", 25.5138, 90.2036},
	{"Jowai", "West Jaintia Hills", 25.4522, 92.1950},
	{"Nongpoh", "Ri-Bhoi", 25.9022, 91.8789},
	{"Baghmara", "South Garo Hills", 25.2500, 90.6333},
	{"Dawki", "West Jaintia Hills", 25.1167, 92.0167},
	{"Umiam", "Ri-Bhoi", 25.6833, 91.9167},
	{"Laitlum Canyon", "East Khasi Hills", 25.4500, 91.8000},
}

var (
	firstNames = []string{"Rahul", "Priya", "Amit", "Sneha", "John", "Emma", "Wei", "Yuki", "Carlos", "Fatima", "Kiran", "Meera"}
	lastNames  = []string{"Kumar", "Singh", "Sharma", "Das", "Smith", "Garcia", "Chen", "Schmidt", "Rao", "Iyer", "Shah", "Bose"}
	alertTypes = []string{"sos", "medical", "security", "weather", "accident", "lost", "theft"}
	priorities = []string{"low", "medium", "high", "critical"}
)

// Generator builds documents from a seeded random source so runs are reproducible.
type Generator struct {
	rng    *rand.Rand
	places []Place
	now    time.Time
	span   time.Duration
}

// NewGenerator creates a generator spreading timestamps over span before now.
func NewGenerator(seed int64, now time.Time, span time.Duration) *Generator {
	if span <= 0 {
		span = time.Hour
	}
	return &Generator{
		rng:    rand.New(rand.NewSource(seed)),
		places: Places,
		now:    now,
		span:   span,
	}
}

func (g *Generator) pick(xs []string) string {
	return xs[g.rng.Intn(len(xs))]
}

func (g *Generator) place() Place {
	return g.places[g.rng.Intn(len(g.places))]
}

func (g *Generator) when() time.Time {
	return g.now.Add(-time.Duration(g.rng.Int63n(int64(g.span))))
}

// Tourist returns the id and document of the i-th tourist.
func (g *Generator) Tourist(i int) (string, domain.RawRecord) {
	id := fmt.Sprintf("T%06d", i)
	p := g.place()
	checkIn := g.when()
	first, last := g.pick(firstNames), g.pick(lastNames)

	return id, domain.RawRecord{
		"touristId": id,
		"name":      first + " " + last,
		"location": map[string]interface{}{
			"lat":       p.Lat + (g.rng.Float64()-0.5)*0.05,
			"lng":       p.Lng + (g.rng.Float64()-0.5)*0.05,
			"placeName": p.Name,
			"district":  p.District,
		},
		"status":      "active",
		"checkInDate": checkIn.Format(time.RFC3339),
		"lastUpdate":  checkIn.Add(time.Duration(g.rng.Intn(72)) * time.Hour).Format(time.RFC3339),
	}
}

// Alert returns the id and document of the i-th alert raised by touristID.
func (g *Generator) Alert(i int, touristID string) (string, domain.RawRecord) {
	id := fmt.Sprintf("A%06d", i)
	p := g.place()
	kind := g.pick(alertTypes)

	return id, domain.RawRecord{
		"id":        id,
		"touristId": touristID,
		"type":      kind,
		"priority":  g.pick(priorities),
		"location": map[string]interface{}{
			"lat":     p.Lat + (g.rng.Float64()-0.5)*0.02,
			"lng":     p.Lng + (g.rng.Float64()-0.5)*0.02,
			"address": p.Name + ", " + p.District,
		},
		"timestamp": g.when().Format(time.RFC3339),
	}
}

// Writer stores generated documents.
type Writer interface {
	UpsertEntity(ctx context.Context, docID, externalID string, doc domain.RawRecord) error
	UpsertEvent(ctx context.Context, docID string, doc domain.RawRecord) error
}

// Run writes tourists and alerts through w. Alerts reference random tourists.
func (g *Generator) Run(ctx context.Context, w Writer, tourists, alerts int, log zerolog.Logger) error {
	ids := make([]string, 0, tourists)
	for i := 1; i <= tourists; i++ {
		id, doc := g.Tourist(i)
		if err := w.UpsertEntity(ctx, id, id, doc); err != nil {
			return fmt.Errorf("write tourist %s: %w", id, err)
		}
		ids = append(ids, id)
	}
	log.Info().Int("count", tourists).Msg("Tourists written")

	if len(ids) == 0 && alerts > 0 {
		return fmt.Errorf("alerts need at least one tourist")
	}
	for i := 1; i <= alerts; i++ {
		id, doc := g.Alert(i, ids[g.rng.Intn(len(ids))])
		if err := w.UpsertEvent(ctx, id, doc); err != nil {
			return fmt.Errorf("write alert %s: %w", id, err)
		}
	}
	log.Info().Int("count", alerts).Msg("Alerts written")

	return nil
}
