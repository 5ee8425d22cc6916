package features

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tourguard/riskcast/internal/domain"
)

// Normalizer maps raw records to observations using a Schema, a calendar timezone and a clock.
type Normalizer struct {
	schema Schema
	loc    *time.Location
	clock  func() time.Time
	log    zerolog.Logger
}

// NewNormalizer creates a normalizer. A nil loc means UTC and a nil clock means time.Now.
func NewNormalizer(schema Schema, loc *time.Location, clock func() time.Time, log zerolog.Logger) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	return &Normalizer{
		schema: schema,
		loc:    loc,
		clock:  clock,
		log:    log.With().Str("component", "feature_normalizer").Logger(),
	}
}

// Schema returns the active field mapping.
func (n *Normalizer) Schema() Schema {
	return n.schema
}

// Now returns the injected clock's current time.
func (n *Normalizer) Now() time.Time {
	return n.clock()
}

// ExtractLocation reads the nested location object; missing or malformed values become 0.
func (n *Normalizer) ExtractLocation(rec domain.RawRecord) domain.LatLng {
	loc, _ := n.extractLocation(rec)
	return loc
}

// extractLocation also reports coordinates that were present but unusable,
// including non-finite numbers, which are replaced by 0.
func (n *Normalizer) extractLocation(rec domain.RawRecord) (domain.LatLng, []string) {
	raw, ok := rec[n.schema.LocationField]
	if !ok {
		return domain.LatLng{}, nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		if rr, isRaw := raw.(domain.RawRecord); isRaw {
			m = rr
		} else {
			return domain.LatLng{}, nil
		}
	}

	var warnings []string
	coord := func(field string) float64 {
		v, present := m[field]
		if !present || v == nil {
			return 0
		}
		f, ok := toFloat(v)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("invalid %s %v; using 0", field, v))
			return 0
		}
		return f
	}
	lat := coord(n.schema.LatField)
	lng := coord(n.schema.LngField)
	return domain.LatLng{Lat: lat, Lng: lng}, warnings
}

// ResolveTime finds the first present field from fields and parses it.
// It returns the field used, or "" with a warning when falling back to the clock.
func (n *Normalizer) ResolveTime(rec domain.RawRecord, fields []string) (time.Time, string, string) {
	for _, field := range fields {
		raw, ok := rec[field]
		if !ok || isEmpty(raw) {
			continue
		}
		t, err := ParseTimestamp(raw)
		if err != nil {
			return n.clock(), "", fmt.Sprintf("unparseable %s %v: %v; using current time", field, raw, err)
		}
		return t, field, ""
	}
	return n.clock(), "", fmt.Sprintf("no timestamp in fields %v; using current time", fields)
}

// Calendar derives the calendar features of t in the configured timezone.
// Day of week counts from Monday = 0.
func (n *Normalizer) Calendar(t time.Time) (hour, dayOfWeek, dayOfMonth, month int) {
	lt := t.In(n.loc)
	return lt.Hour(), (int(lt.Weekday()) + 6) % 7, lt.Day(), int(lt.Month())
}

// VectorAt builds a feature vector for a location at time t.
func (n *Normalizer) VectorAt(loc domain.LatLng, t time.Time, risk float64) domain.FeatureVector {
	hour, dow, dom, month := n.Calendar(t)
	return domain.FeatureVector{
		Lat:        loc.Lat,
		Lng:        loc.Lng,
		Hour:       hour,
		DayOfWeek:  dow,
		DayOfMonth: dom,
		Month:      month,
		RiskScore:  risk,
	}
}

// Normalize converts one entity record. The risk score is left at 0; the proximity index fills it.
func (n *Normalizer) Normalize(rec domain.RawRecord) (domain.Observation, []string) {
	var warnings []string
	t, field, warn := n.ResolveTime(rec, n.schema.TimestampFields)
	if warn != "" {
		warnings = append(warnings, warn)
	}
	loc, locWarnings := n.extractLocation(rec)
	warnings = append(warnings, locWarnings...)
	return domain.Observation{
		ID:        n.recordID(rec),
		Vector:    n.VectorAt(loc, t, 0),
		Time:      t,
		TimeField: field,
	}, warnings
}

// NormalizeAll converts a batch of entity records, logging a single summary warning.
func (n *Normalizer) NormalizeAll(recs []domain.RawRecord) ([]domain.Observation, []string) {
	obs := make([]domain.Observation, 0, len(recs))
	var warnings []string
	fallbacks := 0
	for _, rec := range recs {
		o, w := n.Normalize(rec)
		if len(w) > 0 {
			fallbacks++
			for _, msg := range w {
				n.log.Debug().Str("record", o.ID).Msg(msg)
			}
			warnings = append(warnings, w...)
		}
		obs = append(obs, o)
	}
	if fallbacks > 0 {
		n.log.Warn().
			Int("records", len(recs)).
			Int("defaulted", fallbacks).
			Msg("Some records needed default values")
	}
	return obs, warnings
}

// NormalizeEvent converts one event record.
func (n *Normalizer) NormalizeEvent(rec domain.RawRecord) (domain.Event, []string) {
	var warnings []string
	t, _, warn := n.ResolveTime(rec, n.schema.EventTimestampFields)
	if warn != "" {
		warnings = append(warnings, warn)
	}
	loc, locWarnings := n.extractLocation(rec)
	warnings = append(warnings, locWarnings...)
	typ, _ := rec[n.schema.TypeField].(string)
	if typ == "" {
		typ = "unknown"
	}
	return domain.Event{
		ID:       n.recordID(rec),
		Type:     typ,
		Location: loc,
		Time:     t,
		Priority: ParsePriority(rec[n.schema.PriorityField]),
	}, warnings
}

// NormalizeEvents converts a batch of event records.
func (n *Normalizer) NormalizeEvents(recs []domain.RawRecord) []domain.Event {
	events := make([]domain.Event, 0, len(recs))
	for _, rec := range recs {
		e, _ := n.NormalizeEvent(rec)
		events = append(events, e)
	}
	return events
}

func (n *Normalizer) recordID(rec domain.RawRecord) string {
	for _, f := range n.schema.IDFields {
		if v, ok := rec[f]; ok && !isEmpty(v) {
			return fmt.Sprint(v)
		}
	}
	return ""
}

// ParsePriority maps a priority label or ordinal to a Priority; unknown values are low.
func ParsePriority(raw interface{}) domain.Priority {
	switch v := raw.(type) {
	case string:
		if p, ok := priorityOrdinals[strings.ToLower(strings.TrimSpace(v))]; ok {
			return p
		}
	default:
		if f, ok := toFloat(v); ok && f >= 0 && f <= float64(domain.PriorityCritical) {
			return domain.Priority(int(f))
		}
	}
	return domain.PriorityLow
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts ISO-8601 strings, epoch seconds or milliseconds,
// document-store timestamp objects ({"_seconds": n}) and time.Time values.
func ParseTimestamp(raw interface{}) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, fmt.Errorf("nil time")
		}
		return *v, nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		if f, ok := toFloat(s); ok {
			return fromEpoch(f), nil
		}
		return time.Time{}, fmt.Errorf("unrecognized time format %q", s)
	case map[string]interface{}:
		return parseTimestampObject(v)
	case domain.RawRecord:
		return parseTimestampObject(v)
	default:
		if f, ok := toFloat(v); ok {
			return fromEpoch(f), nil
		}
		return time.Time{}, fmt.Errorf("unsupported time type %T", raw)
	}
}

func parseTimestampObject(m map[string]interface{}) (time.Time, error) {
	for _, key := range []string{"_seconds", "seconds"} {
		if raw, ok := m[key]; ok {
			sec, ok := toFloat(raw)
			if !ok {
				return time.Time{}, fmt.Errorf("invalid %s value %v", key, raw)
			}
			nanos := 0.0
			if ns, ok := toFloat(m["_nanoseconds"]); ok {
				nanos = ns
			} else if ns, ok := toFloat(m["nanoseconds"]); ok {
				nanos = ns
			}
			return time.Unix(int64(sec), int64(nanos)).UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp object without seconds")
}

// fromEpoch treats values above 1e12 as milliseconds.
func fromEpoch(f float64) time.Time {
	if math.Abs(f) >= 1e12 {
		return time.UnixMilli(int64(f)).UTC()
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// toFloat converts numeric values and numeric strings. NaN and infinities are rejected.
func toFloat(raw interface{}) (float64, bool) {
	f, ok := anyFloat(raw)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func anyFloat(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func isEmpty(raw interface{}) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}
