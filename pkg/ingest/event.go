package ingest

import (
	"fmt"
	"time"

	"github.com/trackkit/trackkit/pkg/columnar"
)

// EventType enumerates the kinds of interaction events the pipeline accepts.
type EventType string

const (
	EventPageView       EventType = "page_view"
	EventCalculatorStep EventType = "calculator_step"
	EventInteraction    EventType = "interaction"
	EventConversion     EventType = "conversion"
	EventError          EventType = "error"
	EventPerformance    EventType = "performance"
	EventCustom         EventType = "custom"
)

var knownEventTypes = map[EventType]struct{}{
	EventPageView:       {},
	EventCalculatorStep: {},
	EventInteraction:    {},
	EventConversion:     {},
	EventError:          {},
	EventPerformance:    {},
	EventCustom:         {},
}

// Valid reports whether the event type is one the pipeline accepts.
func (t EventType) Valid() bool {
	_, ok := knownEventTypes[t]
	return ok
}

// Properties is the open key-value payload attached to events. Values are
// restricted to a closed set of scalar kinds so serialization stays
// deterministic across languages.
type Properties map[string]any

// Normalize coerces numeric kinds to their canonical width and rejects
// non-scalar values.
func (p Properties) Normalize() (Properties, error) {
	if len(p) == 0 {
		return nil, nil
	}

	out := make(Properties, len(p))
	for key, val := range p {
		switch v := val.(type) {
		case string, bool, float64, int64:
			out[key] = v
		case int:
			out[key] = int64(v)
		case int32:
			out[key] = int64(v)
		case float32:
			out[key] = float64(v)
		default:
			return nil, fmt.Errorf("%w: property %q has unsupported type %T", ErrInvalidProperty, key, val)
		}
	}
	return out, nil
}

// Float returns the property under key as a float64 when it is numeric.
func (p Properties) Float(key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// RawEvent is the inbound tracking payload as handed over by the transport
// layer.
type RawEvent struct {
	Type       EventType
	UserID     string
	PageURL    string
	Referrer   string
	Properties Properties
}

// RequestContext carries the request attributes used for enrichment. The
// transport layer fills it; RequestContextFromHTTP covers the common case.
type RequestContext struct {
	SessionToken string
	UserAgent    string
	IP           string
	Country      string
}

// Event is the immutable enriched fact written to the columnar store.
type Event struct {
	EventID    string
	Timestamp  time.Time
	Type       EventType
	SessionID  string
	UserID     string
	PageURL    string
	Referrer   string
	DeviceType string
	Browser    string
	OS         string
	Country    string
	IPHash     string
	Properties Properties
}

// record maps the event onto a columnar row.
func (e *Event) record() columnar.Record {
	return columnar.Record{
		"event_id":    e.EventID,
		"timestamp":   e.Timestamp,
		"event_type":  string(e.Type),
		"session_id":  e.SessionID,
		"user_id":     e.UserID,
		"page_url":    e.PageURL,
		"referrer":    e.Referrer,
		"device_type": e.DeviceType,
		"browser":     e.Browser,
		"os":          e.OS,
		"country":     e.Country,
		"ip_hash":     e.IPHash,
		"properties":  map[string]any(e.Properties),
	}
}

// conversionRecord maps a conversion event onto the denormalized conversions
// row consumed directly by the experiment and funnel engines.
func (e *Event) conversionRecord() columnar.Record {
	value, _ := e.Properties.Float("value")
	return columnar.Record{
		"event_id":   e.EventID,
		"timestamp":  e.Timestamp,
		"session_id": e.SessionID,
		"user_id":    e.UserID,
		"value":      value,
		"page_url":   e.PageURL,
		"properties": map[string]any(e.Properties),
	}
}
