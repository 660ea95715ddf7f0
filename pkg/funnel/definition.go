package funnel

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Predicate describes which events count for a funnel step. Zero-valued
// fields are ignored; set fields must all match.
type Predicate struct {
	// EventType matches the event's type exactly.
	EventType string `json:"event_type,omitempty" yaml:"event_type,omitempty"`

	// PageURL matches the event's page URL. A pattern containing glob
	// metacharacters ("*", "?", "[") is matched with path.Match rules,
	// anything else is compared exactly.
	PageURL string `json:"page_url,omitempty" yaml:"page_url,omitempty"`

	// PropertyEquals requires the named event properties to hold exactly
	// these values.
	PropertyEquals map[string]any `json:"property_equals,omitempty" yaml:"property_equals,omitempty"`
}

func (p Predicate) empty() bool {
	return p.EventType == "" && p.PageURL == "" && len(p.PropertyEquals) == 0
}

func (p Predicate) matches(ev event) bool {
	if p.EventType != "" && p.EventType != ev.Type {
		return false
	}
	if p.PageURL != "" && !matchURL(p.PageURL, ev.PageURL) {
		return false
	}
	for key, want := range p.PropertyEquals {
		got, ok := ev.Properties[key]
		if !ok || !looseEqual(got, want) {
			return false
		}
	}
	return true
}

func matchURL(pattern, url string) bool {
	if strings.ContainsAny(pattern, "*?[") {
		ok, err := path.Match(pattern, url)
		return err == nil && ok
	}
	return pattern == url
}

// looseEqual compares property values across the numeric representations
// JSON and YAML decoding produce for the same document.
func looseEqual(got, want any) bool {
	if gf, ok := asNumber(got); ok {
		if wf, wok := asNumber(want); wok {
			return gf == wf
		}
		return false
	}
	return got == want
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Step is one stage of a funnel.
type Step struct {
	Name  string    `json:"name" yaml:"name"`
	Match Predicate `json:"match" yaml:"match"`
}

// Definition describes a funnel: an ordered sequence of steps a session
// must pass through, in order, within the conversion window.
type Definition struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Steps []Step `json:"steps" yaml:"steps"`

	// ConversionWindow bounds the whole traversal, sliding from the first
	// step-0 occurrence. Defaults to 24h.
	ConversionWindow time.Duration `json:"conversion_window,omitempty" yaml:"conversion_window,omitempty"`

	// AttributionWindow bounds the touchpoint lookback before a
	// conversion. Independent of ConversionWindow. Defaults to 168h.
	AttributionWindow time.Duration `json:"attribution_window,omitempty" yaml:"attribution_window,omitempty"`

	// Filters restrict analysis to events whose named column holds the
	// given value. Supported columns: country, device_type, browser.
	Filters map[string]string `json:"filters,omitempty" yaml:"filters,omitempty"`
}

const (
	defaultConversionWindow  = 24 * time.Hour
	defaultAttributionWindow = 7 * 24 * time.Hour
)

// normalized returns a copy with default windows applied.
func (d Definition) normalized() Definition {
	if d.ConversionWindow == 0 {
		d.ConversionWindow = defaultConversionWindow
	}
	if d.AttributionWindow == 0 {
		d.AttributionWindow = defaultAttributionWindow
	}
	return d
}

// Validate rejects definitions that cannot be analyzed.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidDefinition)
	}
	if len(d.Steps) < 2 {
		return ErrTooFewSteps
	}
	if d.ConversionWindow < 0 || d.AttributionWindow < 0 {
		return ErrInvalidWindow
	}

	seen := make(map[string]struct{}, len(d.Steps))
	for i, step := range d.Steps {
		if step.Name == "" {
			return fmt.Errorf("%w: step %d has no name", ErrInvalidDefinition, i)
		}
		if _, dup := seen[step.Name]; dup {
			return fmt.Errorf("%w: duplicate step %q", ErrInvalidDefinition, step.Name)
		}
		seen[step.Name] = struct{}{}
		if step.Match.empty() {
			return fmt.Errorf("%w: step %q", ErrEmptyPredicate, step.Name)
		}
	}
	return nil
}

// stepIndex returns the position of the named step.
func (d *Definition) stepIndex(name string) (int, bool) {
	for i, step := range d.Steps {
		if step.Name == name {
			return i, true
		}
	}
	return 0, false
}
