package funnel

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/trackkit/trackkit/pkg/columnar"
)

// QueryWindow is the half-open time range [Start, End) an analysis covers.
type QueryWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w QueryWindow) validate() error {
	if !w.End.After(w.Start) {
		return ErrInvalidQueryWindow
	}
	return nil
}

// StepResult is the per-step outcome of a funnel analysis. Rates are
// fractions in [0, 1], relative to the previous step.
type StepResult struct {
	Name           string  `json:"name"`
	Sessions       int64   `json:"sessions"`
	Events         int64   `json:"events"`
	ConversionRate float64 `json:"conversion_rate"`
	DropOff        int64   `json:"drop_off"`
	DropOffRate    float64 `json:"drop_off_rate"`
}

// Report is a full funnel analysis over one query window.
type Report struct {
	FunnelID              string       `json:"funnel_id"`
	Window                QueryWindow  `json:"window"`
	TotalSessions         int64        `json:"total_sessions"`
	Completed             int64        `json:"completed"`
	OverallConversionRate float64      `json:"overall_conversion_rate"`
	Steps                 []StepResult `json:"steps"`
	GeneratedAt           time.Time    `json:"generated_at"`
}

// event is the slice of an events row the analyzer consumes.
type event struct {
	SessionID  string
	UserID     string
	Timestamp  time.Time
	Type       string
	PageURL    string
	Country    string
	DeviceType string
	Browser    string
	Properties map[string]any
}

const eventsQuery = "SELECT session_id, user_id, timestamp, event_type, page_url, " +
	"country, device_type, browser, properties FROM " + columnar.TableEvents +
	" WHERE timestamp >= $1 AND timestamp < $2 ORDER BY session_id, timestamp"

// Analyze runs the funnel over all sessions with events inside the window.
// A session enters at its first event matching step 0; every later step
// must match at or after the previous step's match and within the
// conversion window of that first entry. Order matters: an out-of-order
// match does not count.
func (e *Engine) Analyze(ctx context.Context, def Definition, window QueryWindow) (*Report, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if err := window.validate(); err != nil {
		return nil, err
	}
	def = def.normalized()

	sessions, err := e.loadEvents(ctx, window)
	if err != nil {
		return nil, err
	}
	return buildReport(def, window, sessions, e.clock.Now()), nil
}

func (e *Engine) loadEvents(ctx context.Context, window QueryWindow) (map[string][]event, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	defer cancel()

	rows, err := e.events.Query(ctx, eventsQuery, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	sessions := make(map[string][]event)
	for _, row := range rows {
		ev := event{
			SessionID:  rowString(row, "session_id"),
			UserID:     rowString(row, "user_id"),
			Timestamp:  rowTime(row, "timestamp"),
			Type:       rowString(row, "event_type"),
			PageURL:    rowString(row, "page_url"),
			Country:    rowString(row, "country"),
			DeviceType: rowString(row, "device_type"),
			Browser:    rowString(row, "browser"),
			Properties: rowProps(row, "properties"),
		}
		if ev.SessionID == "" || ev.Timestamp.IsZero() {
			continue
		}
		sessions[ev.SessionID] = append(sessions[ev.SessionID], ev)
	}

	// The query orders rows, but stubbed or sharded stores may not.
	for _, evs := range sessions {
		sort.SliceStable(evs, func(i, j int) bool {
			return evs[i].Timestamp.Before(evs[j].Timestamp)
		})
	}
	return sessions, nil
}

// trace is one session's path through the funnel.
type trace struct {
	reached     int
	firstStepAt time.Time
	completedAt time.Time
	userID      string
}

// traceSession walks a session's events through the funnel steps in order.
// ok is false when the session never matched step 0.
func traceSession(def Definition, evs []event) (trace, bool) {
	var t trace

	start := -1
	for i, ev := range evs {
		if def.Steps[0].Match.matches(ev) {
			start = i
			break
		}
	}
	if start == -1 {
		return t, false
	}

	t.firstStepAt = evs[start].Timestamp
	t.reached = 1
	deadline := t.firstStepAt.Add(def.ConversionWindow)

	pos := start + 1
	for step := 1; step < len(def.Steps); step++ {
		found := -1
		for i := pos; i < len(evs); i++ {
			if evs[i].Timestamp.After(deadline) {
				break
			}
			if def.Steps[step].Match.matches(evs[i]) {
				found = i
				break
			}
		}
		if found == -1 {
			break
		}
		t.reached++
		pos = found + 1
		if step == len(def.Steps)-1 {
			t.completedAt = evs[found].Timestamp
		}
	}

	for _, ev := range evs {
		if ev.UserID != "" {
			t.userID = ev.UserID
			break
		}
	}
	return t, true
}

func countMatches(match Predicate, evs []event, from, until time.Time) int64 {
	var n int64
	for _, ev := range evs {
		if ev.Timestamp.Before(from) || ev.Timestamp.After(until) {
			continue
		}
		if match.matches(ev) {
			n++
		}
	}
	return n
}

// filterEvents drops events failing the definition's column filters.
func filterEvents(def Definition, evs []event) []event {
	if len(def.Filters) == 0 {
		return evs
	}

	kept := evs[:0:0]
	for _, ev := range evs {
		if matchesFilters(def.Filters, ev) {
			kept = append(kept, ev)
		}
	}
	return kept
}

func matchesFilters(filters map[string]string, ev event) bool {
	for column, want := range filters {
		var got string
		switch column {
		case "country":
			got = ev.Country
		case "device_type":
			got = ev.DeviceType
		case "browser":
			got = ev.Browser
		}
		if got != want {
			return false
		}
	}
	return true
}

func buildReport(def Definition, window QueryWindow, sessions map[string][]event, now time.Time) *Report {
	report := &Report{
		FunnelID:    def.ID,
		Window:      window,
		Steps:       make([]StepResult, len(def.Steps)),
		GeneratedAt: now,
	}
	for i, step := range def.Steps {
		report.Steps[i].Name = step.Name
	}

	for _, evs := range sessions {
		evs = filterEvents(def, evs)
		tr, ok := traceSession(def, evs)
		if !ok {
			continue
		}
		deadline := tr.firstStepAt.Add(def.ConversionWindow)
		for s := 0; s < tr.reached; s++ {
			report.Steps[s].Sessions++
			report.Steps[s].Events += countMatches(def.Steps[s].Match, evs, tr.firstStepAt, deadline)
		}
	}

	for i := range report.Steps {
		if i == 0 {
			if report.Steps[0].Sessions > 0 {
				report.Steps[0].ConversionRate = 1
			}
			continue
		}
		prev := report.Steps[i-1].Sessions
		report.Steps[i].DropOff = prev - report.Steps[i].Sessions
		if prev > 0 {
			report.Steps[i].ConversionRate = float64(report.Steps[i].Sessions) / float64(prev)
			report.Steps[i].DropOffRate = float64(report.Steps[i].DropOff) / float64(prev)
		}
	}

	report.TotalSessions = report.Steps[0].Sessions
	report.Completed = report.Steps[len(report.Steps)-1].Sessions
	if report.TotalSessions > 0 {
		report.OverallConversionRate = float64(report.Completed) / float64(report.TotalSessions)
	}
	return report
}

func rowString(row columnar.Row, key string) string {
	s, _ := row[key].(string)
	return s
}

func rowTime(row columnar.Row, key string) time.Time {
	t, _ := row[key].(time.Time)
	return t
}

func rowProps(row columnar.Row, key string) map[string]any {
	m, _ := row[key].(map[string]any)
	return m
}
