package funnel

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/trackkit/trackkit/pkg/columnar"
)

// Touchpoint identifies one acquisition channel.
type Touchpoint struct {
	Source   string `json:"source"`
	Medium   string `json:"medium"`
	Campaign string `json:"campaign,omitempty"`
}

// TouchpointStats aggregates how many conversions a touchpoint contributed
// to. Share is the fraction of conversions the touchpoint appeared in; a
// conversion with several touchpoints counts toward each, so shares can sum
// above 1.
type TouchpointStats struct {
	Touchpoint
	Conversions int64   `json:"conversions"`
	Share       float64 `json:"share"`
}

// AttributionReport credits funnel completions to the traffic that preceded
// them.
type AttributionReport struct {
	FunnelID    string            `json:"funnel_id"`
	Window      QueryWindow       `json:"window"`
	Conversions int64             `json:"conversions"`
	Touchpoints []TouchpointStats `json:"touchpoints"`
	GeneratedAt time.Time         `json:"generated_at"`
}

const touchpointsQuery = "SELECT session_id, user_id, start_time, traffic_source, " +
	"traffic_medium, traffic_campaign FROM " + columnar.TableSessions +
	" WHERE start_time >= $1 AND start_time < $2"

type sessionRow struct {
	sessionID string
	userID    string
	startTime time.Time
	touch     Touchpoint
}

// Attribution finds every session that completed the funnel inside the
// window and credits the sessions the same visitor started within the
// attribution window before the completion. The attribution window is
// independent of the conversion window: a funnel crossed in minutes can
// still credit a campaign clicked days earlier.
func (e *Engine) Attribution(ctx context.Context, def Definition, window QueryWindow) (*AttributionReport, error) {
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

	type conversion struct {
		sessionID string
		userID    string
		at        time.Time
	}
	var conversions []conversion
	for sessionID, evs := range sessions {
		tr, ok := traceSession(def, filterEvents(def, evs))
		if !ok || tr.completedAt.IsZero() {
			continue
		}
		conversions = append(conversions, conversion{
			sessionID: sessionID,
			userID:    tr.userID,
			at:        tr.completedAt,
		})
	}

	report := &AttributionReport{
		FunnelID:    def.ID,
		Window:      window,
		Conversions: int64(len(conversions)),
		GeneratedAt: e.clock.Now(),
	}
	if len(conversions) == 0 {
		return report, nil
	}

	// Candidate touchpoints can predate the query window by up to the
	// attribution window.
	lookback := QueryWindow{Start: window.Start.Add(-def.AttributionWindow), End: window.End}
	candidates, err := e.loadTouchpoints(ctx, lookback)
	if err != nil {
		return nil, err
	}

	counts := make(map[Touchpoint]int64)
	for _, conv := range conversions {
		seen := make(map[Touchpoint]struct{})
		for _, cand := range candidates {
			if !sameVisitor(conv.userID, conv.sessionID, cand) {
				continue
			}
			if cand.startTime.After(conv.at) || cand.startTime.Before(conv.at.Add(-def.AttributionWindow)) {
				continue
			}
			if _, dup := seen[cand.touch]; dup {
				continue
			}
			seen[cand.touch] = struct{}{}
			counts[cand.touch]++
		}
	}

	for touch, n := range counts {
		report.Touchpoints = append(report.Touchpoints, TouchpointStats{
			Touchpoint:  touch,
			Conversions: n,
			Share:       float64(n) / float64(report.Conversions),
		})
	}
	sort.Slice(report.Touchpoints, func(i, j int) bool {
		a, b := report.Touchpoints[i], report.Touchpoints[j]
		if a.Conversions != b.Conversions {
			return a.Conversions > b.Conversions
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Medium != b.Medium {
			return a.Medium < b.Medium
		}
		return a.Campaign < b.Campaign
	})
	return report, nil
}

// sameVisitor prefers the durable user id and falls back to the session id
// for anonymous traffic.
func sameVisitor(userID, sessionID string, cand sessionRow) bool {
	if userID != "" {
		return cand.userID == userID
	}
	return cand.sessionID == sessionID
}

func (e *Engine) loadTouchpoints(ctx context.Context, window QueryWindow) ([]sessionRow, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	defer cancel()

	rows, err := e.events.Query(ctx, touchpointsQuery, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("load touchpoints: %w", err)
	}

	out := make([]sessionRow, 0, len(rows))
	for _, row := range rows {
		sr := sessionRow{
			sessionID: rowString(row, "session_id"),
			userID:    rowString(row, "user_id"),
			startTime: rowTime(row, "start_time"),
			touch: Touchpoint{
				Source:   rowString(row, "traffic_source"),
				Medium:   rowString(row, "traffic_medium"),
				Campaign: rowString(row, "traffic_campaign"),
			},
		}
		if sr.sessionID == "" || sr.startTime.IsZero() {
			continue
		}
		out = append(out, sr)
	}
	return out, nil
}
