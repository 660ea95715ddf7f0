package funnel

import (
	"context"
	"fmt"

	"github.com/trackkit/trackkit/pkg/columnar"
)

// Dimension selects how AnalyzeSegments partitions sessions.
type Dimension string

const (
	DimensionCountry Dimension = "country"
	DimensionDevice  Dimension = "device_type"
	DimensionBrowser Dimension = "browser"

	// DimensionSource segments by the session's attributed traffic
	// source, resolved from the sessions table.
	DimensionSource Dimension = "source"
)

// segmentUnknown buckets sessions with no value for the dimension.
const segmentUnknown = "unknown"

const sessionSourcesQuery = "SELECT session_id, traffic_source FROM " +
	columnar.TableSessions + " WHERE start_time >= $1 AND start_time < $2"

// AnalyzeSegments runs the same funnel computation once per distinct value
// of the dimension, partitioning sessions before tracing them.
func (e *Engine) AnalyzeSegments(ctx context.Context, def Definition, window QueryWindow, dimension Dimension) (map[string]*Report, error) {
	switch dimension {
	case DimensionCountry, DimensionDevice, DimensionBrowser, DimensionSource:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDimension, dimension)
	}
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

	var sources map[string]string
	if dimension == DimensionSource {
		if sources, err = e.loadSessionSources(ctx, window); err != nil {
			return nil, err
		}
	}

	partitions := make(map[string]map[string][]event)
	for sessionID, evs := range sessions {
		segment := segmentOf(dimension, sessionID, evs, sources)
		if partitions[segment] == nil {
			partitions[segment] = make(map[string][]event)
		}
		partitions[segment][sessionID] = evs
	}

	now := e.clock.Now()
	reports := make(map[string]*Report, len(partitions))
	for segment, part := range partitions {
		reports[segment] = buildReport(def, window, part, now)
	}
	return reports, nil
}

// segmentOf derives the partition key from the first event carrying a value
// for the dimension.
func segmentOf(dimension Dimension, sessionID string, evs []event, sources map[string]string) string {
	if dimension == DimensionSource {
		if source := sources[sessionID]; source != "" {
			return source
		}
		return segmentUnknown
	}

	for _, ev := range evs {
		var value string
		switch dimension {
		case DimensionCountry:
			value = ev.Country
		case DimensionDevice:
			value = ev.DeviceType
		case DimensionBrowser:
			value = ev.Browser
		}
		if value != "" {
			return value
		}
	}
	return segmentUnknown
}

func (e *Engine) loadSessionSources(ctx context.Context, window QueryWindow) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	defer cancel()

	rows, err := e.events.Query(ctx, sessionSourcesQuery, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("load session sources: %w", err)
	}

	sources := make(map[string]string, len(rows))
	for _, row := range rows {
		if id := rowString(row, "session_id"); id != "" {
			sources[id] = rowString(row, "traffic_source")
		}
	}
	return sources, nil
}
