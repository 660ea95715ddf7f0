package funnel

import (
	"context"
	"fmt"
	"time"
)

// Period selects the calendar grain AnalyzeCohorts groups by.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// AnalyzeCohorts groups sessions by the calendar period of their funnel
// entry, the first step-0 occurrence, and runs the funnel per cohort.
// Cohort keys are "2006-01-02" for days, "2006-W04" for ISO weeks and
// "2006-01" for months. Sessions that never enter the funnel belong to no
// cohort.
func (e *Engine) AnalyzeCohorts(ctx context.Context, def Definition, window QueryWindow, period Period) (map[string]*Report, error) {
	switch period {
	case PeriodDay, PeriodWeek, PeriodMonth:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
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

	cohorts := make(map[string]map[string][]event)
	for sessionID, evs := range sessions {
		tr, ok := traceSession(def, filterEvents(def, evs))
		if !ok {
			continue
		}
		key := cohortKey(period, tr.firstStepAt)
		if cohorts[key] == nil {
			cohorts[key] = make(map[string][]event)
		}
		cohorts[key][sessionID] = evs
	}

	now := e.clock.Now()
	reports := make(map[string]*Report, len(cohorts))
	for key, part := range cohorts {
		reports[key] = buildReport(def, window, part, now)
	}
	return reports, nil
}

func cohortKey(period Period, at time.Time) string {
	at = at.UTC()
	switch period {
	case PeriodWeek:
		year, week := at.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case PeriodMonth:
		return at.Format("2006-01")
	default:
		return at.Format("2006-01-02")
	}
}
