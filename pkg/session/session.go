package session

import (
	"time"

	"github.com/google/uuid"
)

// Session is the mutable per-visitor aggregate. It is keyed by ID and
// persisted as a JSON document in the key-value store under "session:<id>".
type Session struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id,omitempty"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	EndReason       string     `json:"end_reason,omitempty"`
	PageViews       int64      `json:"page_views"`
	Duration        float64    `json:"duration"` // seconds, non-decreasing until ended
	Bounce          bool       `json:"bounce"`
	Conversion      bool       `json:"conversion"`
	ConversionValue float64    `json:"conversion_value"`
	TrafficSource   string     `json:"traffic_source,omitempty"`
	TrafficMedium   string     `json:"traffic_medium,omitempty"`
	TrafficCampaign string     `json:"traffic_campaign,omitempty"`
	DeviceType      string     `json:"device_type,omitempty"`
	Country         string     `json:"country,omitempty"`
	IsBot           bool       `json:"is_bot"`
	LastActivityAt  time.Time  `json:"last_activity_at"`
}

// Context carries the visitor attributes known at session creation time.
type Context struct {
	UserID          string
	TrafficSource   string
	TrafficMedium   string
	TrafficCampaign string
	DeviceType      string
	Country         string
	IsBot           bool
}

// newSession mints an active session from the request context.
func newSession(ctx Context, now time.Time) *Session {
	return &Session{
		ID:              uuid.NewString(),
		UserID:          ctx.UserID,
		StartTime:       now,
		PageViews:       0,
		Bounce:          true,
		TrafficSource:   ctx.TrafficSource,
		TrafficMedium:   ctx.TrafficMedium,
		TrafficCampaign: ctx.TrafficCampaign,
		DeviceType:      ctx.DeviceType,
		Country:         ctx.Country,
		IsBot:           ctx.IsBot,
		LastActivityAt:  now,
	}
}

// Ended reports whether the session has reached its terminal state.
func (s *Session) Ended() bool {
	return s != nil && s.EndTime != nil
}

// touch applies an activity update. Callers must hold the session's lock.
func (s *Session) touch(eventType string, now time.Time) {
	if eventType == "page_view" {
		s.PageViews++
	}
	s.Bounce = s.PageViews <= 1

	// Duration is monotonically non-decreasing: a clock step backwards must
	// not shrink an already observed value.
	if d := now.Sub(s.StartTime).Seconds(); d > s.Duration {
		s.Duration = d
	}
	if now.After(s.LastActivityAt) {
		s.LastActivityAt = now
	}
}
