package ingest

import (
	"context"
	"log/slog"

	"github.com/trackkit/trackkit/pkg/columnar"
	"github.com/trackkit/trackkit/pkg/session"
)

// SessionArchiver returns an end hook that writes every ended session to the
// columnar sessions table. Wire it into the session manager:
//
//	manager, err := session.NewManager(store,
//	    session.WithEndHook(ingest.SessionArchiver(events, log)),
//	)
//
// Archive failures are logged, not fatal: the session document survives in
// the key-value store until its retention TTL, so a later sweep of the
// external store can reconcile.
func SessionArchiver(events columnar.Store, logger *slog.Logger) session.EndHook {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, sess *session.Session) {
		record := columnar.Record{
			"session_id":       sess.ID,
			"user_id":          sess.UserID,
			"start_time":       sess.StartTime,
			"end_time":         sess.EndTime,
			"page_views":       sess.PageViews,
			"duration_seconds": sess.Duration,
			"bounce":           sess.Bounce,
			"conversion":       sess.Conversion,
			"conversion_value": sess.ConversionValue,
			"traffic_source":   sess.TrafficSource,
			"traffic_medium":   sess.TrafficMedium,
			"traffic_campaign": sess.TrafficCampaign,
			"device_type":      sess.DeviceType,
			"country":          sess.Country,
			"is_bot":           sess.IsBot,
		}
		if err := events.Insert(ctx, columnar.TableSessions, []columnar.Record{record}); err != nil {
			logger.Warn("session archive failed",
				slog.String("session_id", sess.ID),
				slog.Any("error", err))
		}
	}
}
