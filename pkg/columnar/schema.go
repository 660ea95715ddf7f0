package columnar

import (
	"context"
	"fmt"
	"time"
)

// Schema returns the DDL for the four tables the kit writes. The retention
// TTL is recorded as a table comment; enforcement (partition drops) belongs
// to the store, not to this kit.
func Schema(retention time.Duration) []string {
	days := int(retention.Hours() / 24)
	return []string{
		`CREATE TABLE IF NOT EXISTS events (
			event_id    TEXT        NOT NULL,
			timestamp   TIMESTAMPTZ NOT NULL,
			event_type  TEXT        NOT NULL,
			session_id  TEXT        NOT NULL,
			user_id     TEXT,
			page_url    TEXT,
			referrer    TEXT,
			device_type TEXT,
			browser     TEXT,
			os          TEXT,
			country     TEXT,
			ip_hash     TEXT,
			properties  JSONB
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id       TEXT        NOT NULL,
			user_id          TEXT,
			start_time       TIMESTAMPTZ NOT NULL,
			end_time         TIMESTAMPTZ,
			page_views       BIGINT      NOT NULL,
			duration_seconds DOUBLE PRECISION NOT NULL,
			bounce           BOOLEAN     NOT NULL,
			conversion       BOOLEAN     NOT NULL,
			conversion_value DOUBLE PRECISION NOT NULL,
			traffic_source   TEXT,
			traffic_medium   TEXT,
			traffic_campaign TEXT,
			device_type      TEXT,
			country          TEXT,
			is_bot           BOOLEAN     NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS conversions (
			event_id   TEXT        NOT NULL,
			timestamp  TIMESTAMPTZ NOT NULL,
			session_id TEXT        NOT NULL,
			user_id    TEXT,
			value      DOUBLE PRECISION NOT NULL,
			page_url   TEXT,
			properties JSONB
		)`,
		`CREATE TABLE IF NOT EXISTS experiments (
			experiment_id TEXT        NOT NULL,
			user_id       TEXT        NOT NULL,
			variant_id    TEXT        NOT NULL,
			record_type   TEXT        NOT NULL,
			value         DOUBLE PRECISION NOT NULL,
			timestamp     TIMESTAMPTZ NOT NULL
		)`,
		fmt.Sprintf(`COMMENT ON TABLE events IS 'retention: %d days'`, days),
	}
}

// EnsureSchema applies the schema statements through the Command interface.
func EnsureSchema(ctx context.Context, store Store, retention time.Duration) error {
	for _, stmt := range Schema(retention) {
		if err := store.Command(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
