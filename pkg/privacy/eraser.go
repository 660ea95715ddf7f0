package privacy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/trackkit/trackkit/pkg/columnar"
	"github.com/trackkit/trackkit/pkg/kv"
)

// ErrEmptyIdentity indicates a deletion request carried neither a user ID
// nor session IDs.
var ErrEmptyIdentity = errors.New("privacy: deletion request without identity")

// Identity addresses the data to purge: a user ID, explicit session IDs, or
// both.
type Identity struct {
	UserID     string
	SessionIDs []string
}

func (id Identity) empty() bool {
	return id.UserID == "" && len(id.SessionIDs) == 0
}

// Eraser purges a visitor's data from the columnar tables and the key-value
// namespaces.
type Eraser struct {
	events   columnar.Store
	sessions kv.Store
	logger   *slog.Logger
}

// NewEraser wires an eraser against both storage collaborators.
func NewEraser(events columnar.Store, sessions kv.Store, logger *slog.Logger) *Eraser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Eraser{events: events, sessions: sessions, logger: logger}
}

// DeleteByIdentity removes every row and key-value entry matching the
// identity. Erasure is best-effort across stores: a failure on one table
// aborts with an error so the externally owned workflow can retry; deletes
// already applied are acceptable (erasure is idempotent).
func (e *Eraser) DeleteByIdentity(ctx context.Context, id Identity) error {
	if id.empty() {
		return ErrEmptyIdentity
	}

	sessions := append([]string(nil), id.SessionIDs...)

	// Events keyed by user also carry session ids we need for the KV purge.
	if id.UserID != "" {
		rows, err := e.events.Query(ctx,
			"SELECT DISTINCT session_id FROM events WHERE user_id = $1", id.UserID)
		if err != nil {
			return fmt.Errorf("privacy: resolving sessions for user: %w", err)
		}
		for _, row := range rows {
			if sid, ok := row["session_id"].(string); ok {
				sessions = append(sessions, sid)
			}
		}
	}

	for _, table := range []string{
		columnar.TableEvents,
		columnar.TableSessions,
		columnar.TableConversions,
		columnar.TableExperiments,
	} {
		if err := e.purgeTable(ctx, table, id, sessions); err != nil {
			return err
		}
	}

	if err := e.purgeKV(ctx, id, sessions); err != nil {
		return err
	}

	e.logger.Info("identity purged",
		slog.String("user_id", id.UserID),
		slog.Int("sessions", len(sessions)))
	return nil
}

func (e *Eraser) purgeTable(ctx context.Context, table string, id Identity, sessions []string) error {
	// The experiments table has no session column; assignments and outcomes
	// are keyed by user only.
	if table == columnar.TableExperiments {
		if id.UserID == "" {
			return nil
		}
		if err := e.events.Command(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE user_id = $1", table), id.UserID); err != nil {
			return fmt.Errorf("privacy: purge %s: %w", table, err)
		}
		return nil
	}

	if id.UserID != "" {
		if err := e.events.Command(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE user_id = $1", table), id.UserID); err != nil {
			return fmt.Errorf("privacy: purge %s: %w", table, err)
		}
	}
	if len(sessions) > 0 {
		if err := e.events.Command(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE session_id = ANY($1)", table), sessions); err != nil {
			return fmt.Errorf("privacy: purge %s: %w", table, err)
		}
	}
	return nil
}

func (e *Eraser) purgeKV(ctx context.Context, id Identity, sessions []string) error {
	var keys []string
	for _, sid := range sessions {
		keys = append(keys, "session:"+sid)

		progress, err := e.sessions.Keys(ctx, "funnel:progress:"+sid+":*")
		if err != nil {
			return fmt.Errorf("privacy: listing funnel progress: %w", err)
		}
		keys = append(keys, progress...)
	}

	if id.UserID != "" {
		// Sticky assignments are keyed experiment:<id>:<user>; match on the
		// user suffix.
		assignments, err := e.sessions.Keys(ctx, "experiment:*:"+id.UserID)
		if err != nil {
			return fmt.Errorf("privacy: listing assignments: %w", err)
		}
		keys = append(keys, assignments...)
	}

	if len(keys) == 0 {
		return nil
	}
	if err := e.sessions.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("privacy: deleting keys: %w", err)
	}
	return nil
}
