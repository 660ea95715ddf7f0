package columnar

import "context"

// Record is a single row addressed by column name. Values are restricted to
// scalar types and time.Time so serialization stays deterministic.
type Record map[string]any

// Row is a query result row addressed by column name.
type Row map[string]any

// Store defines the columnar store operations the kit depends on.
type Store interface {
	// Insert appends records to table in slice order. Delivery is
	// at-least-once: callers may retry a whole batch after a failure.
	Insert(ctx context.Context, table string, records []Record) error

	// Query runs an analytical query and returns all result rows.
	Query(ctx context.Context, query string, args ...any) ([]Row, error)

	// Command executes DDL or bulk update statements.
	Command(ctx context.Context, stmt string, args ...any) error
}

// Table names produced and consumed by the kit.
const (
	TableEvents      = "events"
	TableSessions    = "sessions"
	TableConversions = "conversions"
	TableExperiments = "experiments"
)
