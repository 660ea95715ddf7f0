package columnar

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrFailedToParseConfig = errors.New("columnar: failed to parse connection config")
	ErrStoreNotReady       = errors.New("columnar: store did not become ready within the given time period")
	ErrHealthcheckFailed   = errors.New("columnar: healthcheck failed")
	ErrEmptyBatch          = errors.New("columnar: empty record batch")
	ErrInconsistentColumns = errors.New("columnar: records in one batch must share the same columns")
	ErrUnavailable         = errors.New("columnar: store unavailable")
)

// IsRetryable reports whether an insert/query failure is transient: the
// caller should re-queue the batch and try again rather than drop it.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrUnavailable) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exceptions; class 57: operator intervention
		// (shutdown, cannot connect now). Everything else is a caller bug.
		return len(pgErr.Code) >= 2 && (pgErr.Code[:2] == "08" || pgErr.Code[:2] == "57")
	}

	return pgconn.SafeToRetry(err)
}
