package ingest

import "errors"

var (
	// ErrInvalidEvent indicates a malformed event rejected synchronously,
	// never queued.
	ErrInvalidEvent = errors.New("ingest: invalid event")

	// ErrUnknownEventType indicates an event type outside the accepted enum.
	ErrUnknownEventType = errors.New("ingest: unknown event type")

	// ErrInvalidProperty indicates a property value outside the supported
	// scalar kinds.
	ErrInvalidProperty = errors.New("ingest: invalid property value")

	// ErrNilStore indicates the pipeline was constructed without a columnar
	// store.
	ErrNilStore = errors.New("ingest: nil columnar store")

	// ErrNilSessions indicates the pipeline was constructed without a
	// session manager.
	ErrNilSessions = errors.New("ingest: nil session manager")
)
