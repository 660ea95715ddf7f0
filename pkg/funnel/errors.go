package funnel

import "errors"

var (
	// ErrNotFound indicates no funnel is registered under the given id.
	ErrNotFound = errors.New("funnel: not found")

	// ErrInvalidDefinition indicates a malformed funnel definition.
	ErrInvalidDefinition = errors.New("funnel: invalid definition")

	// ErrTooFewSteps indicates a definition with fewer than two steps.
	ErrTooFewSteps = errors.New("funnel: at least two steps required")

	// ErrInvalidWindow indicates a non-positive conversion or attribution
	// window.
	ErrInvalidWindow = errors.New("funnel: windows must be positive")

	// ErrEmptyPredicate indicates a step that would match every event.
	ErrEmptyPredicate = errors.New("funnel: step predicate must constrain something")

	// ErrUnknownStep indicates a TrackStep call with a step name the
	// definition does not contain.
	ErrUnknownStep = errors.New("funnel: unknown step")

	// ErrUnknownDimension indicates an unsupported segmentation dimension.
	ErrUnknownDimension = errors.New("funnel: unknown dimension")

	// ErrUnknownPeriod indicates an unsupported cohort period.
	ErrUnknownPeriod = errors.New("funnel: unknown cohort period")

	// ErrInvalidQueryWindow indicates a query window whose end does not
	// follow its start.
	ErrInvalidQueryWindow = errors.New("funnel: query window end must be after start")

	// ErrNilStore indicates the engine was constructed without a columnar
	// store.
	ErrNilStore = errors.New("funnel: nil columnar store")
)
