package experiment

import "errors"

var (
	// ErrNotFound indicates no experiment exists under the given id.
	ErrNotFound = errors.New("experiment: not found")

	// ErrInvalidDefinition indicates a malformed experiment definition.
	ErrInvalidDefinition = errors.New("experiment: invalid definition")

	// ErrAlreadyExists indicates a Define for an id already taken.
	// Use Update to change an existing experiment.
	ErrAlreadyExists = errors.New("experiment: already exists")

	// ErrTooFewVariants indicates a definition with fewer than two variants.
	ErrTooFewVariants = errors.New("experiment: at least two variants required")

	// ErrInvalidWeights indicates variant weights that do not sum to 1.0
	// within tolerance.
	ErrInvalidWeights = errors.New("experiment: variant weights must sum to 1.0")

	// ErrInvalidAllocation indicates a traffic allocation outside [0, 1].
	ErrInvalidAllocation = errors.New("experiment: traffic allocation must be within [0, 1]")

	// ErrInvalidDates indicates an end date at or before the start date.
	ErrInvalidDates = errors.New("experiment: end date must be after start date")

	// ErrInvalidTransition indicates a status change the lifecycle does not
	// allow.
	ErrInvalidTransition = errors.New("experiment: invalid status transition")

	// ErrNotActive indicates an assignment request against an experiment
	// that is not currently running.
	ErrNotActive = errors.New("experiment: not active")

	// ErrNotTargeted indicates the visitor failed the targeting predicates.
	ErrNotTargeted = errors.New("experiment: visitor not targeted")

	// ErrNotInTraffic indicates the visitor fell outside the traffic
	// allocation.
	ErrNotInTraffic = errors.New("experiment: visitor outside traffic allocation")

	// ErrNilStore indicates the engine was constructed without a key-value
	// store.
	ErrNilStore = errors.New("experiment: nil key-value store")
)
