package session

import "errors"

var (
	// ErrSessionNotFound indicates no session exists for the given identifier.
	ErrSessionNotFound = errors.New("session: not found")

	// ErrSessionEnded indicates a mutation was attempted against a session
	// in its terminal state.
	ErrSessionEnded = errors.New("session: already ended")

	// ErrNilStore indicates the manager was constructed without a store.
	ErrNilStore = errors.New("session: nil key-value store")
)
