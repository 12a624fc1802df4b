package docstore

import "errors"

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrConflict is returned by RunTransaction after the retry budget is
	// exhausted. Callers may retry the whole operation; the business state
	// must be re-read first.
	ErrConflict = errors.New("transaction conflict: retries exhausted")
)
