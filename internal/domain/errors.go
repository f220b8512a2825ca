package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// Fatal setup errors: each aborts a whole sync run.
	ErrNoCredential = errors.New("no stored credential")
	ErrNoAccount    = errors.New("no accessible account")
	ErrNoLocation   = errors.New("no accessible location")

	// Returned when the per-location run lock is already held.
	ErrSyncInFlight = errors.New("sync already in flight for this location")
)
