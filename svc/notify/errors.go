package notify

import "errors"

var (
	// ErrEntityNotFound means a trigger referenced an order, volunteer,
	// customer or zone that does not exist. Nothing is dispatched.
	ErrEntityNotFound = errors.New("notify: entity not found")
	ErrInvalidRequest = errors.New("notify: invalid request")
	ErrUnknownEvent   = errors.New("notify: unknown event")
	ErrSourceLookup   = errors.New("notify: failed to load event context")
)
