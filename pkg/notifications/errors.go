package notifications

import "errors"

var (
	// ErrNotificationNotFound is returned when a notification is not found.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrInvalidNotification is returned when a record breaks the model invariants.
	ErrInvalidNotification = errors.New("invalid notification")

	// ErrInvalidTargetScope is returned for an unknown targeting scope.
	ErrInvalidTargetScope = errors.New("invalid targeting scope")

	// ErrInvalidTargetRole is returned when a role-scoped spec names no targetable role.
	ErrInvalidTargetRole = errors.New("invalid targeting role")

	// ErrMissingTargetIDs is returned when an individual-scoped spec has no ids.
	ErrMissingTargetIDs = errors.New("individual targeting requires ids")

	// ErrDirectoryLookup wraps failures of the identity directory.
	ErrDirectoryLookup = errors.New("recipient directory lookup failed")

	// ErrInvalidMessage is returned when a message cannot produce valid records.
	ErrInvalidMessage = errors.New("invalid notification message")

	// ErrStoreInsert wraps in-app persistence failures. It is the only
	// dispatch failure that propagates to the caller.
	ErrStoreInsert = errors.New("failed to store notifications")

	// ErrPreferencesUnavailable is returned when no preference store is configured.
	ErrPreferencesUnavailable = errors.New("preference store not configured")

	// ErrRecipientNotFound is returned when a preference update targets an unknown recipient.
	ErrRecipientNotFound = errors.New("recipient not found")

	// ErrInvalidPolicy is returned when a classification policy document is malformed.
	ErrInvalidPolicy = errors.New("invalid notification policy")

	// ErrPoolFull is returned when the send queue has no free slot.
	ErrPoolFull = errors.New("send pool queue full")

	// ErrPoolStopped is returned when submitting to a pool that is not running.
	ErrPoolStopped = errors.New("send pool stopped")
)
