package notifications

import "context"

// Storage handles notification persistence and retrieval.
//
// Delivery status is written only by the dispatch path; the read flag only by
// the recipient-facing calls. DeliveryFailed is terminal: implementations must
// never move a failed record back to sent.
type Storage interface {
	// InsertMany stores all records in one round trip and returns them as
	// persisted.
	InsertMany(ctx context.Context, records []Notification) ([]Notification, error)

	// UpdateDeliveryStatus sets the delivery status of the given records.
	UpdateDeliveryStatus(ctx context.Context, status DeliveryStatus, ids ...string) error

	// Get retrieves a single notification by id.
	Get(ctx context.Context, id string) (*Notification, error)

	// List returns a recipient's notifications, newest first. Public() lists
	// the public bucket.
	List(ctx context.Context, r Recipient, opts ListOptions) ([]Notification, error)

	// CountUnread returns the recipient's unread count.
	CountUnread(ctx context.Context, r Recipient) (int, error)

	// MarkRead marks the recipient's own notifications as read. Ids owned by
	// someone else are ignored.
	MarkRead(ctx context.Context, r Recipient, ids ...string) error

	// MarkAllRead marks every notification of the recipient as read.
	MarkAllRead(ctx context.Context, r Recipient) error
}

// ListOptions provides filtering and pagination options for listing notifications.
type ListOptions struct {
	Limit      int        // Maximum number of notifications to return (0 = no limit)
	Offset     int        // Number of notifications to skip for pagination
	OnlyUnread bool       // When true, only return unread notifications
	Categories []Category // If specified, only return notifications in these categories
}
