package notifications

import "context"

// VolunteerRecord is a volunteer row as seen by the resolver. AuthID is empty
// for volunteers without a linked login; they cannot receive in-app messages.
type VolunteerRecord struct {
	ID     string
	AuthID string
	Email  string
	Name   string
}

type CustomerRecord struct {
	ID    string
	Email string
	Name  string
}

// AuthUser is an entry of the external authentication user directory.
type AuthUser struct {
	ID    string
	Email string
}

// Directory lists the identity namespaces notifications can be addressed to.
// Implementations perform read-only I/O.
type Directory interface {
	ListVolunteers(ctx context.Context) ([]VolunteerRecord, error)
	ListCustomers(ctx context.Context) ([]CustomerRecord, error)
	// ListAdminAuthUsers returns candidate admin users. The resolver applies
	// the admin allow-list on top; implementations must not pre-filter.
	ListAdminAuthUsers(ctx context.Context) ([]AuthUser, error)
}
