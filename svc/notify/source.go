package notify

import "context"

// Order is the slice of an order row the triggers need.
type Order struct {
	ID           string
	Number       string
	CustomerID   string
	CustomerName string
	// ReferredBy is the referring volunteer's row id, if any.
	ReferredBy string
	Status     string
	Total      float64
}

// DisplayNumber falls back to the id when the order has no public number.
func (o Order) DisplayNumber() string {
	if o.Number != "" {
		return o.Number
	}
	return o.ID
}

type Volunteer struct {
	ID     string
	AuthID string // empty when the volunteer never signed in
	Name   string
	Email  string
}

type Customer struct {
	ID    string
	Name  string
	Email string
}

type Zone struct {
	ID   string
	Name string
}

// Source loads the event context a trigger needs. Implementations return
// ErrEntityNotFound for missing rows.
type Source interface {
	GetOrder(ctx context.Context, id string) (Order, error)
	GetVolunteer(ctx context.Context, id string) (Volunteer, error)
	GetCustomer(ctx context.Context, id string) (Customer, error)
	GetZone(ctx context.Context, id string) (Zone, error)
}
