package notify

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/harvestlane/notifykit/pkg/pg"
)

// Querier is the subset of pgxpool.Pool used by PGSource.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGSource reads trigger context from the application tables.
type PGSource struct {
	db Querier
}

var _ Source = (*PGSource)(nil)

func NewPGSource(db Querier) *PGSource {
	return &PGSource{db: db}
}

func (s *PGSource) GetOrder(ctx context.Context, id string) (Order, error) {
	var o Order
	err := s.db.QueryRow(ctx, `
		SELECT id, order_number, COALESCE(customer_id, ''), customer_name,
		       COALESCE(referred_by, ''), status, total_amount::float8
		FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &o.Number, &o.CustomerID, &o.CustomerName, &o.ReferredBy, &o.Status, &o.Total)
	return o, rowErr(err)
}

func (s *PGSource) GetVolunteer(ctx context.Context, id string) (Volunteer, error) {
	var v Volunteer
	err := s.db.QueryRow(ctx, `
		SELECT id, COALESCE(auth_id, ''), name, COALESCE(email, '')
		FROM volunteers WHERE id = $1`, id).
		Scan(&v.ID, &v.AuthID, &v.Name, &v.Email)
	return v, rowErr(err)
}

func (s *PGSource) GetCustomer(ctx context.Context, id string) (Customer, error) {
	var c Customer
	err := s.db.QueryRow(ctx, `
		SELECT id, name, COALESCE(email, '') FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Email)
	return c, rowErr(err)
}

func (s *PGSource) GetZone(ctx context.Context, id string) (Zone, error) {
	var z Zone
	err := s.db.QueryRow(ctx, `SELECT id, name FROM zones WHERE id = $1`, id).Scan(&z.ID, &z.Name)
	return z, rowErr(err)
}

func rowErr(err error) error {
	switch {
	case err == nil:
		return nil
	case pg.IsNotFoundError(err):
		return ErrEntityNotFound
	default:
		return errors.Join(ErrSourceLookup, err)
	}
}
