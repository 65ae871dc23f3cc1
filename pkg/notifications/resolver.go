package notifications

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/harvestlane/notifykit/pkg/logger"
)

// Resolver turns a TargetingSpec into a deduplicated list of recipients.
// It has no side effects.
type Resolver struct {
	dir    Directory
	admins map[string]struct{}
	logger *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a resolver. adminEmails is the allow-list deciding which
// authentication users count as administrators; comparison is case-insensitive.
func NewResolver(dir Directory, adminEmails []string, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		dir:    dir,
		admins: make(map[string]struct{}, len(adminEmails)),
		logger: slog.Default(),
	}
	for _, e := range adminEmails {
		if e = normalizeEmail(e); e != "" {
			r.admins[e] = struct{}{}
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsAdminEmail reports whether addr is on the admin allow-list.
func (r *Resolver) IsAdminEmail(addr string) bool {
	_, ok := r.admins[normalizeEmail(addr)]
	return ok
}

// Resolve returns the recipients described by spec. An empty result is not
// an error.
func (r *Resolver) Resolve(ctx context.Context, spec TargetingSpec) ([]Recipient, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	var (
		out []Recipient
		err error
	)
	switch spec.Scope {
	case ScopeAll:
		out, err = r.resolveAll(ctx)
	case ScopeRole:
		out, err = r.resolveRole(ctx, spec.Role)
	case ScopeIndividual:
		out, err = r.resolveIndividuals(ctx, spec.IDs)
	}
	if err != nil {
		return nil, err
	}

	out = Dedupe(out)
	r.logger.DebugContext(ctx, "recipients resolved",
		slog.String("scope", string(spec.Scope)),
		logger.Count("recipients", len(out)),
	)
	return out, nil
}

func (r *Resolver) resolveAll(ctx context.Context) ([]Recipient, error) {
	var (
		volunteers []VolunteerRecord
		customers  []CustomerRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		volunteers, err = r.dir.ListVolunteers(gctx)
		return err
	})
	g.Go(func() (err error) {
		customers, err = r.dir.ListCustomers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Join(ErrDirectoryLookup, err)
	}

	out := make([]Recipient, 0, len(volunteers)+len(customers)+1)
	out = append(out, volunteerRecipients(volunteers)...)
	out = append(out, customerRecipients(customers)...)
	out = append(out, Public())
	return out, nil
}

func (r *Resolver) resolveRole(ctx context.Context, role Role) ([]Recipient, error) {
	switch role {
	case RoleVolunteer:
		vs, err := r.dir.ListVolunteers(ctx)
		if err != nil {
			return nil, errors.Join(ErrDirectoryLookup, err)
		}
		return volunteerRecipients(vs), nil
	case RoleCustomer:
		cs, err := r.dir.ListCustomers(ctx)
		if err != nil {
			return nil, errors.Join(ErrDirectoryLookup, err)
		}
		return customerRecipients(cs), nil
	default:
		return r.resolveAdmins(ctx)
	}
}

func (r *Resolver) resolveAdmins(ctx context.Context) ([]Recipient, error) {
	users, err := r.dir.ListAdminAuthUsers(ctx)
	if err != nil {
		return nil, errors.Join(ErrDirectoryLookup, err)
	}
	return r.adminRecipients(users), nil
}

// adminRecipients is the access-control boundary: only users whose email is
// on the allow-list are treated as administrators.
func (r *Resolver) adminRecipients(users []AuthUser) []Recipient {
	out := make([]Recipient, 0, len(users))
	for _, u := range users {
		if u.ID == "" || !r.IsAdminEmail(u.Email) {
			continue
		}
		out = append(out, Admin(u.ID).WithEmail(u.Email))
	}
	return out
}

// resolveIndividuals probes every namespace for each id because callers do
// not know which one an id belongs to. Probe order is volunteer, customer,
// admin; the first match decides the role.
func (r *Resolver) resolveIndividuals(ctx context.Context, ids []string) ([]Recipient, error) {
	var (
		volunteers []VolunteerRecord
		customers  []CustomerRecord
		users      []AuthUser
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		volunteers, err = r.dir.ListVolunteers(gctx)
		return err
	})
	g.Go(func() (err error) {
		customers, err = r.dir.ListCustomers(gctx)
		return err
	})
	g.Go(func() (err error) {
		users, err = r.dir.ListAdminAuthUsers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Join(ErrDirectoryLookup, err)
	}

	// Volunteers are addressable by their auth identity or their row id; both
	// resolve to the auth identity.
	byVolunteer := make(map[string]Recipient, len(volunteers)*2)
	for _, v := range volunteers {
		if v.AuthID == "" {
			continue
		}
		rec := volunteerRecipient(v)
		byVolunteer[v.AuthID] = rec
		if v.ID != "" {
			if _, taken := byVolunteer[v.ID]; !taken {
				byVolunteer[v.ID] = rec
			}
		}
	}
	byCustomer := make(map[string]Recipient, len(customers))
	for _, c := range customerRecipients(customers) {
		byCustomer[c.ID] = c
	}
	byAdmin := make(map[string]Recipient, len(users))
	for _, a := range r.adminRecipients(users) {
		byAdmin[a.ID] = a
	}

	out := make([]Recipient, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if rec, ok := byVolunteer[id]; ok {
			out = append(out, rec)
			continue
		}
		if rec, ok := byCustomer[id]; ok {
			out = append(out, rec)
			continue
		}
		if rec, ok := byAdmin[id]; ok {
			out = append(out, rec)
			continue
		}
		r.logger.DebugContext(ctx, "targeted id matches no recipient", slog.String("id", id))
	}
	return out, nil
}

func volunteerRecipient(v VolunteerRecord) Recipient {
	rec := Volunteer(v.AuthID).WithEmail(v.Email)
	rec.Name = v.Name
	return rec
}

// volunteerRecipients skips volunteers without an auth identity.
func volunteerRecipients(vs []VolunteerRecord) []Recipient {
	out := make([]Recipient, 0, len(vs))
	for _, v := range vs {
		if v.AuthID == "" {
			continue
		}
		out = append(out, volunteerRecipient(v))
	}
	return out
}

func customerRecipients(cs []CustomerRecord) []Recipient {
	out := make([]Recipient, 0, len(cs))
	for _, c := range cs {
		if c.ID == "" {
			continue
		}
		rec := Customer(c.ID).WithEmail(c.Email)
		rec.Name = c.Name
		out = append(out, rec)
	}
	return out
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
