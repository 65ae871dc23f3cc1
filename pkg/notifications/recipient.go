package notifications

// Recipient is a resolved (identity, role) pair. The zero ID with RolePublic
// stands for unauthenticated viewers of the public notice board.
//
// Email and Name are contact details carried along for channel senders; they
// are not part of the identity.
type Recipient struct {
	ID    string `json:"id,omitempty"`
	Role  Role   `json:"role"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Volunteer addresses a volunteer by their authentication identity.
func Volunteer(authID string) Recipient { return Recipient{ID: authID, Role: RoleVolunteer} }

func Customer(id string) Recipient { return Recipient{ID: id, Role: RoleCustomer} }

func Admin(authID string) Recipient { return Recipient{ID: authID, Role: RoleAdmin} }

// Public is the pseudo-recipient for the public feed.
func Public() Recipient { return Recipient{Role: RolePublic} }

// WithEmail returns a copy carrying the given contact address.
func (r Recipient) WithEmail(addr string) Recipient {
	r.Email = addr
	return r
}

// Key identifies the recipient for de-duplication.
func (r Recipient) Key() string {
	return string(r.Role) + ":" + r.ID
}

func (r Recipient) IsPublic() bool { return r.Role == RolePublic }

// Gated reports whether the recipient has a preference model. Public and
// admin recipients always receive.
func (r Recipient) Gated() bool {
	return r.Role == RoleVolunteer || r.Role == RoleCustomer
}

// Valid reports whether the recipient satisfies the identity invariant.
func (r Recipient) Valid() bool {
	if !r.Role.Valid() {
		return false
	}
	return (r.ID == "") == r.IsPublic()
}

// Dedupe removes repeated (identity, role) pairs keeping the first
// occurrence. Contact details missing on the first occurrence are filled in
// from later duplicates.
func Dedupe(rs []Recipient) []Recipient {
	out := make([]Recipient, 0, len(rs))
	idx := make(map[string]int, len(rs))
	for _, r := range rs {
		if i, ok := idx[r.Key()]; ok {
			if out[i].Email == "" {
				out[i].Email = r.Email
			}
			if out[i].Name == "" {
				out[i].Name = r.Name
			}
			continue
		}
		idx[r.Key()] = len(out)
		out = append(out, r)
	}
	return out
}
