package notifications

import "fmt"

// Scope of a targeting spec.
type Scope string

const (
	ScopeAll        Scope = "all"
	ScopeRole       Scope = "role"
	ScopeIndividual Scope = "individual"
)

// TargetingSpec describes who a broadcast should reach. It is built per
// dispatch and never persisted.
type TargetingSpec struct {
	Scope Scope    `json:"scope"`
	Role  Role     `json:"role,omitempty"`
	IDs   []string `json:"ids,omitempty"`
}

func TargetAll() TargetingSpec { return TargetingSpec{Scope: ScopeAll} }

func TargetRole(role Role) TargetingSpec { return TargetingSpec{Scope: ScopeRole, Role: role} }

func TargetIndividuals(ids ...string) TargetingSpec {
	return TargetingSpec{Scope: ScopeIndividual, IDs: ids}
}

// Validate rejects malformed specs before any directory I/O happens.
func (s TargetingSpec) Validate() error {
	switch s.Scope {
	case ScopeAll:
		return nil
	case ScopeRole:
		switch s.Role {
		case RoleVolunteer, RoleCustomer, RoleAdmin:
			return nil
		}
		return fmt.Errorf("%w: %q", ErrInvalidTargetRole, s.Role)
	case ScopeIndividual:
		if len(s.IDs) == 0 {
			return ErrMissingTargetIDs
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTargetScope, s.Scope)
	}
}
