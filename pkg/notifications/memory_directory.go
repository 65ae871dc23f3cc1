package notifications

import (
	"context"
	"slices"
	"sync"
)

// MemoryDirectory is an in-memory Directory and PreferenceStore.
// Suitable for development and testing.
type MemoryDirectory struct {
	mu         sync.RWMutex
	volunteers []VolunteerRecord
	customers  []CustomerRecord
	authUsers  []AuthUser
	prefs      map[string]Preferences
	// Err, when set, is returned by every lookup.
	Err error
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{prefs: make(map[string]Preferences)}
}

func (d *MemoryDirectory) AddVolunteer(v VolunteerRecord) *MemoryDirectory {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.volunteers = append(d.volunteers, v)
	return d
}

func (d *MemoryDirectory) AddCustomer(c CustomerRecord) *MemoryDirectory {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.customers = append(d.customers, c)
	return d
}

func (d *MemoryDirectory) AddAuthUser(u AuthUser) *MemoryDirectory {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.authUsers = append(d.authUsers, u)
	return d
}

// SetPreferences replaces the preference record of a recipient.
func (d *MemoryDirectory) SetPreferences(id string, role Role, p Preferences) *MemoryDirectory {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prefs[Recipient{ID: id, Role: role}.Key()] = p
	return d
}

func (d *MemoryDirectory) ListVolunteers(ctx context.Context) ([]VolunteerRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.Err != nil {
		return nil, d.Err
	}
	return slices.Clone(d.volunteers), nil
}

func (d *MemoryDirectory) ListCustomers(ctx context.Context) ([]CustomerRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.Err != nil {
		return nil, d.Err
	}
	return slices.Clone(d.customers), nil
}

func (d *MemoryDirectory) ListAdminAuthUsers(ctx context.Context) ([]AuthUser, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.Err != nil {
		return nil, d.Err
	}
	return slices.Clone(d.authUsers), nil
}

func (d *MemoryDirectory) GetPreferences(ctx context.Context, id string, role Role) (*Preferences, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.Err != nil {
		return nil, d.Err
	}
	p, ok := d.prefs[Recipient{ID: id, Role: role}.Key()]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (d *MemoryDirectory) UpdatePreferences(ctx context.Context, id string, role Role, patch Preferences) (*Preferences, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	key := Recipient{ID: id, Role: role}.Key()
	merged := d.prefs[key].Merge(patch)
	d.prefs[key] = merged
	return &merged, nil
}
