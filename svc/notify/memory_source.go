package notify

import (
	"context"
	"sync"
)

// MemorySource is an in-memory Source for tests and standalone runs.
type MemorySource struct {
	mu         sync.RWMutex
	orders     map[string]Order
	volunteers map[string]Volunteer
	customers  map[string]Customer
	zones      map[string]Zone
}

var _ Source = (*MemorySource)(nil)

func NewMemorySource() *MemorySource {
	return &MemorySource{
		orders:     make(map[string]Order),
		volunteers: make(map[string]Volunteer),
		customers:  make(map[string]Customer),
		zones:      make(map[string]Zone),
	}
}

func (s *MemorySource) AddOrder(o Order) *MemorySource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
	return s
}

func (s *MemorySource) AddVolunteer(v Volunteer) *MemorySource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volunteers[v.ID] = v
	return s
}

func (s *MemorySource) AddCustomer(c Customer) *MemorySource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = c
	return s
}

func (s *MemorySource) AddZone(z Zone) *MemorySource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones[z.ID] = z
	return s
}

func (s *MemorySource) GetOrder(_ context.Context, id string) (Order, error) {
	return lookup(&s.mu, s.orders, id)
}

func (s *MemorySource) GetVolunteer(_ context.Context, id string) (Volunteer, error) {
	return lookup(&s.mu, s.volunteers, id)
}

func (s *MemorySource) GetCustomer(_ context.Context, id string) (Customer, error) {
	return lookup(&s.mu, s.customers, id)
}

func (s *MemorySource) GetZone(_ context.Context, id string) (Zone, error) {
	return lookup(&s.mu, s.zones, id)
}

func lookup[T any](mu *sync.RWMutex, m map[string]T, id string) (T, error) {
	mu.RLock()
	defer mu.RUnlock()
	v, ok := m[id]
	if !ok {
		var zero T
		return zero, ErrEntityNotFound
	}
	return v, nil
}
