package notifications

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStorage is an in-memory implementation of the Storage interface.
// Suitable for development and testing.
type MemoryStorage struct {
	mu     sync.RWMutex
	byID   map[string]*Notification
	byUser map[string][]string // recipient key -> ids in insertion order
	// FailInsert, when set, is returned by InsertMany. Used to simulate
	// store outages.
	FailInsert error
}

// NewMemoryStorage creates a new in-memory notification storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		byID:   make(map[string]*Notification),
		byUser: make(map[string][]string),
	}
}

func (s *MemoryStorage) InsertMany(ctx context.Context, records []Notification) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailInsert != nil {
		return nil, s.FailInsert
	}
	// Validate everything first so a bad record leaves no partial batch.
	for _, n := range records {
		if n.ID == "" {
			return nil, ErrInvalidNotification
		}
		if _, dup := s.byID[n.ID]; dup {
			return nil, ErrInvalidNotification
		}
		if err := n.Validate(); err != nil {
			return nil, err
		}
	}

	out := make([]Notification, 0, len(records))
	for _, n := range records {
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now()
		}
		if n.DeliveryStatus == "" {
			n.DeliveryStatus = DeliveryPending
		}
		n.Channels = slices.Clone(n.Channels)
		stored := n
		s.byID[n.ID] = &stored
		key := n.Recipient().Key()
		s.byUser[key] = append(s.byUser[key], n.ID)
		out = append(out, n)
	}
	return out, nil
}

func (s *MemoryStorage) UpdateDeliveryStatus(ctx context.Context, status DeliveryStatus, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		n, ok := s.byID[id]
		if !ok {
			continue
		}
		if n.DeliveryStatus == DeliveryFailed && status != DeliveryFailed {
			continue
		}
		n.DeliveryStatus = status
	}
	return nil
}

func (s *MemoryStorage) Get(ctx context.Context, id string) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.byID[id]
	if !ok {
		return nil, ErrNotificationNotFound
	}
	// Return a copy to prevent external mutation of stored data
	cp := *n
	return &cp, nil
}

func (s *MemoryStorage) List(ctx context.Context, r Recipient, opts ListOptions) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byUser[r.Key()]
	out := make([]Notification, 0, len(ids))
	// newest first
	for i := len(ids) - 1; i >= 0; i-- {
		n := s.byID[ids[i]]
		if opts.OnlyUnread && n.Read {
			continue
		}
		if len(opts.Categories) > 0 && !slices.Contains(opts.Categories, n.Category) {
			continue
		}
		out = append(out, *n)
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []Notification{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *MemoryStorage) CountUnread(ctx context.Context, r Recipient) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, id := range s.byUser[r.Key()] {
		if !s.byID[id].Read {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) MarkRead(ctx context.Context, r Recipient, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := r.Key()
	for _, id := range ids {
		n, ok := s.byID[id]
		if !ok || n.Recipient().Key() != key {
			continue
		}
		n.Read = true
	}
	return nil
}

func (s *MemoryStorage) MarkAllRead(ctx context.Context, r Recipient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.byUser[r.Key()] {
		s.byID[id].Read = true
	}
	return nil
}

// All returns a snapshot of every stored record in insertion order per
// recipient. Intended for tests and diagnostics.
func (s *MemoryStorage) All() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Notification, 0, len(s.byID))
	for _, ids := range s.byUser {
		for _, id := range ids {
			out = append(out, *s.byID[id])
		}
	}
	slices.SortStableFunc(out, func(a, b Notification) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}
