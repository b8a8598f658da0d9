package memory

import (
	"context"
	"sync"

	id "trustee/pkg/domain"
	audit "trustee/pkg/platform/audit"
)

// Store is an in-memory audit store for dev mode and tests.
type Store struct {
	mu     sync.RWMutex
	events []audit.Event
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *Store) ListByBeneficiary(_ context.Context, beneficiary id.Address) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.Beneficiary == beneficiary {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns a copy of every stored event. Test convenience.
func (s *Store) All() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events...)
}
