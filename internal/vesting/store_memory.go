package vesting

import (
	"context"
	"sync"

	"github.com/holiman/uint256"

	id "trustee/pkg/domain"
	"trustee/pkg/platform/sentinel"
)

type grantRecord struct {
	grant   *Grant
	revoked bool
}

// InMemoryStore keeps grants and the reserved counter in process memory.
// Dev mode and unit tests run on this; production uses the postgres store.
type InMemoryStore struct {
	mu            sync.RWMutex
	grants        map[id.Address]*grantRecord
	totalReserved *uint256.Int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		grants:        make(map[id.Address]*grantRecord),
		totalReserved: uint256.NewInt(0),
	}
}

func (s *InMemoryStore) Create(_ context.Context, grant *Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, used := s.grants[grant.Beneficiary]; used {
		return sentinel.ErrConflict
	}
	s.grants[grant.Beneficiary] = &grantRecord{grant: grant.Clone()}
	s.totalReserved.Add(s.totalReserved, grant.Value)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, beneficiary id.Address) (*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.grants[beneficiary]
	if !ok || rec.revoked {
		return nil, sentinel.ErrNotFound
	}
	return rec.grant.Clone(), nil
}

func (s *InMemoryStore) SlotUsed(_ context.Context, beneficiary id.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, used := s.grants[beneficiary]
	return used, nil
}

func (s *InMemoryStore) ApplyUnlock(_ context.Context, beneficiary id.Address, amount *id.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.grants[beneficiary]
	if !ok || rec.revoked {
		return sentinel.ErrNotFound
	}
	rec.grant.Transferred.Add(rec.grant.Transferred, amount)
	s.totalReserved.Sub(s.totalReserved, amount)
	return nil
}

func (s *InMemoryStore) Remove(_ context.Context, beneficiary id.Address, refund *id.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.grants[beneficiary]
	if !ok || rec.revoked {
		return sentinel.ErrNotFound
	}
	// Tombstone, not delete: the slot stays exhausted.
	rec.revoked = true
	s.totalReserved.Sub(s.totalReserved, refund)
	return nil
}

func (s *InMemoryStore) TotalReserved(_ context.Context) (*id.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalReserved.Clone(), nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var grants []*Grant
	for _, rec := range s.grants {
		if !rec.revoked {
			grants = append(grants, rec.grant.Clone())
		}
	}
	return grants, nil
}
