// internal/catalog/store.go
package catalog

import (
	"fmt"
	"sync"
)

// Store owns the process-lifetime list of assets. Every accessor returns
// copies, so the backing sequence is only ever changed through Insert and
// Transfer.
type Store struct {
	mu     sync.RWMutex
	assets []Asset
	index  map[string]int
}

// NewStore creates a store holding seed in order. It fails on the first
// seed entry that Insert would reject.
func NewStore(seed ...Asset) (*Store, error) {
	s := &Store{index: make(map[string]int, len(seed))}
	for _, a := range seed {
		if err := s.Insert(a); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Len returns the number of assets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.assets)
}

// List returns every asset in insertion order.
func (s *Store) List() []Asset {
	return s.Filter(func(*Asset) bool { return true })
}

// Filter returns the assets matching keep, preserving store order.
func (s *Store) Filter(keep func(a *Asset) bool) []Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Asset, 0, len(s.assets))
	for i := range s.assets {
		if keep(&s.assets[i]) {
			out = append(out, s.assets[i].clone())
		}
	}
	return out
}

// Get returns the asset with the given id.
func (s *Store) Get(id string) (Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return Asset{}, false
	}
	return s.assets[i].clone(), true
}

// Insert appends a. The store is left untouched when a breaks a record
// invariant (ErrInvalidAsset) or its id is taken (ErrAssetExists).
func (s *Store) Insert(a Asset) error {
	if err := a.check(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.index[a.ID]; taken {
		return fmt.Errorf("asset with ID %s: %w", a.ID, ErrAssetExists)
	}
	s.index[a.ID] = len(s.assets)
	s.assets = append(s.assets, a.clone())
	return nil
}

// Transfer appends rec to the asset's history and makes rec.Owner the
// owner at rec.Price.
func (s *Store) Transfer(id string, rec OwnershipRecord) (Asset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return Asset{}, false
	}

	a := &s.assets[i]
	a.History = append(a.History, rec)
	a.Owner = rec.Owner
	a.Price = rec.Price

	return a.clone(), true
}
