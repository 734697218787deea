package statestore

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore implements Store using ttlcache.
type MemoryStore struct {
	cache *ttlcache.Cache[string, time.Time]
}

// NewMemoryStore creates a new in-memory state ledger with automatic
// cleanup of expired entries.
func NewMemoryStore(defaultTTL time.Duration) *MemoryStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, time.Time](defaultTTL),
		ttlcache.WithDisableTouchOnHit[string, time.Time](),
	)

	// Start the cleanup process
	go cache.Start()

	return &MemoryStore{cache: cache}
}

// Put implements Store.Put.
func (s *MemoryStore) Put(_ context.Context, state string, ttl time.Duration) error {
	s.cache.Set(state, time.Now(), ttl)
	return nil
}

// Consume implements Store.Consume. GetAndDelete removes the entry under
// the cache lock so two racing callbacks cannot both consume the same state.
func (s *MemoryStore) Consume(_ context.Context, state string) (bool, error) {
	_, present := s.cache.GetAndDelete(state)
	return present, nil
}

// Stop terminates the cleanup goroutine.
func (s *MemoryStore) Stop() {
	s.cache.Stop()
}

var _ Store = (*MemoryStore)(nil)
