package store

import (
	"context"
	"sync"
	"time"

	"github.com/atmx/tradestore/internal/model"
)

// MemoryStore implements Store with an in-memory map. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	trades map[model.Key]model.Trade
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trades: make(map[model.Key]model.Trade),
	}
}

func (s *MemoryStore) GetMaxVersion(_ context.Context, tradeID string) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	max, found := 0, false
	for k := range s.trades {
		if k.TradeID != tradeID {
			continue
		}
		if !found || k.Version > max {
			max, found = k.Version, true
		}
	}
	return max, found, nil
}

func (s *MemoryStore) GetByIDAndVersion(_ context.Context, tradeID string, version int) (*model.Trade, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trades[model.Key{TradeID: tradeID, Version: version}]
	if !ok {
		return nil, false, nil
	}
	return &t, true, nil
}

func (s *MemoryStore) Save(_ context.Context, t *model.Trade) (*model.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	row := *t
	row.Normalize()
	s.trades[row.Key()] = row
	return &row, nil
}

func (s *MemoryStore) BulkExpire(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff = model.DateOf(cutoff)
	var n int64
	for k, t := range s.trades {
		if t.Expired || !t.MaturityDate.Before(cutoff) {
			continue
		}
		t.Expired = true
		s.trades[k] = t
		n++
	}
	return n, nil
}

func (s *MemoryStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = make(map[model.Key]model.Trade)
	return nil
}

// Len returns the number of stored rows across all versions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trades)
}
