package memorystore

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// PriceEntry is a cached unit price and the local time it was stored.
type PriceEntry struct {
	Price     decimal.Decimal
	FetchedAt time.Time // local clock, drives expiry
	EventTime time.Time // exchange time of a stream update, zero for REST lookups
}

// Age returns how old the entry is at now.
func (e PriceEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// PriceStore holds the latest price per asset. Entries are replaced whole and
// never deleted; expiry is decided by the reader.
type PriceStore struct {
	mu   sync.RWMutex
	data map[string]PriceEntry
}

func NewPriceStore() *PriceStore {
	return &PriceStore{
		data: make(map[string]PriceEntry),
	}
}

func (s *PriceStore) Get(asset string) (PriceEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[asset]
	return e, ok
}

// Put stores e for asset, overwriting any previous entry.
func (s *PriceStore) Put(asset string, e PriceEntry) {
	s.mu.Lock()
	s.data[asset] = e
	s.mu.Unlock()
}

// Refresh replaces the entry for an asset already in the store, unless the
// stored entry comes from a later exchange event. It reports whether the
// store changed.
func (s *PriceStore) Refresh(asset string, e PriceEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.data[asset]
	if !ok || (!cur.EventTime.IsZero() && e.EventTime.Before(cur.EventTime)) {
		return false
	}
	s.data[asset] = e
	return true
}

// CountAll returns the number of assets with a cached price.
func (s *PriceStore) CountAll() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
