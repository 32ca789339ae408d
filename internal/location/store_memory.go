package location

import (
	"context"
	"sync"
	"time"
)

type recordKey struct {
	eventID    string
	attendeeID string
}

// MemoryStore is an in-memory Store for single-instance and test use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[recordKey]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[recordKey]Record)}
}

func (s *MemoryStore) Upsert(_ context.Context, rec Record) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey{rec.EventID, rec.AttendeeID}] = rec
	return nil
}

func (s *MemoryStore) SetSharing(_ context.Context, eventID, attendeeID string, sharing bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey{eventID, attendeeID}
	rec, ok := s.records[key]
	if !ok {
		return nil
	}
	rec.Sharing = sharing
	rec.UpdatedAt = time.Now()
	s.records[key] = rec
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, eventID, attendeeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, recordKey{eventID, attendeeID})
	return nil
}

func (s *MemoryStore) ListSharing(_ context.Context, eventID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for key, rec := range s.records {
		if key.eventID == eventID && rec.Sharing {
			out = append(out, rec)
		}
	}
	return out, nil
}
