package memory

import (
	"context"
	"strings"
	"sync"
)

// InMemStore is a mutex-guarded Store for tests and ephemeral runs.
type InMemStore struct {
	mu      sync.RWMutex
	records map[string][]Record // per user, insertion order
}

// NewInMemStore creates an empty in-memory record store.
func NewInMemStore() *InMemStore {
	return &InMemStore{records: make(map[string][]Record)}
}

func (s *InMemStore) Save(ctx context.Context, rec Record) error {
	if strings.TrimSpace(rec.Content) == "" {
		return ErrEmptyContent
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.UserID] = append(s.records[rec.UserID], rec)
	return nil
}

func (s *InMemStore) Search(ctx context.Context, userID, query string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	var out []Record
	recs := s.records[userID]
	// Newest first.
	for i := len(recs) - 1; i >= 0 && len(out) < limit; i-- {
		if needle == "" || strings.Contains(strings.ToLower(recs[i].Content), needle) {
			out = append(out, recs[i])
		}
	}
	return out, nil
}

// Count returns the number of records held for a user. Test helper.
func (s *InMemStore) Count(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[userID])
}

var _ Store = (*InMemStore)(nil)
