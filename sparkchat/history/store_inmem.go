package history

import (
	"context"
	"sort"
	"sync"
)

// InMemStore is a mutex-guarded Store for tests and ephemeral runs.
type InMemStore struct {
	mu            sync.RWMutex
	conversations map[string]Conversation
	messages      map[string][]Message // per conversation, insertion order
}

// NewInMemStore creates an empty in-memory history store.
func NewInMemStore() *InMemStore {
	return &InMemStore{
		conversations: make(map[string]Conversation),
		messages:      make(map[string][]Message),
	}
}

func (s *InMemStore) EnsureConversation(ctx context.Context, conv Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conv.ID]; !ok {
		s.conversations[conv.ID] = conv
	}
	return nil
}

func (s *InMemStore) Append(ctx context.Context, msg Message) error {
	if msg.ID == "" || msg.ConversationID == "" {
		return ErrEmptyMessage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)
	return nil
}

func (s *InMemStore) Page(ctx context.Context, conversationID string, limit int, cursor string) (Page, error) {
	limit = clampLimit(limit)

	s.mu.RLock()
	all := make([]Message, len(s.messages[conversationID]))
	copy(all, s.messages[conversationID])
	s.mu.RUnlock()

	// Newest first, id desc on equal timestamps, matching the SQL ordering.
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	if cursor != "" {
		bound, boundID, err := decodeCursor(cursor)
		if err != nil {
			return Page{}, err
		}
		filtered := all[:0]
		for _, m := range all {
			if m.CreatedAt.Before(bound) || (m.CreatedAt.Equal(bound) && m.ID < boundID) {
				filtered = append(filtered, m)
			}
		}
		all = filtered
	}

	if len(all) > limit+1 {
		all = all[:limit+1]
	}
	return trimPage(all, limit), nil
}

var _ Store = (*InMemStore)(nil)
