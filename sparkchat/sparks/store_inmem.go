package sparks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemStore is a mutex-guarded Store for tests and ephemeral runs. Each
// mutating call holds the lock across the condition check, the balance write,
// and the transaction append, giving the same atomicity as the SQL store.
type InMemStore struct {
	mu       sync.Mutex
	balances map[string]*Balance
	log      map[string][]Transaction
	now      func() time.Time
}

// NewInMemStore creates an empty in-memory ledger store.
func NewInMemStore() *InMemStore {
	return &InMemStore{
		balances: make(map[string]*Balance),
		log:      make(map[string][]Transaction),
		now:      time.Now,
	}
}

// SetVerified flips the verified tier of an account. Test helper.
func (s *InMemStore) SetVerified(userID string, verified bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.balances[userID]; ok {
		b.IsVerified = verified
	}
}

func (s *InMemStore) Ensure(ctx context.Context, userID string, initialBalance int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.balances[userID]; !ok {
		s.balances[userID] = &Balance{UserID: userID, Current: initialBalance}
	}
	return nil
}

func (s *InMemStore) GetBalance(ctx context.Context, userID string) (Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[userID]
	if !ok {
		return Balance{}, ErrUserNotFound
	}
	return *b, nil
}

func (s *InMemStore) Debit(ctx context.Context, userID string, amount int64, relatedMessageID string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.balances[userID]
	if !ok {
		return Transaction{}, ErrUserNotFound
	}
	if amount > b.Current {
		return Transaction{}, ErrInsufficientBalance
	}

	b.Current -= amount
	return s.append(Transaction{
		UserID:           userID,
		Kind:             KindMessageCost,
		Amount:           -amount,
		BalanceAfter:     b.Current,
		RelatedMessageID: relatedMessageID,
	}), nil
}

func (s *InMemStore) ClaimDaily(ctx context.Context, userID string, today string, grants ClaimGrants) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.balances[userID]
	if !ok {
		return Transaction{}, ErrUserNotFound
	}
	if b.LastClaimDate == today {
		return Transaction{}, ErrAlreadyClaimedToday
	}

	grant := grants.Standard
	if b.IsVerified {
		grant = grants.Verified
	}

	b.Current += grant
	b.LastClaimDate = today
	return s.append(Transaction{
		UserID:       userID,
		Kind:         KindDailyClaim,
		Amount:       grant,
		BalanceAfter: b.Current,
	}), nil
}

func (s *InMemStore) Adjust(ctx context.Context, userID string, delta int64) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.balances[userID]
	if !ok {
		return Transaction{}, ErrUserNotFound
	}
	if b.Current+delta < 0 {
		return Transaction{}, ErrInsufficientBalance
	}

	b.Current += delta
	return s.append(Transaction{
		UserID:       userID,
		Kind:         KindAdminAdjustment,
		Amount:       delta,
		BalanceAfter: b.Current,
	}), nil
}

func (s *InMemStore) Transactions(ctx context.Context, userID string) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transaction, len(s.log[userID]))
	copy(out, s.log[userID])
	return out, nil
}

// append finalizes and records a transaction. Caller holds the lock.
func (s *InMemStore) append(tx Transaction) Transaction {
	tx.ID = uuid.New().String()
	tx.CreatedAt = s.now()
	s.log[tx.UserID] = append(s.log[tx.UserID], tx)
	return tx
}

var _ Store = (*InMemStore)(nil)
