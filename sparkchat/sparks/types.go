package sparks

import (
	"context"
	"time"
)

// TransactionKind labels a ledger entry.
type TransactionKind string

const (
	KindDailyClaim      TransactionKind = "daily_claim"
	KindMessageCost     TransactionKind = "message_cost"
	KindAdminAdjustment TransactionKind = "admin_adjustment"
)

// Balance is the per-user spark account state.
type Balance struct {
	UserID        string `json:"user_id"`
	Current       int64  `json:"current"`
	LastClaimDate string `json:"last_claim_date,omitempty"` // YYYY-MM-DD in the reference timezone, empty if never claimed
	IsVerified    bool   `json:"is_verified"`
}

// Transaction is one append-only ledger entry. BalanceAfter always equals the
// prior entry's BalanceAfter plus Amount, so the balance is reconstructible
// from the log alone.
type Transaction struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	Kind             TransactionKind `json:"kind"`
	Amount           int64           `json:"amount"` // signed: debits are negative
	BalanceAfter     int64           `json:"balance_after"`
	RelatedMessageID string          `json:"related_message_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// ClaimGrants carries the tier-dependent daily amounts into an atomic claim.
type ClaimGrants struct {
	Standard int64
	Verified int64
}

// Store is the durable ledger collaborator. Every mutating operation is a
// single atomic unit: the balance mutation and its transaction row commit
// together or not at all, and the balance condition (sufficient funds, claim
// date) is checked inside the same unit. Two concurrent debits for one user
// must never both succeed past the point where their sum exceeds the balance.
type Store interface {
	// Ensure creates the account with the given starting balance if it does
	// not exist yet. Existing accounts are left untouched.
	Ensure(ctx context.Context, userID string, initialBalance int64) error

	GetBalance(ctx context.Context, userID string) (Balance, error)

	// Debit atomically subtracts amount (a non-negative quantity) and records
	// the message_cost transaction. ErrInsufficientBalance when the balance
	// would go negative; no partial debit is ever applied.
	Debit(ctx context.Context, userID string, amount int64, relatedMessageID string) (Transaction, error)

	// ClaimDaily atomically checks-and-sets last_claim_date to today and
	// credits the tier-appropriate grant. ErrAlreadyClaimedToday when the
	// stored date already equals today.
	ClaimDaily(ctx context.Context, userID string, today string, grants ClaimGrants) (Transaction, error)

	// Adjust applies a signed admin delta, rejecting any delta that would
	// drive the balance negative.
	Adjust(ctx context.Context, userID string, delta int64) (Transaction, error)

	// Transactions returns the full ledger log for a user in append order.
	Transactions(ctx context.Context, userID string) ([]Transaction, error)
}
