package sparks

import (
	"context"
	"fmt"
	"time"
)

// Grants configures daily claim amounts and the starting balance for
// first-seen users.
type Grants struct {
	Daily          int64
	VerifiedDaily  int64
	InitialBalance int64
}

// Ledger estimates costs, enforces balance checks, and performs debits and
// daily claims. All mutations are delegated to the Store as single atomic
// operations; the ledger itself never does a read-then-write.
type Ledger struct {
	store   Store
	pricing PricingTable
	grants  Grants
	loc     *time.Location
	now     func() time.Time
}

// NewLedger creates a ledger over the given store. loc is the fixed reference
// timezone claim days are computed in.
func NewLedger(store Store, pricing PricingTable, grants Grants, loc *time.Location) *Ledger {
	if pricing == nil {
		pricing = DefaultPricing()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Ledger{
		store:   store,
		pricing: pricing,
		grants:  grants,
		loc:     loc,
		now:     time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// Estimate computes the pre-flight spark cost for a model call. The estimate
// is advisory: it gates obviously unaffordable requests, the settled debit
// uses measured usage.
func (l *Ledger) Estimate(modelID string, inputTokens, outputTokens int64) (int64, error) {
	mult, ok := l.pricing[modelID]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownModel, modelID)
	}
	return mult.Cost(inputTokens + outputTokens), nil
}

// GetBalance returns the account state, creating the account with the
// configured starting balance on first sight.
func (l *Ledger) GetBalance(ctx context.Context, userID string) (Balance, error) {
	if err := l.store.Ensure(ctx, userID, l.grants.InitialBalance); err != nil {
		return Balance{}, err
	}
	return l.store.GetBalance(ctx, userID)
}

// Debit settles amount sparks against the user's balance as a message_cost
// transaction. The whole amount is rejected with ErrInsufficientBalance if
// the balance cannot cover it.
func (l *Ledger) Debit(ctx context.Context, userID string, amount int64, relatedMessageID string) (Transaction, error) {
	if amount < 0 {
		return Transaction{}, ErrNegativeAmount
	}
	if err := l.store.Ensure(ctx, userID, l.grants.InitialBalance); err != nil {
		return Transaction{}, err
	}
	return l.store.Debit(ctx, userID, amount, relatedMessageID)
}

// ClaimDaily credits the tier-appropriate grant at most once per calendar day
// in the reference timezone. The date check-and-set happens atomically inside
// the store.
func (l *Ledger) ClaimDaily(ctx context.Context, userID string) (Transaction, error) {
	if err := l.store.Ensure(ctx, userID, l.grants.InitialBalance); err != nil {
		return Transaction{}, err
	}
	today := l.today()
	return l.store.ClaimDaily(ctx, userID, today, ClaimGrants{
		Standard: l.grants.Daily,
		Verified: l.grants.VerifiedDaily,
	})
}

// Adjust applies a signed admin correction to the balance.
func (l *Ledger) Adjust(ctx context.Context, userID string, delta int64) (Transaction, error) {
	if err := l.store.Ensure(ctx, userID, l.grants.InitialBalance); err != nil {
		return Transaction{}, err
	}
	return l.store.Adjust(ctx, userID, delta)
}

// Transactions returns the user's full ledger log in append order.
func (l *Ledger) Transactions(ctx context.Context, userID string) ([]Transaction, error) {
	return l.store.Transactions(ctx, userID)
}

// CanClaimToday reports whether a claim would succeed right now.
func (l *Ledger) CanClaimToday(b Balance) bool {
	return b.LastClaimDate != l.today()
}

func (l *Ledger) today() string {
	return l.now().In(l.loc).Format("2006-01-02")
}
