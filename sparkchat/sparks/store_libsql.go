package sparks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LibSQLStore implements Store on an embedded libsql database. Every mutation
// runs as one SQL transaction whose UPDATE carries the balance/date condition,
// so the check and the write cannot be split by a concurrent caller.
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore creates a ledger store over an open database handle. The
// schema comes from the embedded migrations.
func NewLibSQLStore(db *sql.DB) *LibSQLStore {
	return &LibSQLStore{db: db}
}

func (s *LibSQLStore) Ensure(ctx context.Context, userID string, initialBalance int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO spark_balances (user_id, balance) VALUES (?, ?)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, initialBalance)
	if err != nil {
		return fmt.Errorf("ensure spark account: %w", err)
	}
	return nil
}

func (s *LibSQLStore) GetBalance(ctx context.Context, userID string) (Balance, error) {
	var (
		b         Balance
		lastClaim sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, balance, last_claim_date, is_verified FROM spark_balances WHERE user_id = ?`,
		userID).Scan(&b.UserID, &b.Current, &lastClaim, &b.IsVerified)
	if errors.Is(err, sql.ErrNoRows) {
		return Balance{}, ErrUserNotFound
	}
	if err != nil {
		return Balance{}, fmt.Errorf("get spark balance: %w", err)
	}
	b.LastClaimDate = lastClaim.String
	return b, nil
}

func (s *LibSQLStore) Debit(ctx context.Context, userID string, amount int64, relatedMessageID string) (Transaction, error) {
	return s.mutate(ctx, userID, func(tx *sql.Tx) (Transaction, error) {
		var balanceAfter int64
		err := tx.QueryRowContext(ctx,
			`UPDATE spark_balances SET balance = balance - ?
			 WHERE user_id = ? AND balance >= ?
			 RETURNING balance`,
			amount, userID, amount).Scan(&balanceAfter)
		if errors.Is(err, sql.ErrNoRows) {
			return Transaction{}, s.rejectReason(ctx, tx, userID, ErrInsufficientBalance)
		}
		if err != nil {
			return Transaction{}, fmt.Errorf("debit sparks: %w", err)
		}
		return Transaction{
			UserID:           userID,
			Kind:             KindMessageCost,
			Amount:           -amount,
			BalanceAfter:     balanceAfter,
			RelatedMessageID: relatedMessageID,
		}, nil
	})
}

func (s *LibSQLStore) ClaimDaily(ctx context.Context, userID string, today string, grants ClaimGrants) (Transaction, error) {
	return s.mutate(ctx, userID, func(tx *sql.Tx) (Transaction, error) {
		var (
			balanceAfter int64
			verified     bool
		)
		err := tx.QueryRowContext(ctx,
			`UPDATE spark_balances
			 SET balance = balance + CASE WHEN is_verified = 1 THEN ? ELSE ? END,
			     last_claim_date = ?
			 WHERE user_id = ? AND (last_claim_date IS NULL OR last_claim_date <> ?)
			 RETURNING balance, is_verified`,
			grants.Verified, grants.Standard, today, userID, today).Scan(&balanceAfter, &verified)
		if errors.Is(err, sql.ErrNoRows) {
			return Transaction{}, s.rejectReason(ctx, tx, userID, ErrAlreadyClaimedToday)
		}
		if err != nil {
			return Transaction{}, fmt.Errorf("claim daily sparks: %w", err)
		}
		grant := grants.Standard
		if verified {
			grant = grants.Verified
		}
		return Transaction{
			UserID:       userID,
			Kind:         KindDailyClaim,
			Amount:       grant,
			BalanceAfter: balanceAfter,
		}, nil
	})
}

func (s *LibSQLStore) Adjust(ctx context.Context, userID string, delta int64) (Transaction, error) {
	return s.mutate(ctx, userID, func(tx *sql.Tx) (Transaction, error) {
		var balanceAfter int64
		err := tx.QueryRowContext(ctx,
			`UPDATE spark_balances SET balance = balance + ?
			 WHERE user_id = ? AND balance + ? >= 0
			 RETURNING balance`,
			delta, userID, delta).Scan(&balanceAfter)
		if errors.Is(err, sql.ErrNoRows) {
			return Transaction{}, s.rejectReason(ctx, tx, userID, ErrInsufficientBalance)
		}
		if err != nil {
			return Transaction{}, fmt.Errorf("adjust sparks: %w", err)
		}
		return Transaction{
			UserID:       userID,
			Kind:         KindAdminAdjustment,
			Amount:       delta,
			BalanceAfter: balanceAfter,
		}, nil
	})
}

func (s *LibSQLStore) Transactions(ctx context.Context, userID string) ([]Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, kind, amount, balance_after, related_message_id, created_at
		 FROM spark_transactions WHERE user_id = ? ORDER BY created_at ASC, id ASC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list spark transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var (
			tx      Transaction
			related sql.NullString
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Kind, &tx.Amount, &tx.BalanceAfter, &related, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan spark transaction: %w", err)
		}
		tx.RelatedMessageID = related.String
		out = append(out, tx)
	}
	return out, rows.Err()
}

// mutate runs op inside a SQL transaction and appends the resulting ledger
// entry before committing, so the balance write and its audit row land
// together.
func (s *LibSQLStore) mutate(ctx context.Context, userID string, op func(tx *sql.Tx) (Transaction, error)) (Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Transaction{}, fmt.Errorf("begin ledger transaction: %w", err)
	}
	defer tx.Rollback()

	entry, err := op(tx)
	if err != nil {
		return Transaction{}, err
	}

	entry.ID = uuid.New().String()
	entry.CreatedAt = time.Now().UTC()

	var related any
	if entry.RelatedMessageID != "" {
		related = entry.RelatedMessageID
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO spark_transactions (id, user_id, kind, amount, balance_after, related_message_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, string(entry.Kind), entry.Amount, entry.BalanceAfter, related, entry.CreatedAt)
	if err != nil {
		return Transaction{}, fmt.Errorf("append spark transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Transaction{}, fmt.Errorf("commit ledger transaction: %w", err)
	}
	return entry, nil
}

// rejectReason distinguishes a missing account from a condition rejection
// after a conditional UPDATE matched no row.
func (s *LibSQLStore) rejectReason(ctx context.Context, tx *sql.Tx, userID string, conditionErr error) error {
	var exists int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM spark_balances WHERE user_id = ?`, userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("inspect spark account: %w", err)
	}
	return conditionErr
}

var _ Store = (*LibSQLStore)(nil)
