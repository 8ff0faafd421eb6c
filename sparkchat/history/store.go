package history

import (
	"context"
	"errors"
)

// DefaultPageLimit bounds page sizes when the request gives none.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// ErrEmptyMessage is returned when a message without id or conversation is appended.
var ErrEmptyMessage = errors.New("message requires id and conversation id")

// Store is the append-only transcript with cursor pagination.
type Store interface {
	// EnsureConversation creates the conversation row if it does not exist.
	EnsureConversation(ctx context.Context, conv Conversation) error

	// Append persists one immutable message.
	Append(ctx context.Context, msg Message) error

	// Page returns up to limit messages strictly older than the cursor (or
	// the newest messages when the cursor is empty), in chronological
	// ascending order, with a cursor for the next-older page when more exist.
	Page(ctx context.Context, conversationID string, limit int, cursor string) (Page, error)
}

// clampLimit normalizes a requested page size.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageLimit
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}

// trimPage turns an overfetched newest-first row set into an ascending page.
// rows must be ordered (createdAt desc, id desc). Rows beyond limit are
// dropped; when any were, nextCursor becomes the (createdAt, id) pair of the
// oldest retained row, the exclusive upper bound of the next-older page. The
// retained rows are then reversed to chronological order. Ordering stays
// stable when several messages share a createdAt because id tie-breaks both
// the fetch order and the cursor bound.
func trimPage(rows []Message, limit int) Page {
	var next string
	if len(rows) > limit {
		rows = rows[:limit]
		oldest := rows[limit-1]
		next = encodeCursor(oldest.CreatedAt, oldest.ID)
	}

	out := make([]Message, len(rows))
	for i, m := range rows {
		out[len(rows)-1-i] = m
	}
	return Page{Messages: out, NextCursor: next}
}
