// Package memory persists user memory records written by the save_memory tool.
package memory

import (
	"context"
	"errors"
	"time"
)

// Record is one saved memory.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrEmptyContent is returned when a record with no content is saved.
var ErrEmptyContent = errors.New("memory content must not be empty")

// Store persists and searches memory records.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Search(ctx context.Context, userID, query string, limit int) ([]Record, error)
}
