package memory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// LibSQLStore implements Store on an embedded libsql database.
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore creates a memory store over an open database handle.
func NewLibSQLStore(db *sql.DB) *LibSQLStore {
	return &LibSQLStore{db: db}
}

func (s *LibSQLStore) Save(ctx context.Context, rec Record) error {
	if strings.TrimSpace(rec.Content) == "" {
		return ErrEmptyContent
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (id, user_id, content, created_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Content, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	return nil
}

func (s *LibSQLStore) Search(ctx context.Context, userID, query string, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, content, created_at FROM memories
		 WHERE user_id = ? AND content LIKE '%' || ? || '%'
		 ORDER BY created_at DESC LIMIT ?`,
		userID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Content, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

var _ Store = (*LibSQLStore)(nil)
