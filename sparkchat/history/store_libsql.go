package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// LibSQLStore implements Store on an embedded libsql database.
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore creates a history store over an open database handle.
func NewLibSQLStore(db *sql.DB) *LibSQLStore {
	return &LibSQLStore{db: db}
}

func (s *LibSQLStore) EnsureConversation(ctx context.Context, conv Conversation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, owner_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		conv.ID, conv.OwnerID, conv.CreatedAt)
	if err != nil {
		return fmt.Errorf("ensure conversation: %w", err)
	}
	return nil
}

func (s *LibSQLStore) Append(ctx context.Context, msg Message) error {
	if msg.ID == "" || msg.ConversationID == "" {
		return ErrEmptyMessage
	}

	tools, err := json.Marshal(msg.ToolsUsed)
	if err != nil {
		return fmt.Errorf("marshal tools used: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, tools_used, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, string(tools), msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *LibSQLStore) Page(ctx context.Context, conversationID string, limit int, cursor string) (Page, error) {
	limit = clampLimit(limit)

	query := `SELECT id, conversation_id, role, content, tools_used, created_at
		  FROM messages WHERE conversation_id = ?`
	args := []any{conversationID}

	if cursor != "" {
		bound, boundID, err := decodeCursor(cursor)
		if err != nil {
			return Page{}, err
		}
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, bound, bound, boundID)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Page{}, fmt.Errorf("query message page: %w", err)
	}
	defer rows.Close()

	var fetched []Message
	for rows.Next() {
		var (
			m     Message
			role  string
			tools string
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &tools, &m.CreatedAt); err != nil {
			return Page{}, fmt.Errorf("scan message: %w", err)
		}
		m.Role = Role(role)
		if err := json.Unmarshal([]byte(tools), &m.ToolsUsed); err != nil {
			return Page{}, fmt.Errorf("unmarshal tools used: %w", err)
		}
		fetched = append(fetched, m)
	}
	if err := rows.Err(); err != nil {
		return Page{}, err
	}

	return trimPage(fetched, limit), nil
}

var _ Store = (*LibSQLStore)(nil)
