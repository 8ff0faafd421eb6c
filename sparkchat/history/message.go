package history

import "time"

// Role identifies the author of a persisted message. Tool-role turns are
// loop-internal and never reach the transcript.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one immutable transcript entry. Never mutated after persistence.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	ToolsUsed      []string  `json:"tools_used,omitempty"` // distinct tool names, in first-use order
	CreatedAt      time.Time `json:"created_at"`
}

// Conversation owns an ordered sequence of messages. Insertion order is
// createdAt, tie-broken by id.
type Conversation struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Page is one chronological-ascending slice of a transcript. NextCursor is
// empty on the last (oldest) page.
type Page struct {
	Messages   []Message `json:"messages"`
	NextCursor string    `json:"next_cursor,omitempty"`
}
