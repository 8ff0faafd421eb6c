package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedConversation(t *testing.T, store Store, convID string, n int) []Message {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.EnsureConversation(ctx, Conversation{
		ID: convID, OwnerID: "u1", CreatedAt: base,
	}))

	msgs := make([]Message, 0, n)
	for i := 0; i < n; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		m := Message{
			ID:             fmt.Sprintf("m-%04d", i),
			ConversationID: convID,
			Role:           role,
			Content:        fmt.Sprintf("message %d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.Append(ctx, m))
		msgs = append(msgs, m)
	}
	return msgs
}

// collectAll walks pages newest to oldest and reassembles the transcript.
func collectAll(t *testing.T, store Store, convID string, limit int) []Message {
	t.Helper()
	ctx := context.Background()

	var chunks [][]Message
	cursor := ""
	for {
		page, err := store.Page(ctx, convID, limit, cursor)
		require.NoError(t, err)
		chunks = append(chunks, page.Messages)
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	// Pages arrive newest-chunk first; prepend to rebuild chronological order.
	var all []Message
	for i := len(chunks) - 1; i >= 0; i-- {
		all = append(all, chunks[i]...)
	}
	return all
}

func TestPage_TotalOrderAcrossPages(t *testing.T) {
	const limit = 10
	for _, n := range []int{0, 1, limit, limit + 1, 2*limit + 3} {
		t.Run(fmt.Sprintf("%d_messages", n), func(t *testing.T) {
			store := NewInMemStore()
			want := seedConversation(t, store, "c1", n)

			got := collectAll(t, store, "c1", limit)
			require.Len(t, got, n)
			for i := range want {
				assert.Equal(t, want[i].ID, got[i].ID, "position %d", i)
			}
		})
	}
}

func TestPage_TotalOrderWithTiedTimestamps(t *testing.T) {
	store := NewInMemStore()
	ctx := context.Background()
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	// All five share one createdAt, so every page boundary lands on a tie
	// and only the id component of the cursor separates the pages.
	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		require.NoError(t, store.Append(ctx, Message{
			ID: id, ConversationID: "c1", Role: RoleUser, Content: id, CreatedAt: at,
		}))
	}

	got := collectAll(t, store, "c1", 2)
	require.Len(t, got, len(ids))
	for i, id := range ids {
		assert.Equal(t, id, got[i].ID, "position %d", i)
	}
}

func TestPage_FirstPageIsNewest(t *testing.T) {
	store := NewInMemStore()
	seedConversation(t, store, "c1", 25)

	page, err := store.Page(context.Background(), "c1", 10, "")
	require.NoError(t, err)
	require.Len(t, page.Messages, 10)
	assert.NotEmpty(t, page.NextCursor)

	// Chronological ascending within the page, ending at the newest message.
	assert.Equal(t, "m-0015", page.Messages[0].ID)
	assert.Equal(t, "m-0024", page.Messages[9].ID)
	for i := 1; i < len(page.Messages); i++ {
		assert.True(t, page.Messages[i].CreatedAt.After(page.Messages[i-1].CreatedAt))
	}
}

func TestPage_LastPageHasNoCursor(t *testing.T) {
	store := NewInMemStore()
	seedConversation(t, store, "c1", 5)

	page, err := store.Page(context.Background(), "c1", 10, "")
	require.NoError(t, err)
	assert.Len(t, page.Messages, 5)
	assert.Empty(t, page.NextCursor)
}

func TestPage_EqualTimestampsTieBreakByID(t *testing.T) {
	store := NewInMemStore()
	ctx := context.Background()
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Append(ctx, Message{
			ID: id, ConversationID: "c1", Role: RoleUser, Content: id, CreatedAt: at,
		}))
	}

	page, err := store.Page(ctx, "c1", 10, "")
	require.NoError(t, err)
	require.Len(t, page.Messages, 3)
	// Descending id in the fetch reverses to ascending in the page.
	assert.Equal(t, "a", page.Messages[0].ID)
	assert.Equal(t, "c", page.Messages[2].ID)
}

func TestPage_BadCursor(t *testing.T) {
	store := NewInMemStore()
	seedConversation(t, store, "c1", 3)

	_, err := store.Page(context.Background(), "c1", 10, "not-a-cursor")
	assert.ErrorIs(t, err, ErrBadCursor)
}

func TestPage_ClampsLimit(t *testing.T) {
	store := NewInMemStore()
	seedConversation(t, store, "c1", 5)

	page, err := store.Page(context.Background(), "c1", 0, "")
	require.NoError(t, err)
	assert.Len(t, page.Messages, 5) // default limit covers all
}

func TestAppend_RequiresIDs(t *testing.T) {
	store := NewInMemStore()
	err := store.Append(context.Background(), Message{Content: "no ids"})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 14, 12, 0, 0, 123456789, time.UTC)
	gotAt, gotID, err := decodeCursor(encodeCursor(at, "m-0042"))
	require.NoError(t, err)
	assert.True(t, gotAt.Equal(at))
	assert.Equal(t, "m-0042", gotID)
}
