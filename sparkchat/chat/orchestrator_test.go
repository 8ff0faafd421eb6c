package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	ports "github.com/ZanzyTHEbar/sparkchat/sparkchat/chat/ports"
	"github.com/ZanzyTHEbar/sparkchat/sparkchat/chat/tooling"
	"github.com/ZanzyTHEbar/sparkchat/sparkchat/history"
	"github.com/ZanzyTHEbar/sparkchat/sparkchat/sparks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StubProvider replays scripted completions in order, then repeats the last.
type StubProvider struct {
	completions []ports.Completion
	calls       atomic.Int32
	lastInput   ports.PromptInput
}

func (p *StubProvider) Complete(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
	idx := int(p.calls.Add(1)) - 1
	p.lastInput = in
	if len(p.completions) == 0 {
		return ports.Completion{}, errors.New("no scripted completions")
	}
	if idx >= len(p.completions) {
		idx = len(p.completions) - 1
	}
	return p.completions[idx], nil
}

func textCompletion(text string, promptTokens, completionTokens int) ports.Completion {
	return ports.Completion{
		Text: text,
		Usage: &ports.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}
}

func toolCompletion(name, args string) ports.Completion {
	return ports.Completion{
		ToolCalls: []ports.ToolCall{{Name: name, Args: json.RawMessage(args)}},
		Usage:     &ports.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

type fixture struct {
	orch     *Orchestrator
	provider *StubProvider
	store    *history.InMemStore
	ledger   *sparks.Ledger
}

func newFixture(t *testing.T, provider *StubProvider, procs map[string]tooling.Procedure) *fixture {
	t.Helper()

	registry := tooling.NewRegistry()
	for name, proc := range procs {
		require.NoError(t, registry.Register(tooling.Declaration{
			Name:        name,
			Description: "test tool",
			Parameters: map[string]tooling.Param{
				"value": {Type: "string", Description: "a value"},
			},
		}, proc))
	}
	registry.Freeze()

	store := history.NewInMemStore()
	ledger := sparks.NewLedger(sparks.NewInMemStore(), sparks.DefaultPricing(), sparks.Grants{
		Daily:          50,
		VerifiedDaily:  200,
		InitialBalance: 500,
	}, time.UTC)

	policy := DefaultPolicy()
	policy.MaxToolRounds = 3
	policy.ToolTimeout = time.Second
	policy.EstimatedOutputTokens = 100

	return &fixture{
		orch:     NewOrchestrator(provider, registry, store, ledger, nil, policy),
		provider: provider,
		store:    store,
		ledger:   ledger,
	}
}

func TestSend_PlainAnswerPersistsAndDebits(t *testing.T) {
	provider := &StubProvider{completions: []ports.Completion{
		textCompletion("hello there", 40, 10),
	}}
	f := newFixture(t, provider, nil)
	ctx := context.Background()

	resp, err := f.orch.Send(ctx, SendRequest{
		UserID:  "u1",
		ModelID: "claude-haiku",
		Content: "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Message.Content)
	assert.Equal(t, history.RoleAssistant, resp.Message.Role)
	assert.Empty(t, resp.Message.ToolsUsed)
	assert.NotEmpty(t, resp.ConversationID)

	// Both messages persisted, chronological order.
	page, err := f.store.Page(ctx, resp.ConversationID, 10, "")
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, history.RoleUser, page.Messages[0].Role)
	assert.Equal(t, history.RoleAssistant, page.Messages[1].Role)

	// Debit settles measured usage (50 tokens at 1x), referencing the message.
	log, err := f.ledger.Transactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, sparks.KindMessageCost, log[0].Kind)
	assert.Equal(t, int64(-50), log[0].Amount)
	assert.Equal(t, resp.Message.ID, log[0].RelatedMessageID)
}

func TestSend_BlockedBeforeModelCall(t *testing.T) {
	provider := &StubProvider{completions: []ports.Completion{
		textCompletion("should never run", 1, 1),
	}}
	f := newFixture(t, provider, nil)
	ctx := context.Background()

	// Opus multiplier is 15x: the pre-flight estimate for any prompt exceeds
	// the starting balance of 500.
	_, err := f.orch.Send(ctx, SendRequest{
		UserID:  "u1",
		ModelID: "claude-opus",
		Content: "expensive question",
	})
	require.ErrorIs(t, err, sparks.ErrInsufficientBalance)

	assert.Equal(t, int32(0), provider.calls.Load())

	b, err := f.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), b.Current)

	log, err := f.ledger.Transactions(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, log)
}

func TestSend_UnknownModel(t *testing.T) {
	f := newFixture(t, &StubProvider{}, nil)

	_, err := f.orch.Send(context.Background(), SendRequest{
		UserID:  "u1",
		ModelID: "made-up",
		Content: "hi",
	})
	assert.ErrorIs(t, err, sparks.ErrUnknownModel)
}

func TestSend_EmptyContent(t *testing.T) {
	f := newFixture(t, &StubProvider{}, nil)

	_, err := f.orch.Send(context.Background(), SendRequest{
		UserID:  "u1",
		ModelID: "claude-haiku",
		Content: "   ",
	})
	assert.ErrorIs(t, err, ErrEmptyUserMessage)
}

func TestSend_ToolRoundThenAnswer(t *testing.T) {
	provider := &StubProvider{completions: []ports.Completion{
		toolCompletion("lookup", `{"value":"x"}`),
		textCompletion("found it", 20, 10),
	}}
	var invoked atomic.Int32
	f := newFixture(t, provider, map[string]tooling.Procedure{
		"lookup": func(ctx context.Context, call tooling.CallContext, args json.RawMessage) (any, error) {
			invoked.Add(1)
			return "result payload", nil
		},
	})

	resp, err := f.orch.Send(context.Background(), SendRequest{
		UserID:  "u1",
		ModelID: "claude-haiku",
		Content: "look something up",
	})
	require.NoError(t, err)
	assert.Equal(t, "found it", resp.Message.Content)
	assert.Equal(t, []string{"lookup"}, resp.Message.ToolsUsed)
	assert.Equal(t, int32(1), invoked.Load())
	assert.Equal(t, int32(2), provider.calls.Load())

	// The tool result reached the second model call as a tool-role entry.
	last := provider.lastInput.Messages[len(provider.lastInput.Messages)-1]
	assert.Equal(t, "tool", last.Role)
	assert.Equal(t, "result payload", last.Content)
}

func TestSend_UnknownToolSurfacesAsResultAndContinues(t *testing.T) {
	provider := &StubProvider{completions: []ports.Completion{
		toolCompletion("nonexistent_tool", `{}`),
		textCompletion("recovered", 10, 5),
	}}
	f := newFixture(t, provider, nil)

	resp, err := f.orch.Send(context.Background(), SendRequest{
		UserID:  "u1",
		ModelID: "claude-haiku",
		Content: "try a bad tool",
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Message.Content)

	last := provider.lastInput.Messages[len(provider.lastInput.Messages)-1]
	assert.Equal(t, "tool", last.Role)
	assert.Contains(t, last.Content, "nonexistent_tool")
}

func TestSend_ToolLoopExceeded(t *testing.T) {
	// The model requests tools forever and never produces text.
	provider := &StubProvider{completions: []ports.Completion{
		toolCompletion("spin", `{"value":"x"}`),
	}}
	f := newFixture(t, provider, map[string]tooling.Procedure{
		"spin": func(ctx context.Context, call tooling.CallContext, args json.RawMessage) (any, error) {
			return "again", nil
		},
	})

	_, err := f.orch.Send(context.Background(), SendRequest{
		UserID:  "u1",
		ModelID: "claude-haiku",
		Content: "loop forever",
	})
	require.ErrorIs(t, err, ErrToolLoopExceeded)

	// MaxToolRounds tool rounds plus the final bounded model call.
	assert.Equal(t, int32(4), provider.calls.Load())
}

func TestSend_ToolLoopTruncatedReturnsBestEffortText(t *testing.T) {
	provider := &StubProvider{completions: []ports.Completion{
		{
			Text:      "partial thinking",
			ToolCalls: []ports.ToolCall{{Name: "spin", Args: json.RawMessage(`{"value":"x"}`)}},
			Usage:     &ports.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		},
	}}
	f := newFixture(t, provider, map[string]tooling.Procedure{
		"spin": func(ctx context.Context, call tooling.CallContext, args json.RawMessage) (any, error) {
			return "again", nil
		},
	})

	resp, err := f.orch.Send(context.Background(), SendRequest{
		UserID:  "u1",
		ModelID: "claude-haiku",
		Content: "loop with text",
	})
	require.NoError(t, err)
	assert.Equal(t, "partial thinking", resp.Message.Content)
	assert.Equal(t, []string{"spin"}, resp.Message.ToolsUsed)
}

func TestSend_DebitFailureStillReturnsAnswer(t *testing.T) {
	// Measured usage prices far above the remaining balance; settlement is
	// rejected but the answer and transcript survive.
	provider := &StubProvider{completions: []ports.Completion{
		textCompletion("pricey answer", 400, 400),
	}}
	f := newFixture(t, provider, nil)
	ctx := context.Background()

	resp, err := f.orch.Send(ctx, SendRequest{
		UserID:  "u1",
		ModelID: "claude-haiku",
		Content: "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "pricey answer", resp.Message.Content)

	// No debit was recorded, balance untouched.
	b, err := f.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), b.Current)

	page, err := f.store.Page(ctx, resp.ConversationID, 10, "")
	require.NoError(t, err)
	assert.Len(t, page.Messages, 2)
}

func TestSend_CancelledContext(t *testing.T) {
	f := newFixture(t, &StubProvider{completions: []ports.Completion{
		textCompletion("never", 1, 1),
	}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.orch.Send(ctx, SendRequest{
		UserID:  "u1",
		ModelID: "claude-haiku",
		Content: "hi",
	})
	assert.Error(t, err)
}

func TestSend_ContinuesExistingConversation(t *testing.T) {
	provider := &StubProvider{completions: []ports.Completion{
		textCompletion("second answer", 10, 5),
	}}
	f := newFixture(t, provider, nil)
	ctx := context.Background()

	require.NoError(t, f.store.EnsureConversation(ctx, history.Conversation{
		ID: "c1", OwnerID: "u1", CreatedAt: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, f.store.Append(ctx, history.Message{
		ID: "m1", ConversationID: "c1", Role: history.RoleUser,
		Content: "earlier question", CreatedAt: time.Now().Add(-time.Hour),
	}))

	resp, err := f.orch.Send(ctx, SendRequest{
		UserID:         "u1",
		ConversationID: "c1",
		ModelID:        "claude-haiku",
		Content:        "follow up",
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", resp.ConversationID)

	// Prior history reached the model before the new user message.
	require.GreaterOrEqual(t, len(provider.lastInput.Messages), 2)
	assert.Equal(t, "earlier question", provider.lastInput.Messages[0].Content)
	assert.Equal(t, "follow up", provider.lastInput.Messages[len(provider.lastInput.Messages)-1].Content)
}
