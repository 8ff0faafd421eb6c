package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	ports "github.com/ZanzyTHEbar/sparkchat/sparkchat/chat/ports"
	"github.com/ZanzyTHEbar/sparkchat/sparkchat/chat/tooling"
	"github.com/ZanzyTHEbar/sparkchat/sparkchat/history"
	"github.com/ZanzyTHEbar/sparkchat/sparkchat/sparks"
	"github.com/google/uuid"
)

// SendRequest is one inbound user message.
type SendRequest struct {
	UserID         string
	ConversationID string // empty starts a new conversation
	ModelID        string
	Content        string
	Attachments    []string // opaque blob references, passed through untouched
}

// SendResponse carries the assistant message and the conversation it landed in.
type SendResponse struct {
	Message        history.Message
	ConversationID string
}

// Orchestrator drives one inbound message through estimate, balance check,
// the model/tool loop, persistence, and settlement. One instance serves many
// concurrent requests; all mutable state lives in the stores.
type Orchestrator struct {
	provider   ports.Provider
	dispatcher *tooling.Dispatcher
	registry   *tooling.Registry
	store      history.Store
	ledger     *sparks.Ledger
	tracer     ports.Tracer
	policy     Policy
	system     string
	now        func() time.Time
}

// NewOrchestrator wires the conversation loop.
func NewOrchestrator(
	provider ports.Provider,
	registry *tooling.Registry,
	store history.Store,
	ledger *sparks.Ledger,
	tracer ports.Tracer,
	policy Policy,
) *Orchestrator {
	if tracer == nil {
		tracer = ports.NoopTracer{}
	}
	return &Orchestrator{
		provider:   provider,
		dispatcher: tooling.NewDispatcher(registry, policy.ToolTimeout, policy.ToolConcurrency, tracer),
		registry:   registry,
		store:      store,
		ledger:     ledger,
		tracer:     tracer,
		policy:     policy,
		system:     defaultSystemPrompt,
		now:        time.Now,
	}
}

const defaultSystemPrompt = "You are a helpful assistant. Use the available tools when they help answer the user."

// SetClock overrides the time source. Intended for tests.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// Send runs the full turn for one inbound user message.
func (o *Orchestrator) Send(ctx context.Context, req SendRequest) (SendResponse, error) {
	if strings.TrimSpace(req.Content) == "" {
		return SendResponse{}, ErrEmptyUserMessage
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	ctx, finish := o.tracer.StartSpan(ctx, "send_message", map[string]any{
		"conversation_id": conversationID,
		"model":           req.ModelID,
	})
	var turnErr error
	defer func() { finish(turnErr) }()

	// Estimating: advisory cost from the prompt window plus a fixed output
	// allowance. Unknown models are rejected here, before any spend.
	window, err := o.loadWindow(ctx, conversationID)
	if err != nil {
		turnErr = err
		return SendResponse{}, err
	}
	inputTokens := int64(estimateTokens(req.Content))
	for _, m := range window {
		inputTokens += int64(estimateTokens(m.Content))
	}
	estimate, err := o.ledger.Estimate(req.ModelID, inputTokens, int64(o.policy.EstimatedOutputTokens))
	if err != nil {
		turnErr = err
		return SendResponse{}, err
	}

	// BalanceChecked: blocked turns never reach the model and never debit.
	balance, err := o.ledger.GetBalance(ctx, req.UserID)
	if err != nil {
		turnErr = err
		return SendResponse{}, err
	}
	if balance.Current < estimate {
		o.tracer.Event(ctx, "blocked_insufficient_balance", map[string]any{
			"balance":  balance.Current,
			"estimate": estimate,
		})
		turnErr = sparks.ErrInsufficientBalance
		return SendResponse{}, fmt.Errorf("%w: balance %d, estimated cost %d",
			sparks.ErrInsufficientBalance, balance.Current, estimate)
	}

	userMsg := history.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           history.RoleUser,
		Content:        req.Content,
		CreatedAt:      o.now().UTC(),
	}

	transcript := make([]ports.PromptMessage, 0, len(window)+1)
	for _, m := range window {
		transcript = append(transcript, ports.PromptMessage{Role: string(m.Role), Content: m.Content})
	}
	transcript = append(transcript, ports.PromptMessage{Role: "user", Content: req.Content})

	finalText, toolsUsed, usage, err := o.runLoop(ctx, req, conversationID, transcript)
	if err != nil {
		turnErr = err
		return SendResponse{}, err
	}

	// Finalizing. The assistant timestamp must sort after the user message
	// even under a coarse clock, since insertion order is createdAt-first.
	assistantAt := o.now().UTC()
	if !assistantAt.After(userMsg.CreatedAt) {
		assistantAt = userMsg.CreatedAt.Add(time.Millisecond)
	}
	assistantMsg := history.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           history.RoleAssistant,
		Content:        finalText,
		ToolsUsed:      toolsUsed,
		CreatedAt:      assistantAt,
	}

	// Persisted: the debit is attempted before the messages land, then the
	// answer is returned no matter what the ledger or store said. A delivered
	// answer is never blocked on metering.
	o.settleAndPersist(ctx, req, conversationID, userMsg, assistantMsg, usage, inputTokens)

	return SendResponse{Message: assistantMsg, ConversationID: conversationID}, nil
}

// runLoop drives the bounded model/tool loop and returns the final text, the
// distinct tool names used in first-use order, and accumulated usage.
func (o *Orchestrator) runLoop(ctx context.Context, req SendRequest, conversationID string, transcript []ports.PromptMessage) (string, []string, ports.Usage, error) {
	var (
		usage     ports.Usage
		toolsUsed []string
		seenTools = map[string]bool{}
		lastText  string
	)

	cc := tooling.CallContext{UserID: req.UserID, ConversationID: conversationID}

	for round := 0; ; round++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", nil, usage, ctxErr
		}

		completion, err := o.callModel(ctx, req.ModelID, transcript, round)
		if err != nil {
			return "", nil, usage, fmt.Errorf("%w: %v", ErrModelCallFailed, err)
		}
		if completion.Usage != nil {
			usage.PromptTokens += completion.Usage.PromptTokens
			usage.CompletionTokens += completion.Usage.CompletionTokens
			usage.TotalTokens += completion.Usage.TotalTokens
		}
		if completion.Text != "" {
			lastText = completion.Text
		}

		if len(completion.ToolCalls) == 0 {
			return completion.Text, toolsUsed, usage, nil
		}

		if round >= o.policy.MaxToolRounds {
			break
		}

		// ToolExecuting: one round of independent calls, results re-joined
		// in call order before the next model call.
		results := o.dispatcher.DispatchAll(ctx, completion.ToolCalls, cc)
		for _, call := range completion.ToolCalls {
			if !seenTools[call.Name] {
				seenTools[call.Name] = true
				toolsUsed = append(toolsUsed, call.Name)
			}
		}

		if completion.Text != "" {
			transcript = append(transcript, ports.PromptMessage{Role: "assistant", Content: completion.Text})
		}
		for _, res := range results {
			transcript = append(transcript, ports.PromptMessage{Role: "tool", Content: res.Content})
		}

		o.tracer.Event(ctx, "tool_round", map[string]any{
			"round": round,
			"calls": len(completion.ToolCalls),
		})
	}

	// Round bound hit. Any text already produced goes out best-effort.
	if lastText != "" {
		o.tracer.Event(ctx, "tool_loop_truncated", map[string]any{"max_rounds": o.policy.MaxToolRounds})
		return lastText, toolsUsed, usage, nil
	}
	return "", nil, usage, fmt.Errorf("%w: %d rounds", ErrToolLoopExceeded, o.policy.MaxToolRounds)
}

func (o *Orchestrator) callModel(ctx context.Context, modelID string, transcript []ports.PromptMessage, round int) (ports.Completion, error) {
	if o.policy.ModelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.policy.ModelTimeout)
		defer cancel()
	}

	ctx, finish := o.tracer.StartSpan(ctx, "model_call", map[string]any{"round": round})
	completion, err := o.provider.Complete(ctx, ports.PromptInput{
		System:   o.system,
		Messages: transcript,
		Tools:    o.registry.Specs(),
	}, ports.Options{Model: modelID})
	finish(err)
	return completion, err
}

// settleAndPersist debits measured usage and writes both transcript messages.
// Failures here are logged through the tracer and swallowed: the caller
// already holds a model answer.
func (o *Orchestrator) settleAndPersist(ctx context.Context, req SendRequest, conversationID string, userMsg, assistantMsg history.Message, usage ports.Usage, estimatedInput int64) {
	promptTokens := int64(usage.PromptTokens)
	completionTokens := int64(usage.CompletionTokens)
	if usage.TotalTokens == 0 {
		// Provider reported nothing measurable; settle on the heuristic.
		promptTokens = estimatedInput
		completionTokens = int64(estimateTokens(assistantMsg.Content))
	}

	cost, err := o.ledger.Estimate(req.ModelID, promptTokens, completionTokens)
	if err == nil {
		if _, debitErr := o.ledger.Debit(ctx, req.UserID, cost, assistantMsg.ID); debitErr != nil {
			o.tracer.Event(ctx, "debit_failed", map[string]any{
				"cost":  cost,
				"error": debitErr.Error(),
			})
		}
	}

	if err := o.store.EnsureConversation(ctx, history.Conversation{
		ID:        conversationID,
		OwnerID:   req.UserID,
		CreatedAt: userMsg.CreatedAt,
	}); err != nil {
		o.tracer.Event(ctx, "persist_failed", map[string]any{"stage": "conversation", "error": err.Error()})
		return
	}
	if err := o.store.Append(ctx, userMsg); err != nil {
		o.tracer.Event(ctx, "persist_failed", map[string]any{"stage": "user_message", "error": err.Error()})
	}
	if err := o.store.Append(ctx, assistantMsg); err != nil {
		o.tracer.Event(ctx, "persist_failed", map[string]any{"stage": "assistant_message", "error": err.Error()})
	}
}

// loadWindow fetches the newest HistoryWindow messages in chronological order.
func (o *Orchestrator) loadWindow(ctx context.Context, conversationID string) ([]history.Message, error) {
	page, err := o.store.Page(ctx, conversationID, o.policy.HistoryWindow, "")
	if err != nil {
		return nil, err
	}
	return page.Messages, nil
}
