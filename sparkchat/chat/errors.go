package chat

import "errors"

var (
	// ErrToolLoopExceeded is fatal for the turn: the model kept requesting
	// tools past the configured round bound and produced no usable text.
	ErrToolLoopExceeded = errors.New("tool call rounds exceeded")

	// ErrEmptyUserMessage rejects a send with no content before any spend.
	ErrEmptyUserMessage = errors.New("user message content is empty")

	// ErrModelCallFailed wraps provider failures after retry-free dispatch.
	ErrModelCallFailed = errors.New("model call failed")
)
