package tooling

import "errors"

// Dispatch failure classes. All three are recovered at the dispatcher
// boundary and surfaced to the model as tool results; none of them may abort
// the conversation turn.
var (
	ErrToolNotFound        = errors.New("tool not found")
	ErrInvalidToolInput    = errors.New("invalid tool input")
	ErrToolExecutionFailed = errors.New("tool execution failed")
)

// Registration failures. These are programmer errors caught at startup.
var (
	ErrRegistryFrozen = errors.New("tool registry is frozen")
	ErrDuplicateTool  = errors.New("tool already registered")
	ErrEmptyToolName  = errors.New("tool name is empty")
	ErrNilProcedure   = errors.New("tool procedure is nil")
)
