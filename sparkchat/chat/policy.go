package chat

import (
	"time"

	"github.com/ZanzyTHEbar/sparkchat/sparkchat/config"
)

// Policy controls the conversation loop.
type Policy struct {
	MaxToolRounds   int           // hard bound on model/tool round trips per turn
	ToolTimeout     time.Duration // per-tool-call timeout
	ModelTimeout    time.Duration // per-model-call timeout
	ToolConcurrency int           // concurrent tool executions within one round
	HistoryWindow   int           // last-k messages loaded into the prompt

	// EstimatedOutputTokens feeds the advisory pre-flight estimate; the
	// settled debit uses measured usage.
	EstimatedOutputTokens int
}

// DefaultPolicy returns sensible defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxToolRounds:         5,
		ToolTimeout:           30 * time.Second,
		ModelTimeout:          120 * time.Second,
		ToolConcurrency:       4,
		HistoryWindow:         40,
		EstimatedOutputTokens: 500,
	}
}

// PolicyFromConfig builds a policy from loaded configuration.
func PolicyFromConfig(cfg config.ChatConfig) Policy {
	p := DefaultPolicy()
	if cfg.MaxToolRounds > 0 {
		p.MaxToolRounds = cfg.MaxToolRounds
	}
	if cfg.ToolTimeout > 0 {
		p.ToolTimeout = cfg.ToolTimeout
	}
	if cfg.ModelTimeout > 0 {
		p.ModelTimeout = cfg.ModelTimeout
	}
	if cfg.ToolConcurrency > 0 {
		p.ToolConcurrency = cfg.ToolConcurrency
	}
	if cfg.HistoryWindow > 0 {
		p.HistoryWindow = cfg.HistoryWindow
	}
	return p
}
