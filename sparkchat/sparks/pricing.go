package sparks

// Multiplier is a per-model cost ratio kept as an integer fraction so the
// ledger never touches floating point. A multiplier of 3/2 bills 1.5 sparks
// per token, rounded up at the total.
type Multiplier struct {
	Num int64
	Den int64
}

// PricingTable maps model identifiers to their spark multipliers.
type PricingTable map[string]Multiplier

// DefaultPricing returns the built-in multiplier table. Multipliers are
// always >= 1.
func DefaultPricing() PricingTable {
	return PricingTable{
		"claude-haiku":  {Num: 1, Den: 1},
		"claude-sonnet": {Num: 3, Den: 1},
		"claude-opus":   {Num: 15, Den: 1},
		"gpt-4o-mini":   {Num: 3, Den: 2},
		"gpt-4o":        {Num: 5, Den: 1},
	}
}

// Cost computes ceil(multiplier * tokens) in pure integer arithmetic.
func (m Multiplier) Cost(tokens int64) int64 {
	if tokens <= 0 {
		return 0
	}
	return (m.Num*tokens + m.Den - 1) / m.Den
}
