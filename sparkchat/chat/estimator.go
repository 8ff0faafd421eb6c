package chat

// estimateTokens is a fast pre-flight heuristic, roughly 4 characters per
// token. Settlement never uses it when the provider reports measured usage.
func estimateTokens(s string) int {
	l := len(s)
	if l == 0 {
		return 0
	}
	return (l + 3) / 4
}
