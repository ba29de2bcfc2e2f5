package shared

import "time"

// TokenUsage tracks the tokens consumed by an LLM request.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// AgentMeta holds operational metadata for an LLM call.
type AgentMeta struct {
	AgentName string
	Usage     TokenUsage
	Latency   time.Duration
}
