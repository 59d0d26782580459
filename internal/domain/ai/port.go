package ai

import "context"

// Completion is one model response plus its reported token usage.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// TotalTokens is what the budget guard is charged with.
func (c Completion) TotalTokens() int {
	return c.PromptTokens + c.CompletionTokens
}

// Client is the model-completion port. Implementations must return
// ErrEmptyResponse when the provider answers with no usable text.
type Client interface {
	Complete(ctx context.Context, system, user string) (Completion, error)
}
