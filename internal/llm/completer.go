// Package llm composes answers from retrieved context using a chat-completion
// provider.
package llm

import "context"

// Completer produces a chat completion for a system prompt and user message.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Model() string
}
