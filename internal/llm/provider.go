package llm

import (
	"context"
	"time"
)

// Message roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a chat-style prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// System returns a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User returns a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Provider defines the interface for a single language-model backend.
// This interface serves as a boundary between the application core and
// external LLM services.
type Provider interface {
	// Name identifies the provider in logs, metrics and forced-provider lookups.
	Name() string

	// Complete sends messages and returns the reply text. Implementations
	// return ErrProviderDisabled when they are not configured.
	Complete(ctx context.Context, messages []Message) (string, error)
}

// CallResult records the outcome of one provider attempt.
type CallResult struct {
	Provider string
	Text     string
	Err      error
	Elapsed  time.Duration
}

// OK reports whether the attempt produced usable text.
func (r CallResult) OK() bool {
	return r.Err == nil && r.Text != ""
}
