// Package model defines the provider-agnostic contract for AI completion
// calls. The intent router and reply summarizers depend only on this minimal
// shape; adapters under features/model translate it into provider SDKs
// (Anthropic, OpenAI).
package model

import (
	"context"
	"errors"
)

type (
	// Client sends a prompt to an AI completion provider and returns the
	// generated text. Implementations must be safe for concurrent use.
	Client interface {
		// Complete sends a completion request and returns the response. Returns
		// an error if the provider is unavailable, quota is exceeded, or the
		// request is malformed.
		Complete(ctx context.Context, req Request) (Response, error)
	}

	// Request captures the normalized parameters for a completion call.
	Request struct {
		// Model identifies the target model using the provider-specific
		// identifier. Empty uses the adapter default.
		Model string
		// Messages is the ordered chat history, including system instructions
		// and user input.
		Messages []Message
		// MaxTokens caps completion length. Zero uses the adapter default.
		MaxTokens int
		// Temperature controls sampling randomness.
		Temperature float64
	}

	// Response wraps the generated text and token accounting.
	Response struct {
		// Text is the generated completion.
		Text string
		// Usage reports token consumption when the provider supplies it.
		Usage TokenUsage
	}

	// Message is one chat turn sent to the provider.
	Message struct {
		// Role is "system", "user" or "assistant".
		Role string
		// Content is the message text.
		Content string
	}

	// TokenUsage records prompt and completion token counts. All fields are
	// zero when the provider does not report usage.
	TokenUsage struct {
		InputTokens  int
		OutputTokens int
		TotalTokens  int
	}
)

// Message roles understood by all adapters.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrRateLimited indicates the provider rejected the request due to rate
// limiting. Callers may retry after a backoff.
var ErrRateLimited = errors.New("model: rate limited")
