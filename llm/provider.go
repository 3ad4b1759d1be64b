// Package llm provides the backend provider abstraction.
//
// Provider - the interface for the inference backend.
// Each provider implementation hides:
// - Request encoding and authentication
// - Transport framing and compression
// - Provider-specific error handling

package llm

import (
	"context"
)

// Provider defines the interface for an inference backend that answers a
// whole conversation with one streamed response.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the model the backend was configured with.
	Model() string

	// Stream sends the conversation and returns the raw response body.
	// The body is interpreted with ParseResponse.
	Stream(ctx context.Context, messages []ChatMessage, toolDefs string) ([]byte, error)
}
