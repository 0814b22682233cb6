package adapter

import (
	"context"
	"io"
)

// ProviderClient is the outbound contract against one configured AI
// service. One client instance is bound to one provider's base URL and
// credentials.
type ProviderClient interface {
	// ListModels performs a minimal real request against the provider and
	// returns the model ids it offers. Used as the validation probe.
	ListModels(ctx context.Context) ([]string, error)

	// Chat sends a system prompt and user content to the given model and
	// returns the normalized response text.
	Chat(ctx context.Context, model, systemPrompt, userContent string) (string, error)

	// Transcribe uploads audio bytes as one multipart request (file +
	// model identifier) and returns the transcript text.
	Transcribe(ctx context.Context, model, filename string, audio io.Reader) (string, error)
}

// ClientFactory builds a [ProviderClient] for a base URL and API key.
// The registry uses it so tests can substitute fakes.
type ClientFactory func(baseURL, apiKey string) ProviderClient
