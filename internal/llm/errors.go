package llm

import "errors"

// Common errors returned by the llm package
var (
	// ErrProviderUnavailable is returned when a single provider attempt fails.
	// The client recovers from it by moving to the next provider.
	ErrProviderUnavailable = errors.New("language model provider unavailable")

	// ErrNoProviderAvailable is returned when every candidate provider failed.
	ErrNoProviderAvailable = errors.New("no language model provider available")

	// ErrMalformedOutput is returned when a model reply cannot be parsed as a JSON object.
	ErrMalformedOutput = errors.New("malformed language model output")

	// ErrProviderDisabled is returned by a provider that is not configured,
	// for example one without an API key.
	ErrProviderDisabled = errors.New("language model provider not configured")

	// ErrEmptyResponse is returned when a provider answers with no content.
	ErrEmptyResponse = errors.New("empty response from language model")

	// ErrContentBlocked is returned when the provider blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrInvalidConfig is returned when a provider or client configuration is invalid
	ErrInvalidConfig = errors.New("invalid language model configuration")
)
