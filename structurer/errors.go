package structurer

import (
	"errors"
	"fmt"
)

var (
	// ErrNoText is returned when there is nothing to send to the model.
	ErrNoText = errors.New("structurer: no text content found in extracted data")

	// ErrEmptyResponse is returned when the provider answers without any
	// choice or content.
	ErrEmptyResponse = errors.New("structurer: empty response from model")

	// ErrNoAPIKey is returned by OpenAIProvider when no key is configured.
	ErrNoAPIKey = errors.New("structurer: no API key configured")
)

// ProviderError is a non-2xx answer from the chat completions endpoint.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.Status, e.Body)
}

// Temporary reports whether retrying may succeed (rate limits and server
// errors).
func (e *ProviderError) Temporary() bool {
	return e.Status == 429 || e.Status >= 500
}
