// Package llm provides the completion boundary used to suggest answers for
// fields the matcher could not resolve.
//
// Example usage:
//
//	provider, err := openai.NewProvider(
//	    os.Getenv("OPENAI_API_KEY"),
//	    openai.WithModel("gpt-4o-mini"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	answer, err := provider.Complete(ctx, llm.Prompt{
//	    System: "You are a form-filling assistant.",
//	    User:   "Q1: Student Name",
//	})
package llm

import (
	"context"
	"errors"
)

// ErrNoAPIKey is returned when a provider has no credentials to call with.
var ErrNoAPIKey = errors.New("llm: API key is required")

// ErrEmptyResponse is returned when the model answered with no choices.
var ErrEmptyResponse = errors.New("llm: empty response")

// Prompt is a single-turn request.
type Prompt struct {
	System string
	User   string

	// MaxTokens caps the completion. Zero uses the provider default.
	MaxTokens int
}

// Provider defines the interface for LLM integrations.
//
// Providers return the assistant's final text with any reasoning
// (<thinking> blocks) removed. They never see the page; callers decide what
// to do with the text.
type Provider interface {
	// Complete sends the prompt and returns the full response text.
	Complete(ctx context.Context, prompt Prompt) (string, error)

	// GetModel returns the model name being used.
	GetModel() string

	// GetBaseURL returns the base URL being used for API requests.
	GetBaseURL() string
}
