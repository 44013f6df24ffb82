package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/entrhq/autofill/pkg/llm/openai"
)

// ErrNoAPIKey is returned when suggestions are enabled but no key resolves.
var ErrNoAPIKey = errors.New("API key is required. Set OPENAI_API_KEY, use --api-key, or set suggest.api_key in the config file")

// ProviderFlags are the command line overrides for the suggestion provider.
type ProviderFlags struct {
	Model   string
	BaseURL string
	APIKey  string
}

// BuildProvider creates the LLM provider for answer suggestions based on
// precedence: CLI flags > environment variables > config file > defaults.
func (c *Config) BuildProvider(flags ProviderFlags) (*openai.Provider, error) {
	finalModel := flags.Model
	finalBaseURL := flags.BaseURL
	finalAPIKey := flags.APIKey

	if finalAPIKey == "" {
		finalAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if finalBaseURL == "" {
		finalBaseURL = os.Getenv("OPENAI_BASE_URL")
	}

	if finalModel == "" {
		finalModel = c.Suggest.Model
	}
	if finalBaseURL == "" {
		finalBaseURL = c.Suggest.BaseURL
	}
	if finalAPIKey == "" {
		finalAPIKey = c.Suggest.APIKey
	}

	if finalAPIKey == "" {
		return nil, ErrNoAPIKey
	}

	providerOpts := []openai.ProviderOption{}
	if finalModel != "" {
		providerOpts = append(providerOpts, openai.WithModel(finalModel))
	}
	if finalBaseURL != "" {
		providerOpts = append(providerOpts, openai.WithBaseURL(finalBaseURL))
	}

	provider, err := openai.NewProvider(finalAPIKey, providerOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}
	return provider, nil
}
