package provider

import (
	"context"
	"errors"
	"fmt"

	"holefill/client/compat"
	"holefill/client/gemini"
	"holefill/client/openai"
	"holefill/completion"
	"holefill/logger"
	"holefill/types"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrMissingAPIKey   = errors.New("api key not configured")
	ErrMissingURL      = errors.New("provider url not configured")
)

// NewBackend creates the Completion Backend for the configured provider type.
// Selection is a configuration value; nothing here routes between providers.
func NewBackend(ctx context.Context, providerType types.ProviderType, config *types.ProviderConfig) (completion.Backend, error) {
	if err := Validate(providerType, config); err != nil {
		return nil, err
	}

	logger.Info("provider: %s (model=%q url=%q)", providerType, config.ProviderModel, config.ProviderURL)

	switch providerType {
	case types.ProviderTypeOpenAI:
		return openai.NewClient(config), nil
	case types.ProviderTypeGemini:
		return gemini.NewClient(ctx, config)
	case types.ProviderTypeCompat:
		return compat.NewClient(config), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, providerType)
	}
}

// Validate checks that a provider has what it needs to open a stream
func Validate(providerType types.ProviderType, config *types.ProviderConfig) error {
	switch providerType {
	case types.ProviderTypeOpenAI:
		// A custom URL may point at a server that ignores auth
		if config.APIKey == "" && config.ProviderURL == "" {
			return fmt.Errorf("%s: %w", providerType, ErrMissingAPIKey)
		}
	case types.ProviderTypeGemini:
		if config.APIKey == "" {
			return fmt.Errorf("%s: %w", providerType, ErrMissingAPIKey)
		}
	case types.ProviderTypeCompat:
		if config.ProviderURL == "" {
			return fmt.Errorf("%s: %w", providerType, ErrMissingURL)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, providerType)
	}
	return nil
}
