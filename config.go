package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"holefill/engine"
	"holefill/types"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Provider            string  `json:"provider" toml:"provider"`
	ProviderURL         string  `json:"provider_url" toml:"provider_url"`
	ProviderModel       string  `json:"provider_model" toml:"provider_model"`
	ProviderTemperature float64 `json:"provider_temperature" toml:"provider_temperature"`
	ProviderMaxTokens   int     `json:"provider_max_tokens" toml:"provider_max_tokens"`
	APIKey              string  `json:"api_key" toml:"api_key"`
	CompressRequests    bool    `json:"compress_requests" toml:"compress_requests"`
	CompletionTimeout   int     `json:"completion_timeout" toml:"completion_timeout"` // in milliseconds, 0 = none
	ContextLines        int     `json:"context_lines" toml:"context_lines"`
	TriggerDelay        int     `json:"trigger_delay" toml:"trigger_delay"` // in milliseconds
	SuffixLines         int     `json:"suffix_lines" toml:"suffix_lines"`
	SessionTTL          int     `json:"session_ttl" toml:"session_ttl"`     // in minutes
	LogLevel            string  `json:"log_level" toml:"log_level"`         // trace, debug, info, warn, error
	IdleShutdown        int     `json:"idle_shutdown" toml:"idle_shutdown"` // in seconds
}

func defaultConfig() Config {
	d := engine.DefaultConfig()
	return Config{
		Provider:            string(types.ProviderTypeOpenAI),
		ProviderTemperature: d.Temperature,
		ProviderMaxTokens:   d.MaxTokens,
		CompletionTimeout:   30000,
		ContextLines:        d.ContextLines,
		TriggerDelay:        int(d.TriggerDelay / time.Millisecond),
		SessionTTL:          int(d.SessionTTL / time.Minute),
		LogLevel:            "info",
		IdleShutdown:        30,
	}
}

// configPath returns the default TOML location:
// $XDG_CONFIG_HOME/holefill/config.toml > ~/.config/holefill/config.toml
func configPath(getenv func(string) string) string {
	if dir := getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "holefill", "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "holefill", "config.toml")
}

// loadConfig layers config sources, lowest priority first: defaults,
// $HOLEFILL_CONFIG (JSON from the editor plugin), the TOML file,
// HOLEFILL_* environment variables, then command line flags. Each layer
// only overrides the keys it sets.
func loadConfig(a args, getenv func(string) string) (Config, error) {
	config := defaultConfig()

	if raw := getenv("HOLEFILL_CONFIG"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &config); err != nil {
			return config, fmt.Errorf("invalid HOLEFILL_CONFIG: %w", err)
		}
	}

	path, explicit := a.Config, a.Config != ""
	if !explicit {
		path = configPath(getenv)
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, &config); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return config, fmt.Errorf("config file %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&config, getenv); err != nil {
		return config, err
	}
	config.APIKey = resolveAPIKey(config, getenv)

	if a.Provider != "" {
		config.Provider = a.Provider
	}
	if a.Model != "" {
		config.ProviderModel = a.Model
	}
	if a.LogLevel != "" {
		config.LogLevel = a.LogLevel
	}

	return config, config.validate()
}

func applyEnv(config *Config, getenv func(string) string) error {
	if v := getenv("HOLEFILL_PROVIDER"); v != "" {
		config.Provider = v
	}
	if v := getenv("HOLEFILL_PROVIDER_URL"); v != "" {
		config.ProviderURL = v
	}
	if v := getenv("HOLEFILL_PROVIDER_MODEL"); v != "" {
		config.ProviderModel = v
	}
	if v := getenv("HOLEFILL_LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	if v := getenv("HOLEFILL_SUFFIX_LINES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HOLEFILL_SUFFIX_LINES: %w", err)
		}
		config.SuffixLines = n
	}
	return nil
}

// resolveAPIKey picks the key for the configured provider:
// $HOLEFILL_API_KEY > provider-native variable > config value
func resolveAPIKey(config Config, getenv func(string) string) string {
	if key := getenv("HOLEFILL_API_KEY"); key != "" {
		return key
	}
	var native string
	switch types.ProviderType(config.Provider) {
	case types.ProviderTypeOpenAI:
		native = "OPENAI_API_KEY"
	case types.ProviderTypeGemini:
		native = "GEMINI_API_KEY"
	}
	if native != "" {
		if key := getenv(native); key != "" {
			return key
		}
	}
	return config.APIKey
}

func (c Config) validate() error {
	switch {
	case c.ContextLines < 0:
		return fmt.Errorf("context_lines must be >= 0, got %d", c.ContextLines)
	case c.TriggerDelay < 0:
		return fmt.Errorf("trigger_delay must be >= 0, got %d", c.TriggerDelay)
	case c.SuffixLines < 0:
		return fmt.Errorf("suffix_lines must be >= 0, got %d", c.SuffixLines)
	case c.SessionTTL <= 0:
		return fmt.Errorf("session_ttl must be > 0, got %d", c.SessionTTL)
	}
	return nil
}

func (c Config) providerType() types.ProviderType {
	return types.ProviderType(c.Provider)
}

func (c Config) providerConfig() *types.ProviderConfig {
	return &types.ProviderConfig{
		ProviderURL:         c.ProviderURL,
		APIKey:              c.APIKey,
		ProviderModel:       c.ProviderModel,
		ProviderTemperature: c.ProviderTemperature,
		ProviderMaxTokens:   c.ProviderMaxTokens,
		CompressRequests:    c.CompressRequests,
		CompletionTimeout:   c.CompletionTimeout,
	}
}

func (c Config) engineConfig() engine.EngineConfig {
	return engine.EngineConfig{
		ContextLines: c.ContextLines,
		TriggerDelay: time.Duration(c.TriggerDelay) * time.Millisecond,
		SuffixLines:  c.SuffixLines,
		MaxTokens:    c.ProviderMaxTokens,
		Temperature:  c.ProviderTemperature,
		Backend: types.BackendConfig{
			Provider: c.providerType(),
			Model:    c.ProviderModel,
		},
		SessionTTL: time.Duration(c.SessionTTL) * time.Minute,
	}
}

// String hides the API key
func (c Config) String() string {
	masked := c
	if masked.APIKey != "" {
		masked.APIKey = "***"
	}
	type plain Config
	return fmt.Sprintf("%+v", plain(masked))
}
