// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/Yates-Labs/storyprompt/internal/i18n"
	"github.com/Yates-Labs/storyprompt/internal/logger"
	"github.com/Yates-Labs/storyprompt/internal/narrative"
	"github.com/Yates-Labs/storyprompt/internal/prompt"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/text/language"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds every setting the CLI and the web server read from the environment.
type Config struct {
	// Catalogue
	CataloguePaths []string `envconfig:"CATALOGUE_PATHS" default:"story_elements.json,data/story_elements.json"`

	// Prompt defaults
	Language     string `envconfig:"STORY_LANGUAGE" default:"ja"`
	Template     string `envconfig:"PROMPT_TEMPLATE" default:"shortshort"`
	ElementCount int    `envconfig:"ELEMENT_COUNT" default:"5"`
	WordCount    int    `envconfig:"WORD_COUNT" default:"1200"`

	// Web server
	ListenAddr         string        `envconfig:"LISTEN_ADDR" default:":8080"`
	SessionIdleTimeout time.Duration `envconfig:"SESSION_IDLE_TIMEOUT" default:"2h"`
	GinMode            string        `envconfig:"GIN_MODE" default:"release"`

	// Logging
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"console"`
	LogOutput   string `envconfig:"LOG_OUTPUT"`

	// Vendors
	Vendor            string        `envconfig:"VENDOR" default:"demo"`
	VendorTimeout     time.Duration `envconfig:"VENDOR_TIMEOUT" default:"60s"`
	VendorMaxTokens   int           `envconfig:"VENDOR_MAX_TOKENS" default:"3000"`
	VendorTemperature float32       `envconfig:"VENDOR_TEMPERATURE" default:"0.9"`

	ClaudeAPIKey  string `envconfig:"ANTHROPIC_API_KEY"`
	ClaudeModel   string `envconfig:"CLAUDE_MODEL"`
	ClaudeBaseURL string `envconfig:"CLAUDE_BASE_URL"`

	GrokAPIKey  string `envconfig:"XAI_API_KEY"`
	GrokModel   string `envconfig:"GROK_MODEL"`
	GrokBaseURL string `envconfig:"GROK_BASE_URL"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`

	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`
	GeminiModel   string `envconfig:"GEMINI_MODEL"`
	GeminiBaseURL string `envconfig:"GEMINI_BASE_URL"`
}

// Load reads the environment into a validated Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that have a valid range.
func (c *Config) Validate() error {
	if c.ElementCount <= 0 {
		return fmt.Errorf("%w: ELEMENT_COUNT must be positive, got %d", ErrInvalidConfig, c.ElementCount)
	}
	if c.WordCount <= 0 {
		return fmt.Errorf("%w: WORD_COUNT must be positive, got %d", ErrInvalidConfig, c.WordCount)
	}
	if _, err := prompt.ParseTemplate(c.Template); err != nil {
		return fmt.Errorf("%w: PROMPT_TEMPLATE: %w", ErrInvalidConfig, err)
	}
	if _, err := narrative.ParseVendor(c.Vendor); err != nil {
		return fmt.Errorf("%w: VENDOR: %w", ErrInvalidConfig, err)
	}
	if c.VendorTimeout <= 0 {
		return fmt.Errorf("%w: VENDOR_TIMEOUT must be positive", ErrInvalidConfig)
	}
	return nil
}

// LanguageTag returns the configured language matched against the built-in locales.
func (c *Config) LanguageTag() language.Tag {
	return i18n.Match(c.Language)
}

// PromptTemplate returns the configured template. Validate has already vetted it.
func (c *Config) PromptTemplate() prompt.Template {
	tmpl, err := prompt.ParseTemplate(c.Template)
	if err != nil {
		return prompt.TemplateShortShort
	}
	return tmpl
}

// DefaultVendor returns the configured vendor, or demo when it does not parse.
func (c *Config) DefaultVendor() narrative.Vendor {
	v, err := narrative.ParseVendor(c.Vendor)
	if err != nil {
		return narrative.VendorDemo
	}
	return v
}

// Logger returns the logger settings.
func (c *Config) Logger() logger.Config {
	return logger.Config{
		Level:      c.LogLevel,
		Encoding:   c.LogEncoding,
		OutputPath: c.LogOutput,
	}
}

// LLMConfig assembles the generation settings for vendor. apiKey, when non-empty,
// overrides the key from the environment.
func (c *Config) LLMConfig(vendor narrative.Vendor, apiKey string) narrative.LLMConfig {
	cfg := narrative.DefaultLLMConfig(vendor)
	cfg.Temperature = c.VendorTemperature
	cfg.MaxTokens = c.VendorMaxTokens
	cfg.Timeout = c.VendorTimeout

	var key, model, baseURL string
	switch vendor {
	case narrative.VendorClaude:
		key, model, baseURL = c.ClaudeAPIKey, c.ClaudeModel, c.ClaudeBaseURL
	case narrative.VendorGrok:
		key, model, baseURL = c.GrokAPIKey, c.GrokModel, c.GrokBaseURL
	case narrative.VendorOpenAI:
		key, model, baseURL = c.OpenAIAPIKey, c.OpenAIModel, c.OpenAIBaseURL
	case narrative.VendorGemini:
		key, model, baseURL = c.GeminiAPIKey, c.GeminiModel, c.GeminiBaseURL
	}

	if apiKey != "" {
		key = apiKey
	}
	cfg.APIKey = key
	if model != "" {
		cfg.Model = model
	}
	cfg.BaseURL = baseURL
	return cfg
}
