// Package narrative turns an assembled prompt into a short story by calling one of
// several language-model vendors. It defines a vendor-agnostic LLM interface, one
// adapter per vendor, an offline demo adapter and a deterministic mock for tests.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	ErrLLMFailed     = errors.New("LLM request failed")
	ErrInvalidConfig = errors.New("invalid LLM configuration")
	ErrUnknownVendor = errors.New("unknown vendor")
	ErrMissingAPIKey = errors.New("API key is required")
)

// LLM defines the interface for interacting with language models.
// Implementations must be stateless and thread-safe.
type LLM interface {
	// Generate produces text from a prompt using the configured model.
	// Returns the generated text or an error if generation fails.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Vendor identifies a story-generation backend.
type Vendor string

const (
	VendorClaude Vendor = "claude"
	VendorGrok   Vendor = "grok"
	VendorOpenAI Vendor = "openai"
	VendorGemini Vendor = "gemini"
	VendorDemo   Vendor = "demo"
)

// Vendors lists every supported vendor in display order.
func Vendors() []Vendor {
	return []Vendor{VendorClaude, VendorGrok, VendorOpenAI, VendorGemini, VendorDemo}
}

// ParseVendor maps a case-insensitive name to a Vendor.
func ParseVendor(s string) (Vendor, error) {
	v := Vendor(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Vendors() {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVendor, s)
}

// DisplayName is the human-readable vendor name used in messages.
func (v Vendor) DisplayName() string {
	switch v {
	case VendorClaude:
		return "Claude"
	case VendorGrok:
		return "Grok"
	case VendorOpenAI:
		return "OpenAI"
	case VendorGemini:
		return "Gemini"
	case VendorDemo:
		return "Demo"
	default:
		return string(v)
	}
}

// RequiresAPIKey reports whether the vendor needs credentials.
func (v Vendor) RequiresAPIKey() bool {
	return v != VendorDemo
}

// DefaultModel returns the model used when none is configured.
func (v Vendor) DefaultModel() string {
	switch v {
	case VendorClaude:
		return "claude-3-haiku-20240307"
	case VendorGrok:
		return "grok-beta"
	case VendorOpenAI:
		return "gpt-3.5-turbo"
	case VendorGemini:
		return "gemini-pro"
	case VendorDemo:
		return "demo"
	default:
		return ""
	}
}

// DefaultBaseURL returns the API root used when none is configured.
func (v Vendor) DefaultBaseURL() string {
	switch v {
	case VendorClaude:
		return "https://api.anthropic.com/v1"
	case VendorGrok:
		return "https://api.x.ai/v1"
	case VendorOpenAI:
		return "https://api.openai.com/v1"
	case VendorGemini:
		return "https://generativelanguage.googleapis.com/v1beta"
	default:
		return ""
	}
}

const (
	DefaultTemperature = 0.9
	DefaultMaxTokens   = 3000
	DefaultTimeout     = 60 * time.Second
)

// LLMConfig holds common configuration options for LLM providers.
type LLMConfig struct {
	// Vendor selects the adapter.
	Vendor Vendor

	// Model specifies the model identifier (e.g., "gpt-4o", "claude-3-haiku-20240307")
	Model string

	// Temperature controls randomness (0.0 = deterministic, 2.0 = very random)
	Temperature float32

	// MaxTokens limits the response length
	MaxTokens int

	// APIKey is the authentication key for the provider
	APIKey string

	// BaseURL overrides the vendor's API root.
	BaseURL string

	// Timeout bounds one request end to end.
	Timeout time.Duration

	// HTTPClient is used for outgoing requests; nil means a default client.
	HTTPClient *http.Client
}

// DefaultLLMConfig returns the generation defaults for a vendor.
func DefaultLLMConfig(vendor Vendor) LLMConfig {
	return LLMConfig{
		Vendor:      vendor,
		Model:       vendor.DefaultModel(),
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Timeout:     DefaultTimeout,
	}
}

// withDefaults fills unset fields from DefaultLLMConfig.
func (c LLMConfig) withDefaults() LLMConfig {
	d := DefaultLLMConfig(c.Vendor)
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.Temperature == 0 {
		c.Temperature = d.Temperature
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.BaseURL == "" {
		c.BaseURL = c.Vendor.DefaultBaseURL()
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	return c
}

// NewLLM builds the adapter for cfg.Vendor. Missing credentials for a vendor that
// needs them are reported as a GenerationFailure so callers can show one message.
func NewLLM(cfg LLMConfig) (LLM, error) {
	if _, err := ParseVendor(string(cfg.Vendor)); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if cfg.Vendor.RequiresAPIKey() && strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &GenerationFailure{Vendor: cfg.Vendor, Reason: ErrMissingAPIKey.Error(), Err: ErrMissingAPIKey}
	}

	switch cfg.Vendor {
	case VendorClaude:
		return newClaudeLLM(cfg), nil
	case VendorGemini:
		return newGeminiLLM(cfg), nil
	case VendorOpenAI, VendorGrok:
		return NewOpenAILLM(cfg)
	default:
		return NewDemoLLM(), nil
	}
}
