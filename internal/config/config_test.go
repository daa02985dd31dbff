package config

import (
	"errors"
	"testing"
	"time"

	"github.com/Yates-Labs/storyprompt/internal/i18n"
	"github.com/Yates-Labs/storyprompt/internal/narrative"
	"github.com/Yates-Labs/storyprompt/internal/prompt"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.CataloguePaths) != 2 || cfg.CataloguePaths[0] != "story_elements.json" {
		t.Errorf("unexpected catalogue paths %v", cfg.CataloguePaths)
	}
	if cfg.ElementCount != 5 || cfg.WordCount != 1200 {
		t.Errorf("unexpected counts %d/%d", cfg.ElementCount, cfg.WordCount)
	}
	if cfg.VendorTimeout != 60*time.Second {
		t.Errorf("unexpected timeout %v", cfg.VendorTimeout)
	}
	if cfg.VendorMaxTokens != 3000 {
		t.Errorf("unexpected max tokens %d", cfg.VendorMaxTokens)
	}
	if cfg.VendorTemperature != 0.9 {
		t.Errorf("unexpected temperature %v", cfg.VendorTemperature)
	}
	if cfg.LanguageTag() != i18n.Japanese {
		t.Errorf("expected Japanese default, got %v", cfg.LanguageTag())
	}
	if cfg.PromptTemplate() != prompt.TemplateShortShort {
		t.Errorf("unexpected template %q", cfg.PromptTemplate())
	}
	if cfg.DefaultVendor() != narrative.VendorDemo {
		t.Errorf("unexpected vendor %q", cfg.DefaultVendor())
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("CATALOGUE_PATHS", "a.json,b.json,c.json")
	t.Setenv("STORY_LANGUAGE", "en-US")
	t.Setenv("ELEMENT_COUNT", "7")
	t.Setenv("VENDOR", "claude")
	t.Setenv("VENDOR_TIMEOUT", "5s")
	t.Setenv("ANTHROPIC_API_KEY", "sk-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.CataloguePaths) != 3 {
		t.Errorf("unexpected catalogue paths %v", cfg.CataloguePaths)
	}
	if cfg.LanguageTag() != i18n.English {
		t.Errorf("expected English, got %v", cfg.LanguageTag())
	}
	if cfg.ElementCount != 7 {
		t.Errorf("expected 7 elements, got %d", cfg.ElementCount)
	}
	if cfg.DefaultVendor() != narrative.VendorClaude {
		t.Errorf("expected claude, got %q", cfg.DefaultVendor())
	}

	llm := cfg.LLMConfig(narrative.VendorClaude, "")
	if llm.APIKey != "sk-env" || llm.Timeout != 5*time.Second {
		t.Errorf("unexpected LLM config %+v", llm)
	}
	if llm.Model != "claude-3-haiku-20240307" {
		t.Errorf("expected default model, got %q", llm.Model)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"ELEMENT_COUNT":   "0",
		"WORD_COUNT":      "-1",
		"VENDOR":          "llama",
		"PROMPT_TEMPLATE": "haiku",
		"VENDOR_TIMEOUT":  "soon",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig for %s=%s, got %v", key, value, err)
			}
		})
	}
}

func TestLLMConfig_ExplicitKeyAndOverrides(t *testing.T) {
	cfg := &Config{
		VendorTimeout:     10 * time.Second,
		VendorMaxTokens:   500,
		VendorTemperature: 0.5,
		GeminiAPIKey:      "from-env",
		GeminiModel:       "gemini-1.5-flash",
		GeminiBaseURL:     "http://localhost:9999",
	}

	llm := cfg.LLMConfig(narrative.VendorGemini, "from-request")
	if llm.APIKey != "from-request" {
		t.Errorf("explicit key should win, got %q", llm.APIKey)
	}
	if llm.Model != "gemini-1.5-flash" || llm.BaseURL != "http://localhost:9999" {
		t.Errorf("unexpected overrides %+v", llm)
	}
	if llm.MaxTokens != 500 || llm.Temperature != 0.5 {
		t.Errorf("unexpected generation settings %+v", llm)
	}
}

func TestLogger(t *testing.T) {
	cfg := &Config{LogLevel: "debug", LogEncoding: "json", LogOutput: "/tmp/x.log"}
	lc := cfg.Logger()
	if lc.Level != "debug" || lc.Encoding != "json" || lc.OutputPath != "/tmp/x.log" {
		t.Errorf("unexpected logger config %+v", lc)
	}
}
