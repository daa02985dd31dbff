package narrative

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// maxResponseBytes caps how much of a vendor response is read.
const maxResponseBytes = 8 << 20

// ClaudeLLM calls the Anthropic messages API.
type ClaudeLLM struct {
	config LLMConfig
}

func newClaudeLLM(cfg LLMConfig) *ClaudeLLM {
	return &ClaudeLLM{config: cfg}
}

// Generate sends the prompt as a single user message.
func (c *ClaudeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	body := []byte(`{}`)
	body, _ = sjson.SetBytes(body, "model", c.config.Model)
	body, _ = sjson.SetBytes(body, "max_tokens", c.config.MaxTokens)
	body, _ = sjson.SetRawBytes(body, "temperature", temperatureJSON(c.config.Temperature))
	body, err := sjson.SetBytes(body, "messages", []map[string]string{
		{"role": "user", "content": prompt},
	})
	if err != nil {
		return "", &GenerationFailure{Vendor: VendorClaude, Reason: err.Error(), Err: err}
	}

	headers := http.Header{}
	headers.Set("x-api-key", c.config.APIKey)
	headers.Set("anthropic-version", "2023-06-01")

	return postJSON(ctx, c.config, c.config.BaseURL+"/messages", headers, body, "content.0.text")
}

// GeminiLLM calls the Google generative language API.
type GeminiLLM struct {
	config LLMConfig
}

func newGeminiLLM(cfg LLMConfig) *GeminiLLM {
	return &GeminiLLM{config: cfg}
}

// Generate sends the prompt as a single content part.
func (g *GeminiLLM) Generate(ctx context.Context, prompt string) (string, error) {
	body := []byte(`{}`)
	body, _ = sjson.SetRawBytes(body, "generationConfig.temperature", temperatureJSON(g.config.Temperature))
	body, _ = sjson.SetBytes(body, "generationConfig.maxOutputTokens", g.config.MaxTokens)
	body, err := sjson.SetBytes(body, "contents", []map[string]any{
		{"parts": []map[string]string{{"text": prompt}}},
	})
	if err != nil {
		return "", &GenerationFailure{Vendor: VendorGemini, Reason: err.Error(), Err: err}
	}

	// The key travels in a header so transport errors, which quote the URL, never expose it.
	headers := http.Header{}
	headers.Set("x-goog-api-key", g.config.APIKey)

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.config.BaseURL, url.PathEscape(g.config.Model))
	return postJSON(ctx, g.config, endpoint, headers, body, "candidates.0.content.parts.0.text")
}

// postJSON performs one POST and extracts textPath from a 2xx JSON response.
func postJSON(ctx context.Context, cfg LLMConfig, endpoint string, headers http.Header, body []byte, textPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &GenerationFailure{Vendor: cfg.Vendor, Reason: err.Error(), Err: err}
	}
	req.Header = headers
	req.Header.Set("Content-Type", "application/json")

	resp, err := cfg.HTTPClient.Do(req)
	if err != nil {
		return "", transportFailure(ctx, cfg.Vendor, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", transportFailure(ctx, cfg.Vendor, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &GenerationFailure{
			Vendor:     cfg.Vendor,
			StatusCode: resp.StatusCode,
			Reason:     vendorErrorMessage(data),
		}
	}

	text := gjson.GetBytes(data, textPath)
	if !text.Exists() || text.Type != gjson.String {
		return "", &GenerationFailure{Vendor: cfg.Vendor, Reason: "response did not contain generated text"}
	}
	return text.String(), nil
}

// temperatureJSON renders t with float32 precision so 0.9 stays 0.9 on the wire.
func temperatureJSON(t float32) []byte {
	return strconv.AppendFloat(nil, float64(t), 'f', -1, 32)
}

// vendorErrorMessage pulls error.message out of an error body if present.
func vendorErrorMessage(data []byte) string {
	if !gjson.ValidBytes(data) {
		return ""
	}
	return strings.TrimSpace(gjson.GetBytes(data, "error.message").String())
}
