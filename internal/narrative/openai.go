package narrative

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAILLM implements the LLM interface using the chat completions API.
// It serves both OpenAI and Grok, whose API is wire-compatible.
type OpenAILLM struct {
	client openai.Client
	config LLMConfig
}

// NewOpenAILLM creates an OpenAI-compatible LLM implementation.
// Returns an error if the API key or model is missing.
func NewOpenAILLM(config LLMConfig) (*OpenAILLM, error) {
	if config.Vendor == "" {
		config.Vendor = VendorOpenAI
	}
	config = config.withDefaults()
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: missing API key", ErrInvalidConfig)
	}
	if config.Model == "" {
		return nil, fmt.Errorf("%w: missing model name", ErrInvalidConfig)
	}

	client := openai.NewClient(
		option.WithAPIKey(config.APIKey),
		option.WithBaseURL(config.BaseURL+"/"),
		option.WithHTTPClient(config.HTTPClient),
		option.WithMaxRetries(0),
	)

	return &OpenAILLM{
		client: client,
		config: config,
	}, nil
}

// Generate sends the prompt as a single user message and returns the first choice.
func (o *OpenAILLM) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(o.config.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(float32To64(o.config.Temperature)),
		MaxTokens:   openai.Int(int64(o.config.MaxTokens)),
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			reason := strings.TrimSpace(apiErr.Message)
			if reason == "" {
				reason = vendorErrorMessage([]byte(apiErr.RawJSON()))
			}
			return "", &GenerationFailure{
				Vendor:     o.config.Vendor,
				StatusCode: apiErr.StatusCode,
				Reason:     reason,
				Err:        err,
			}
		}
		return "", transportFailure(ctx, o.config.Vendor, err)
	}

	if len(completion.Choices) == 0 {
		return "", &GenerationFailure{Vendor: o.config.Vendor, Reason: "no response generated"}
	}

	return completion.Choices[0].Message.Content, nil
}

// float32To64 widens f without exposing float32 rounding noise (0.9 stays 0.9).
func float32To64(f float32) float64 {
	v, _ := strconv.ParseFloat(strconv.FormatFloat(float64(f), 'f', -1, 32), 64)
	return v
}
