package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrGenerationFailed = errors.New("story generation failed")
)

// Story is a generated short story and where it came from.
type Story struct {
	// Text is the generated story content
	Text string `json:"text"`

	// Vendor is the backend that produced the story
	Vendor Vendor `json:"vendor"`

	// Model is the LLM model used to generate this story
	Model string `json:"model"`

	// GeneratedAt is when this story was created
	GeneratedAt time.Time `json:"generated_at"`
}

// Generator produces stories using an LLM.
// It invokes an LLM on an already-assembled prompt.
type Generator struct {
	llm    LLM
	config LLMConfig
	now    func() time.Time
}

// NewGenerator creates a story generator with the given LLM implementation.
func NewGenerator(llm LLM, config LLMConfig) *Generator {
	if config.Model == "" {
		config.Model = config.Vendor.DefaultModel()
	}
	return &Generator{
		llm:    llm,
		config: config,
		now:    time.Now,
	}
}

// Vendor returns the vendor this generator calls.
func (g *Generator) Vendor() Vendor { return g.config.Vendor }

// Generate creates a story by invoking the LLM with an already-assembled prompt.
// It must not perform sampling or prompt construction. Every failure matches
// ErrGenerationFailed; vendor failures arrive as *GenerationFailure.
func (g *Generator) Generate(ctx context.Context, prompt string) (*Story, error) {
	if g.llm == nil {
		return nil, fmt.Errorf("%w: LLM is required", ErrGenerationFailed)
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrGenerationFailed)
	}

	text, err := g.llm.Generate(ctx, prompt)
	if err != nil {
		var failure *GenerationFailure
		if errors.As(err, &failure) {
			return nil, err
		}
		return nil, &GenerationFailure{Vendor: g.config.Vendor, Reason: err.Error(), Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &GenerationFailure{Vendor: g.config.Vendor, Reason: "empty response"}
	}

	return &Story{
		Text:        text,
		Vendor:      g.config.Vendor,
		Model:       g.config.Model,
		GeneratedAt: g.now(),
	}, nil
}
