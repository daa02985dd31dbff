// Package prompt renders sampled story elements and user parameters into the
// instruction text sent to a language model.
package prompt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Yates-Labs/storyprompt/internal/catalogue"
	"github.com/Yates-Labs/storyprompt/internal/i18n"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	ErrInvalidWordCount = errors.New("word count must be positive")
	ErrUnknownTemplate  = errors.New("unknown prompt template")
)

// Template selects the framing text around the parameter and element lists.
type Template string

const (
	// TemplateShortShort asks for a twist-ending short-short story.
	TemplateShortShort Template = "shortshort"
	// TemplateStory is the general story-writing instruction.
	TemplateStory Template = "story"
)

// ParseTemplate maps a name to a Template. The empty string selects TemplateShortShort.
func ParseTemplate(s string) (Template, error) {
	switch Template(strings.ToLower(strings.TrimSpace(s))) {
	case "", TemplateShortShort:
		return TemplateShortShort, nil
	case TemplateStory:
		return TemplateStory, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTemplate, s)
	}
}

// Params are the caller-chosen settings rendered into the prompt.
type Params struct {
	WordCount  int      `json:"word_count"`
	Genre      string   `json:"genre"`
	Ending     string   `json:"ending"`
	Characters []string `json:"characters,omitempty"`
}

// Validate checks the only hard requirement: a positive word count.
func (p Params) Validate() error {
	if p.WordCount <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidWordCount, p.WordCount)
	}
	return nil
}

// Assembler renders prompts in one language with one template.
// It holds no mutable state and is safe for concurrent use.
type Assembler struct {
	tag      language.Tag
	template Template
	printer  *message.Printer
}

// NewAssembler creates an assembler for the given language and template.
func NewAssembler(tag language.Tag, tmpl Template) *Assembler {
	if tmpl == "" {
		tmpl = TemplateShortShort
	}
	return &Assembler{
		tag:      tag,
		template: tmpl,
		printer:  i18n.Printer(tag),
	}
}

// Template returns the template this assembler renders.
func (a *Assembler) Template() Template { return a.template }

// Language returns the language this assembler renders in.
func (a *Assembler) Language() language.Tag { return a.tag }

// Assemble renders the prompt. Elements are listed 1-based in input order.
// An empty element list still yields a complete prompt with an empty list.
func (a *Assembler) Assemble(elements []catalogue.Element, params Params) string {
	switch a.template {
	case TemplateStory:
		return a.assembleStory(elements, params)
	default:
		return a.assembleShortShort(elements, params)
	}
}

func (a *Assembler) assembleShortShort(elements []catalogue.Element, params Params) string {
	var b strings.Builder

	b.WriteString(a.text("prompt.shortshort.header"))
	b.WriteString("\n\n")

	b.WriteString(a.text("prompt.shortshort.params_heading"))
	b.WriteString("\n")
	a.writeParams(&b, params)
	b.WriteString("\n")

	b.WriteString(a.text("prompt.shortshort.elements_heading"))
	b.WriteString("\n")
	writeElements(&b, elements)
	b.WriteString("\n")

	b.WriteString(a.text("prompt.shortshort.closing"))
	return b.String()
}

func (a *Assembler) assembleStory(elements []catalogue.Element, params Params) string {
	var b strings.Builder

	b.WriteString(a.text("prompt.story.header"))
	b.WriteString("\n\n")

	b.WriteString(a.text("prompt.story.params_heading"))
	b.WriteString("\n")
	a.writeParams(&b, params)
	b.WriteString("\n")

	b.WriteString(a.text("prompt.story.elements_heading"))
	b.WriteString("\n")
	writeElements(&b, elements)
	b.WriteString("\n")

	b.WriteString(a.text("prompt.story.closing", params.Genre))
	if len(params.Characters) > 0 {
		b.WriteString("\n")
		b.WriteString(a.text("prompt.story.closing_characters"))
	}
	b.WriteString("\n")
	b.WriteString(a.text("prompt.story.closing_ending", params.Ending))
	return b.String()
}

func (a *Assembler) writeParams(b *strings.Builder, params Params) {
	fmt.Fprintf(b, "- %s\n", a.text("prompt.param.word_count", strconv.Itoa(params.WordCount)))
	fmt.Fprintf(b, "- %s\n", a.text("prompt.param.genre", params.Genre))
	fmt.Fprintf(b, "- %s\n", a.text("prompt.param.ending", params.Ending))
	if len(params.Characters) > 0 {
		names := strings.Join(params.Characters, a.text("prompt.character_separator"))
		fmt.Fprintf(b, "- %s\n", a.text("prompt.param.characters", names))
	}
}

func writeElements(b *strings.Builder, elements []catalogue.Element) {
	for i, el := range elements {
		fmt.Fprintf(b, "%d. %s %s\n", i+1, el.Group, el.Variant)
	}
}

func (a *Assembler) text(key string, args ...any) string {
	return a.printer.Sprintf(key, args...)
}
