package narrative

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// elementLine matches a numbered prompt line such as "3. 【魔法】 呪文".
var elementLine = regexp.MustCompile(`^\d+\.\s+(\S+)\s+(.+)$`)

// DemoLLM writes a canned story offline. The same prompt always yields the same text.
type DemoLLM struct{}

// NewDemoLLM creates the offline demo adapter.
func NewDemoLLM() *DemoLLM { return &DemoLLM{} }

// Generate builds a short story from the element lines of the prompt.
func (d *DemoLLM) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", transportFailure(ctx, VendorDemo, err)
	}
	variants := promptVariants(prompt)
	if isJapanese(prompt) {
		return demoStoryJA(variants), nil
	}
	return demoStoryEN(variants), nil
}

func promptVariants(prompt string) []string {
	var variants []string
	for _, line := range strings.Split(prompt, "\n") {
		if m := elementLine.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			variants = append(variants, strings.TrimSpace(m[2]))
		}
	}
	return variants
}

func isJapanese(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Hiragana, unicode.Katakana) {
			return true
		}
	}
	return false
}

func demoStoryJA(variants []string) string {
	var b strings.Builder
	title := "いつもの朝"
	if len(variants) > 0 {
		title = variants[0]
	}
	fmt.Fprintf(&b, "「%s」\n\n", title)
	b.WriteString("その朝、男はいつもと同じ時刻に目を覚ました。\n")
	for _, v := range variants {
		fmt.Fprintf(&b, "やがて彼は「%s」という出来事に出くわした。\n", v)
	}
	b.WriteString("\nすべてが終わったとき、男はようやく気づいた。最初から、自分こそが物語の一部だったのだと。\n")
	return b.String()
}

func demoStoryEN(variants []string) string {
	var b strings.Builder
	title := "An Ordinary Morning"
	if len(variants) > 0 {
		title = variants[0]
	}
	fmt.Fprintf(&b, "\"%s\"\n\n", title)
	b.WriteString("That morning the man woke at the usual hour.\n")
	for _, v := range variants {
		fmt.Fprintf(&b, "Before long he ran into this: %s.\n", v)
	}
	b.WriteString("\nWhen it was all over he finally understood. He had been part of the story from the start.\n")
	return b.String()
}
