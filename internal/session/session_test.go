package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Yates-Labs/storyprompt/internal/catalogue"
	"github.com/Yates-Labs/storyprompt/internal/i18n"
	"github.com/Yates-Labs/storyprompt/internal/narrative"
	"github.com/Yates-Labs/storyprompt/internal/prompt"
	"github.com/Yates-Labs/storyprompt/internal/sampler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalogue() *catalogue.Catalogue {
	return &catalogue.Catalogue{
		Groups: []catalogue.Group{
			{Name: "【魔法】", Variants: []string{"呪文", "魔法陣", "使い魔"}},
			{Name: "【時間】", Variants: []string{"過去", "未来"}},
			{Name: "【機械】", Variants: []string{"歯車", "ロボット", "時計"}},
		},
		Source: "test",
	}
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return New(testCatalogue(), sampler.NewSeeded(42), i18n.Japanese)
}

type stubGenerator struct {
	mu      sync.Mutex
	text    string
	err     error
	prompts []string
}

func (g *stubGenerator) Generate(_ context.Context, p string) (*narrative.Story, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, p)
	if g.err != nil {
		return nil, g.err
	}
	return &narrative.Story{
		Text:        g.text,
		Vendor:      narrative.VendorDemo,
		Model:       "demo",
		GeneratedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}, nil
}

var defaultParams = prompt.Params{WordCount: 1200, Genre: "SF", Ending: "意外"}

func TestSession_ResampleDrawsDistinctVariants(t *testing.T) {
	s := newTestSession(t)
	views := s.Resample(5)

	require.NotEmpty(t, views)
	seen := map[string]bool{}
	for i, v := range views {
		assert.Equal(t, i, v.Index)
		assert.False(t, v.Edited)
		assert.Equal(t, v.Variant, v.Text)
		assert.False(t, seen[v.Variant], "variant %q repeated", v.Variant)
		seen[v.Variant] = true
	}
	assert.Equal(t, len(views), s.used.Len())
}

func TestSession_ResampleResetsUsedSet(t *testing.T) {
	s := newTestSession(t)
	s.Resample(3)
	views := s.Resample(2)
	assert.Equal(t, len(views), s.used.Len())
}

func TestSession_AddElementAvoidsUsed(t *testing.T) {
	s := newTestSession(t)
	s.Resample(2)

	before := map[string]bool{}
	for _, v := range s.Elements() {
		before[v.Variant] = true
	}

	added, err := s.AddElement()
	require.NoError(t, err)
	assert.False(t, before[added.Variant])
	assert.Equal(t, len(before), added.Index)
	assert.True(t, s.used.Has(added.Variant))
}

func TestSession_AddElementWhenExhausted(t *testing.T) {
	cat := &catalogue.Catalogue{Groups: []catalogue.Group{{Name: "A", Variants: []string{"only"}}}}
	s := New(cat, sampler.NewSeeded(1), i18n.English)

	_, err := s.AddElement()
	require.NoError(t, err)

	_, err = s.AddElement()
	assert.ErrorIs(t, err, ErrNoElementAvailable)
	assert.Len(t, s.Elements(), 1)
}

func TestSession_RemoveElementFreesVariant(t *testing.T) {
	s := newTestSession(t)
	s.Resample(3)
	removed := s.Elements()[1]

	require.NoError(t, s.RemoveElement(1))

	views := s.Elements()
	assert.Len(t, views, 2)
	assert.False(t, s.used.Has(removed.Variant))
	for i, v := range views {
		assert.Equal(t, i, v.Index)
		assert.NotEqual(t, removed.Variant, v.Variant)
	}
}

func TestSession_IndexOutOfRange(t *testing.T) {
	s := newTestSession(t)
	s.Resample(2)

	assert.ErrorIs(t, s.RemoveElement(5), ErrIndexOutOfRange)
	assert.ErrorIs(t, s.RemoveElement(-1), ErrIndexOutOfRange)
	_, err := s.EditElement(2, "x")
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestSession_EditElement(t *testing.T) {
	s := newTestSession(t)
	s.Resample(2)
	original := s.Elements()[0]

	view, err := s.EditElement(0, "  書き換えた要素  ")
	require.NoError(t, err)
	assert.True(t, view.Edited)

	els := s.PromptElements()
	require.Len(t, els, 2)
	assert.Equal(t, catalogue.Element{Group: "【編集済み】", Variant: "書き換えた要素"}, els[0])

	view, err = s.EditElement(0, original.Variant)
	require.NoError(t, err)
	assert.False(t, view.Edited)
	assert.Equal(t, catalogue.Element{Group: original.Group, Variant: original.Variant}, s.PromptElements()[0])
}

func TestSession_PaddedVariantIsNotEdited(t *testing.T) {
	cat := &catalogue.Catalogue{
		Groups: []catalogue.Group{{Name: "【場所】", Variants: []string{" 灯台 "}}},
		Source: "test",
	}
	s := New(cat, sampler.NewSeeded(1), i18n.Japanese)
	views := s.Resample(1)
	require.Len(t, views, 1)
	assert.False(t, views[0].Edited)
	assert.Equal(t, "【場所】", s.PromptElements()[0].Group)

	view, err := s.EditElement(0, "灯台")
	require.NoError(t, err)
	assert.False(t, view.Edited)
	assert.Equal(t, "【場所】", s.PromptElements()[0].Group)
}

func TestSession_PromptElementsSkipBlank(t *testing.T) {
	s := newTestSession(t)
	s.Resample(2)
	_, err := s.EditElement(1, "   ")
	require.NoError(t, err)

	assert.Len(t, s.PromptElements(), 1)
}

func TestSession_EditedLabelFollowsLanguage(t *testing.T) {
	s := newTestSession(t)
	s.Resample(1)
	s.SetLanguage(i18n.English)
	_, err := s.EditElement(0, "custom")
	require.NoError(t, err)

	assert.Equal(t, "[Edited]", s.PromptElements()[0].Group)
}

func TestSession_BuildPrompt(t *testing.T) {
	s := newTestSession(t)
	s.Resample(3)

	p, err := s.BuildPrompt(defaultParams, prompt.TemplateStory)
	require.NoError(t, err)
	for _, el := range s.PromptElements() {
		assert.Contains(t, p, el.Group+" "+el.Variant)
	}
}

func TestSession_BuildPromptErrors(t *testing.T) {
	s := newTestSession(t)

	_, err := s.BuildPrompt(defaultParams, prompt.TemplateShortShort)
	assert.ErrorIs(t, err, ErrNoElements)

	s.Resample(2)
	_, err = s.BuildPrompt(prompt.Params{WordCount: 0}, prompt.TemplateShortShort)
	assert.ErrorIs(t, err, prompt.ErrInvalidWordCount)
}

func TestSession_GenerateRecordsStory(t *testing.T) {
	s := newTestSession(t)
	s.Resample(3)
	gen := &stubGenerator{text: "「題」\n本文"}

	rec, err := s.Generate(context.Background(), gen, defaultParams, prompt.TemplateShortShort)
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "「題」\n本文", rec.Story)
	assert.Equal(t, 1200, rec.WordCount)
	assert.Equal(t, 0, rec.Rating)
	assert.Equal(t, s.PromptElements(), rec.Elements)
	require.Len(t, gen.prompts, 1)
	assert.Equal(t, gen.prompts[0], rec.Prompt)

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, rec.ID, last.ID)
	assert.Len(t, s.Stories(), 1)
}

func TestSession_GenerateFailureRecordsNothing(t *testing.T) {
	s := newTestSession(t)
	s.Resample(2)
	gen := &stubGenerator{err: &narrative.GenerationFailure{Vendor: narrative.VendorClaude, StatusCode: 500}}

	_, err := s.Generate(context.Background(), gen, defaultParams, prompt.TemplateShortShort)
	assert.True(t, errors.Is(err, narrative.ErrGenerationFailed))
	assert.Empty(t, s.Stories())
	_, ok := s.Last()
	assert.False(t, ok)
}

func TestSession_GenerateWithoutElements(t *testing.T) {
	s := newTestSession(t)
	gen := &stubGenerator{text: "x"}

	_, err := s.Generate(context.Background(), gen, defaultParams, prompt.TemplateShortShort)
	assert.ErrorIs(t, err, ErrNoElements)
	assert.Empty(t, gen.prompts)
}

func TestSession_RatingValidation(t *testing.T) {
	s := newTestSession(t)

	_, err := s.Rate(3)
	assert.ErrorIs(t, err, ErrNoStory)

	s.Resample(2)
	_, err = s.Generate(context.Background(), &stubGenerator{text: "x"}, defaultParams, prompt.TemplateShortShort)
	require.NoError(t, err)

	for _, bad := range []int{-1, 6} {
		_, err := s.Rate(bad)
		assert.ErrorIs(t, err, ErrInvalidRating)
	}

	rec, err := s.Rate(5)
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Rating)

	last, _ := s.Last()
	assert.Equal(t, 5, last.Rating)
}

func TestSession_RateStoryUnknownID(t *testing.T) {
	s := newTestSession(t)
	_, err := s.RateStory("missing", 2)
	assert.ErrorIs(t, err, ErrNoStory)
}

func TestSession_StoriesSortedByRatingStable(t *testing.T) {
	s := newTestSession(t)
	s.Resample(2)
	gen := &stubGenerator{}

	ratings := []int{2, 0, 5, 2}
	ids := make([]string, len(ratings))
	for i, r := range ratings {
		gen.text = string(rune('a' + i))
		rec, err := s.Generate(context.Background(), gen, defaultParams, prompt.TemplateShortShort)
		require.NoError(t, err)
		_, err = s.RateStory(rec.ID, r)
		require.NoError(t, err)
		ids[i] = rec.ID
	}

	stories := s.Stories()
	require.Len(t, stories, 4)
	assert.Equal(t, []string{ids[2], ids[0], ids[3], ids[1]},
		[]string{stories[0].ID, stories[1].ID, stories[2].ID, stories[3].ID})
}

func TestSession_StoriesAreCopies(t *testing.T) {
	s := newTestSession(t)
	s.Resample(2)
	_, err := s.Generate(context.Background(), &stubGenerator{text: "x"}, defaultParams, prompt.TemplateShortShort)
	require.NoError(t, err)

	stories := s.Stories()
	stories[0].Rating = 4
	stories[0].Elements[0].Variant = "mutated"

	fresh := s.Stories()
	assert.Equal(t, 0, fresh[0].Rating)
	assert.NotEqual(t, "mutated", fresh[0].Elements[0].Variant)
}

func TestSession_ResetStories(t *testing.T) {
	s := newTestSession(t)
	s.Resample(2)
	_, err := s.Generate(context.Background(), &stubGenerator{text: "x"}, defaultParams, prompt.TemplateShortShort)
	require.NoError(t, err)

	s.ResetStories()

	assert.Empty(t, s.Stories())
	_, ok := s.Last()
	assert.False(t, ok)
	assert.Len(t, s.Elements(), 2, "reset keeps the current elements")
}

func TestSession_Names(t *testing.T) {
	s := newTestSession(t)
	names := s.Names(3)
	assert.Len(t, names, 3)
}
