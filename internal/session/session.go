// Package session holds the per-user interactive state: the current story elements,
// the variants already drawn, and the stories generated so far with their ratings.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Yates-Labs/storyprompt/internal/catalogue"
	"github.com/Yates-Labs/storyprompt/internal/i18n"
	"github.com/Yates-Labs/storyprompt/internal/narrative"
	"github.com/Yates-Labs/storyprompt/internal/prompt"
	"github.com/Yates-Labs/storyprompt/internal/sampler"
	"github.com/google/uuid"
	"golang.org/x/text/language"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrIndexOutOfRange    = errors.New("element index out of range")
	ErrNoElementAvailable = errors.New("no unused story element available")
	ErrNoElements         = errors.New("at least one story element is required")
	ErrInvalidRating      = errors.New("rating must be between 0 and 5")
	ErrNoStory            = errors.New("no story available")
)

const (
	// MaxRating is the highest star rating a story can receive.
	MaxRating = 5

	// DefaultElementCount is how many elements a new session starts with.
	DefaultElementCount = 5
)

// StoryGenerator turns a finished prompt into a story.
// *narrative.Generator satisfies it.
type StoryGenerator interface {
	Generate(ctx context.Context, prompt string) (*narrative.Story, error)
}

// StoryRecord is one generated story kept for rating and download.
type StoryRecord struct {
	ID        string              `json:"id"`
	Story     string              `json:"story"`
	Elements  []catalogue.Element `json:"elements"`
	Prompt    string              `json:"prompt"`
	Vendor    narrative.Vendor    `json:"vendor"`
	Model     string              `json:"model"`
	CreatedAt time.Time           `json:"created_at"`
	WordCount int                 `json:"word_count"`
	Rating    int                 `json:"rating"`
}

// ElementView is a current element as presented to the user.
type ElementView struct {
	Index   int    `json:"index"`
	Group   string `json:"group"`
	Variant string `json:"variant"`
	Text    string `json:"text"`
	Edited  bool   `json:"edited"`
}

type entry struct {
	element catalogue.Element
	text    string
}

func (e entry) edited() bool {
	return strings.TrimSpace(e.text) != strings.TrimSpace(e.element.Variant)
}

// Session is the interactive context of one user. All methods are safe for
// concurrent use; a vendor call runs without holding the session lock.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.Mutex
	catalogue  *catalogue.Catalogue
	sampler    *sampler.Sampler
	names      *prompt.NameGenerator
	lang       language.Tag
	entries    []entry
	used       sampler.UsedSet
	stories    []StoryRecord
	lastID     string
	lastAccess time.Time
	now        func() time.Time
}

// New creates a session over cat that draws from smp. The element list starts empty.
func New(cat *catalogue.Catalogue, smp *sampler.Sampler, lang language.Tag) *Session {
	now := time.Now()
	return &Session{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		catalogue:  cat,
		sampler:    smp,
		names:      prompt.NewNameGenerator(smp.Source()),
		lang:       lang,
		used:       sampler.NewUsedSet(),
		lastAccess: now,
		now:        time.Now,
	}
}

// Language returns the session's display language.
func (s *Session) Language() language.Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lang
}

// SetLanguage changes the display language for later prompts and exports.
func (s *Session) SetLanguage(tag language.Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lang = tag
}

// LastAccess reports when the session was last touched.
func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

func (s *Session) touch() {
	s.lastAccess = s.now()
}

// Resample replaces every current element with a fresh draw of count elements.
// The used set restarts from the new draw. Fewer than count elements may come back.
func (s *Session) Resample(count int) []ElementView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	drawn := s.sampler.Sample(s.catalogue.Groups, count)
	s.entries = make([]entry, len(drawn))
	for i, el := range drawn {
		s.entries[i] = entry{element: el, text: el.Variant}
	}
	s.used = sampler.NewUsedSet(drawn...)
	return s.viewsLocked()
}

// AddElement appends one element whose variant is not in use.
func (s *Session) AddElement() (ElementView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	el, ok := s.sampler.SampleOne(s.catalogue.Groups, s.used)
	if !ok {
		return ElementView{}, ErrNoElementAvailable
	}
	s.entries = append(s.entries, entry{element: el, text: el.Variant})
	s.used.Add(el.Variant)
	return s.viewLocked(len(s.entries) - 1), nil
}

// RemoveElement deletes the element at index and frees its variant.
func (s *Session) RemoveElement(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if err := s.checkIndexLocked(index); err != nil {
		return err
	}
	s.used.Remove(s.entries[index].element.Variant)
	s.entries = slices.Delete(s.entries, index, index+1)
	return nil
}

// EditElement replaces the text of the element at index. Setting the text back to
// the original variant clears the edited state.
func (s *Session) EditElement(index int, text string) (ElementView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if err := s.checkIndexLocked(index); err != nil {
		return ElementView{}, err
	}
	s.entries[index].text = text
	return s.viewLocked(index), nil
}

// Elements returns the current elements in order.
func (s *Session) Elements() []ElementView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewsLocked()
}

// PromptElements returns the elements as they go into a prompt. Edited entries
// carry the localized edited label as their group; blank entries are skipped.
func (s *Session) PromptElements() []catalogue.Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promptElementsLocked()
}

func (s *Session) promptElementsLocked() []catalogue.Element {
	label := i18n.Text(s.lang, "session.edited_group")
	out := make([]catalogue.Element, 0, len(s.entries))
	for _, e := range s.entries {
		text := strings.TrimSpace(e.text)
		if text == "" {
			continue
		}
		if e.edited() {
			out = append(out, catalogue.Element{Group: label, Variant: text})
			continue
		}
		out = append(out, e.element)
	}
	return out
}

// BuildPrompt renders the current elements with params using tmpl.
func (s *Session) BuildPrompt(params prompt.Params, tmpl prompt.Template) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	p, _, err := s.buildPromptLocked(params, tmpl)
	return p, err
}

func (s *Session) buildPromptLocked(params prompt.Params, tmpl prompt.Template) (string, []catalogue.Element, error) {
	if err := params.Validate(); err != nil {
		return "", nil, err
	}
	elements := s.promptElementsLocked()
	if len(elements) == 0 {
		return "", nil, ErrNoElements
	}
	return prompt.NewAssembler(s.lang, tmpl).Assemble(elements, params), elements, nil
}

// Generate builds the prompt, asks gen for a story and records the result as the
// latest story. On failure nothing is recorded.
func (s *Session) Generate(ctx context.Context, gen StoryGenerator, params prompt.Params, tmpl prompt.Template) (StoryRecord, error) {
	s.mu.Lock()
	s.touch()
	text, elements, err := s.buildPromptLocked(params, tmpl)
	s.mu.Unlock()
	if err != nil {
		return StoryRecord{}, err
	}

	story, err := gen.Generate(ctx, text)
	if err != nil {
		return StoryRecord{}, err
	}

	record := StoryRecord{
		ID:        uuid.NewString(),
		Story:     story.Text,
		Elements:  elements,
		Prompt:    text,
		Vendor:    story.Vendor,
		Model:     story.Model,
		CreatedAt: story.GeneratedAt,
		WordCount: params.WordCount,
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stories = append(s.stories, record)
	s.lastID = record.ID
	return cloneRecord(record), nil
}

// Rate sets the rating of the latest story.
func (s *Session) Rate(rating int) (StoryRecord, error) {
	s.mu.Lock()
	id := s.lastID
	s.mu.Unlock()
	if id == "" {
		return StoryRecord{}, ErrNoStory
	}
	return s.RateStory(id, rating)
}

// RateStory sets the rating of the story with the given id.
func (s *Session) RateStory(id string, rating int) (StoryRecord, error) {
	if rating < 0 || rating > MaxRating {
		return StoryRecord{}, fmt.Errorf("%w: got %d", ErrInvalidRating, rating)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	for i := range s.stories {
		if s.stories[i].ID == id {
			s.stories[i].Rating = rating
			return cloneRecord(s.stories[i]), nil
		}
	}
	return StoryRecord{}, fmt.Errorf("%w: %s", ErrNoStory, id)
}

// Last returns the most recently generated story.
func (s *Session) Last() (StoryRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.stories {
		if r.ID == s.lastID {
			return cloneRecord(r), true
		}
	}
	return StoryRecord{}, false
}

// Stories returns every recorded story ordered by rating, highest first.
// Stories with equal ratings keep their generation order.
func (s *Session) Stories() []StoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedByRating(s.stories)
}

// ResetStories discards every recorded story and the latest result.
func (s *Session) ResetStories() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.stories = nil
	s.lastID = ""
}

// Names returns n generated character names.
func (s *Session) Names(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.names.Names(n)
}

func (s *Session) checkIndexLocked(index int) error {
	if index < 0 || index >= len(s.entries) {
		return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(s.entries))
	}
	return nil
}

func (s *Session) viewsLocked() []ElementView {
	views := make([]ElementView, len(s.entries))
	for i := range s.entries {
		views[i] = s.viewLocked(i)
	}
	return views
}

func (s *Session) viewLocked(i int) ElementView {
	e := s.entries[i]
	return ElementView{
		Index:   i,
		Group:   e.element.Group,
		Variant: e.element.Variant,
		Text:    e.text,
		Edited:  e.edited(),
	}
}

func sortedByRating(stories []StoryRecord) []StoryRecord {
	out := make([]StoryRecord, len(stories))
	for i, r := range stories {
		out[i] = cloneRecord(r)
	}
	slices.SortStableFunc(out, func(a, b StoryRecord) int {
		return b.Rating - a.Rating
	})
	return out
}

func cloneRecord(r StoryRecord) StoryRecord {
	r.Elements = slices.Clone(r.Elements)
	return r
}
