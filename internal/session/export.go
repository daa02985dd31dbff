package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Yates-Labs/storyprompt/internal/catalogue"
	"github.com/Yates-Labs/storyprompt/internal/i18n"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// ExportFormat represents supported export formats
type ExportFormat string

const (
	FormatText ExportFormat = "text"
	FormatJSON ExportFormat = "json"
)

// separatorWidth is the length of the "=" line closing each story in text exports.
const separatorWidth = 80

// ParseFormat maps a name to an ExportFormat. The empty string selects FormatText.
func ParseFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", "txt", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s (supported: text, json)", ErrUnsupportedFormat, s)
	}
}

// StoryExport is a story record ranked for export.
type StoryExport struct {
	Rank      int                 `json:"rank"`
	Rating    int                 `json:"rating"`
	Stars     string              `json:"stars"`
	ID        string              `json:"id"`
	Vendor    string              `json:"vendor"`
	Model     string              `json:"model"`
	CreatedAt time.Time           `json:"created_at"`
	WordCount int                 `json:"word_count"`
	Elements  []catalogue.Element `json:"elements"`
	Story     string              `json:"story"`
	Prompt    string              `json:"prompt"`
}

// Export writes the session's stories to w, highest rated first.
func (s *Session) Export(w io.Writer, format ExportFormat, now time.Time) error {
	s.mu.Lock()
	stories := sortedByRating(s.stories)
	lang := s.lang
	s.mu.Unlock()

	return ExportStories(stories, format, lang, now, w)
}

// Download renders the text export with its file name and then clears the stories.
func (s *Session) Download(now time.Time) (filename string, data []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if len(s.stories) == 0 {
		return "", nil, ErrNoStory
	}
	stories := sortedByRating(s.stories)

	var buf bytes.Buffer
	if err := ExportStories(stories, FormatText, s.lang, now, &buf); err != nil {
		return "", nil, err
	}
	filename = DownloadFilename(stories, s.lang, now)

	s.stories = nil
	s.lastID = ""
	return filename, buf.Bytes(), nil
}

// ExportStories writes stories in the given format. stories must already be ordered.
func ExportStories(stories []StoryRecord, format ExportFormat, lang language.Tag, now time.Time, writer io.Writer) error {
	exports := make([]StoryExport, len(stories))
	for i, r := range stories {
		exports[i] = enrichStory(i+1, r, lang)
	}

	switch format {
	case FormatText:
		return exportText(exports, lang, now, writer)
	case FormatJSON:
		return exportJSON(exports, writer)
	default:
		return fmt.Errorf("%w: %s (supported: text, json)", ErrUnsupportedFormat, format)
	}
}

func enrichStory(rank int, r StoryRecord, lang language.Tag) StoryExport {
	return StoryExport{
		Rank:      rank,
		Rating:    r.Rating,
		Stars:     Stars(r.Rating, lang),
		ID:        r.ID,
		Vendor:    string(r.Vendor),
		Model:     r.Model,
		CreatedAt: r.CreatedAt,
		WordCount: r.WordCount,
		Elements:  r.Elements,
		Story:     r.Story,
		Prompt:    r.Prompt,
	}
}

// Stars renders a rating as repeated star marks; zero renders as "".
func Stars(rating int, lang language.Tag) string {
	if rating <= 0 {
		return ""
	}
	return strings.Repeat(i18n.Text(lang, "rating.star"), rating)
}

// RatingLabel is Stars with the localized "unrated" text for zero.
func RatingLabel(rating int, lang language.Tag) string {
	if rating <= 0 {
		return i18n.Text(lang, "rating.unrated")
	}
	return Stars(rating, lang)
}

func exportText(exports []StoryExport, lang language.Tag, now time.Time, writer io.Writer) error {
	p := i18n.Printer(lang)
	var b strings.Builder

	b.WriteString(p.Sprintf("export.title"))
	b.WriteString("\n")
	b.WriteString(p.Sprintf("export.generated_at", now.Format(p.Sprintf("export.timestamp_layout"))))
	b.WriteString("\n")
	b.WriteString(p.Sprintf("export.count", strconv.Itoa(len(exports))))
	b.WriteString("\n\n")

	for _, ex := range exports {
		writeStoryText(&b, p, ex)
	}

	_, err := io.WriteString(writer, b.String())
	return err
}

func writeStoryText(b *strings.Builder, p *message.Printer, ex StoryExport) {
	b.WriteString(strings.TrimRight(p.Sprintf("export.story_heading", strconv.Itoa(ex.Rank), ex.Stars), " "))
	b.WriteString("\n")
	b.WriteString(p.Sprintf("export.story_time", ex.CreatedAt.Format(p.Sprintf("export.time_layout"))))
	b.WriteString("\n")
	b.WriteString(p.Sprintf("export.element_count", strconv.Itoa(len(ex.Elements))))
	b.WriteString("\n\n")

	b.WriteString(p.Sprintf("export.elements_heading"))
	b.WriteString("\n")
	for j, el := range ex.Elements {
		fmt.Fprintf(b, "%d. %s %s\n", j+1, el.Group, el.Variant)
	}
	b.WriteString("\n")

	b.WriteString(p.Sprintf("export.story_text_heading"))
	b.WriteString("\n")
	b.WriteString(ex.Story)
	b.WriteString("\n\n")
	b.WriteString(strings.Repeat("=", separatorWidth))
	b.WriteString("\n\n")
}

// exportJSON writes stories as JSON
func exportJSON(exports []StoryExport, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exports)
}
