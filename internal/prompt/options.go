package prompt

import (
	"github.com/Yates-Labs/storyprompt/internal/i18n"
	"golang.org/x/text/language"
)

// DefaultWordCount is used when the caller does not choose a length.
const DefaultWordCount = 1200

// Option is a selectable genre or ending label.
type Option struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

var (
	genreKeys  = []string{"genre.folktale", "genre.sf", "genre.mystery", "genre.fantasy", "genre.horror"}
	endingKeys = []string{"ending.twist", "ending.natural_surprise", "ending.consistent"}
)

// Genres lists the genre labels offered by the story template.
func Genres(tag language.Tag) []Option { return options(tag, genreKeys) }

// Endings lists the ending-style labels offered by the story template.
func Endings(tag language.Tag) []Option { return options(tag, endingKeys) }

func options(tag language.Tag, keys []string) []Option {
	p := i18n.Printer(tag)
	out := make([]Option, len(keys))
	for i, k := range keys {
		out[i] = Option{Key: k, Label: p.Sprintf(k)}
	}
	return out
}

// Defaults returns the parameters a template uses when the caller leaves them unset.
func Defaults(tag language.Tag, tmpl Template) Params {
	p := i18n.Printer(tag)
	if tmpl == TemplateStory {
		return Params{
			WordCount: DefaultWordCount,
			Genre:     p.Sprintf(genreKeys[0]),
			Ending:    p.Sprintf(endingKeys[0]),
		}
	}
	return Params{
		WordCount: DefaultWordCount,
		Genre:     p.Sprintf("prompt.shortshort.default_genre"),
		Ending:    p.Sprintf("prompt.shortshort.default_ending"),
	}
}

// WithDefaults fills the zero fields of p from Defaults. Characters are left as given.
func (p Params) WithDefaults(tag language.Tag, tmpl Template) Params {
	d := Defaults(tag, tmpl)
	if p.WordCount == 0 {
		p.WordCount = d.WordCount
	}
	if p.Genre == "" {
		p.Genre = d.Genre
	}
	if p.Ending == "" {
		p.Ending = d.Ending
	}
	return p
}
