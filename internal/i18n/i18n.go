// Package i18n holds the user-facing wording for prompts, exports and errors.
// Messages are loaded from embedded YAML files into an x/text catalog and are
// looked up by key through a message.Printer for the matched language.
package i18n

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidLocale = errors.New("invalid locale file")
	ErrMissingKey    = errors.New("locale is missing message keys")
)

//go:embed locales/*.yaml
var localeFS embed.FS

var (
	Japanese = language.Japanese
	English  = language.English
)

// supported is ordered by preference; the first entry is the default.
var supported = []language.Tag{Japanese, English}

var (
	matcher = language.NewMatcher(supported)
	bundle  = mustLoad(localeFS)
)

// Bundle is a loaded set of locale catalogs.
type Bundle struct {
	catalog *catalog.Builder
	keys    map[language.Tag][]string
}

type localeFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Load reads every locales/*.yaml file in fsys into a new Bundle. All locales
// must define the same key set.
func Load(fsys fs.FS) (*Bundle, error) {
	files, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLocale, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no locale files found", ErrInvalidLocale)
	}

	b := &Bundle{
		catalog: catalog.NewBuilder(catalog.Fallback(English)),
		keys:    make(map[language.Tag][]string),
	}
	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidLocale, name, err)
		}
		var lf localeFile
		if err := yaml.Unmarshal(data, &lf); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidLocale, name, err)
		}
		if lf.Locale == "" {
			lf.Locale = strings.TrimSuffix(path.Base(name), path.Ext(name))
		}
		tag, err := language.Parse(lf.Locale)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidLocale, name, err)
		}
		keys := make([]string, 0, len(lf.Messages))
		for key, msg := range lf.Messages {
			if err := b.catalog.SetString(tag, key, msg); err != nil {
				return nil, fmt.Errorf("%w: %s: %s: %w", ErrInvalidLocale, name, key, err)
			}
			keys = append(keys, key)
		}
		sort.Strings(keys)
		b.keys[tag] = keys
	}

	if err := b.checkKeys(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bundle) checkKeys() error {
	var reference []string
	var refTag language.Tag
	for tag, keys := range b.keys {
		if reference == nil || len(keys) > len(reference) {
			reference, refTag = keys, tag
		}
	}
	for tag, keys := range b.keys {
		have := make(map[string]struct{}, len(keys))
		for _, k := range keys {
			have[k] = struct{}{}
		}
		var missing []string
		for _, k := range reference {
			if _, ok := have[k]; !ok {
				missing = append(missing, k)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: %s lacks %s defined by %s", ErrMissingKey, tag, strings.Join(missing, ", "), refTag)
		}
	}
	return nil
}

// Keys returns the sorted message keys defined for tag.
func (b *Bundle) Keys(tag language.Tag) []string {
	return append([]string(nil), b.keys[tag]...)
}

// Printer returns a printer bound to this bundle for tag.
func (b *Bundle) Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(b.catalog))
}

func mustLoad(fsys fs.FS) *Bundle {
	b, err := Load(fsys)
	if err != nil {
		panic(err)
	}
	return b
}

// Default is the language used when nothing better matches.
func Default() language.Tag { return supported[0] }

// Supported lists the languages with a built-in locale, default first.
func Supported() []language.Tag {
	return append([]language.Tag(nil), supported...)
}

// Match returns the first supported language named by values. Each value may
// be a plain tag ("en") or an Accept-Language header ("en-US,en;q=0.9").
// Empty or unrecognized values are skipped.
func Match(values ...string) language.Tag {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		tags, _, err := language.ParseAcceptLanguage(v)
		if err != nil || len(tags) == 0 {
			continue
		}
		_, idx, conf := matcher.Match(tags...)
		if conf == language.No {
			continue
		}
		return supported[idx]
	}
	return Default()
}

// Printer returns a printer over the built-in locales.
func Printer(tag language.Tag) *message.Printer {
	return bundle.Printer(tag)
}

// Keys returns the built-in message keys for tag.
func Keys(tag language.Tag) []string {
	return bundle.Keys(tag)
}

// Text looks up key for tag and formats it with args. Numbers should be
// passed as strings to avoid locale digit grouping.
func Text(tag language.Tag, key string, args ...any) string {
	return Printer(tag).Sprintf(key, args...)
}
