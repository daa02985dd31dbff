package catalogue

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
)

var (
	ErrEmptyCatalogue   = errors.New("catalogue has no groups")
	ErrInvalidCatalogue = errors.New("invalid catalogue")
)

// DefaultPaths are the candidate catalogue locations tried in order.
var DefaultPaths = []string{
	"story_elements.json",
	"data/story_elements.json",
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

//go:embed default.json
var embeddedCatalogue []byte

// Loader reads the catalogue from the first candidate path that parses,
// falling back to the embedded sample catalogue.
type Loader struct {
	Paths    []string
	Logger   *zap.Logger
	ReadFile func(name string) ([]byte, error)
}

// NewLoader creates a loader for the given candidate paths.
// An empty path list uses DefaultPaths.
func NewLoader(logger *zap.Logger, paths ...string) *Loader {
	if len(paths) == 0 {
		paths = DefaultPaths
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		Paths:    paths,
		Logger:   logger,
		ReadFile: os.ReadFile,
	}
}

// Load never fails: every error is logged and the next candidate is tried.
func (l *Loader) Load() *Catalogue {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	readFile := l.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}

	for _, path := range l.Paths {
		data, err := readFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logger.Debug("catalogue candidate not found", zap.String("path", path))
			} else {
				logger.Warn("failed to read catalogue", zap.String("path", path), zap.Error(err))
			}
			continue
		}

		groups, err := Parse(data)
		if err != nil {
			logger.Warn("failed to parse catalogue", zap.String("path", path), zap.Error(err))
			continue
		}

		logger.Info("catalogue loaded",
			zap.String("path", path),
			zap.Int("groups", len(groups)),
			zap.Int("variants", countVariants(groups)))
		return &Catalogue{Groups: groups, Source: path}
	}

	logger.Warn("no catalogue file could be loaded, using embedded sample data",
		zap.Strings("paths", l.Paths))
	return Embedded()
}

// Embedded returns a fresh copy of the embedded sample catalogue.
func Embedded() *Catalogue {
	groups, err := Parse(embeddedCatalogue)
	if err != nil {
		panic(fmt.Sprintf("embedded catalogue is invalid: %v", err))
	}
	return &Catalogue{Groups: groups, Source: SourceEmbedded, Fallback: true}
}

// Parse decodes a JSON array of {"item", "stars"} records.
func Parse(data []byte) ([]Group, error) {
	var groups []Group
	if err := json.Unmarshal(bytes.TrimPrefix(data, utf8BOM), &groups); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalogue, err)
	}
	if len(groups) == 0 {
		return nil, ErrEmptyCatalogue
	}
	for i, g := range groups {
		if g.Name == "" {
			return nil, fmt.Errorf("%w: group %d has no item name", ErrInvalidCatalogue, i)
		}
	}
	return groups, nil
}
