// Package catalogue holds the story-element catalogue: thematic groups, each carrying
// one or more textual variants, loaded from JSON with an embedded fallback.
package catalogue

// Group is one thematic item of the catalogue together with its variants.
// The JSON field names follow the published story_elements.json format.
type Group struct {
	Name     string   `json:"item"`
	Variants []string `json:"stars"`
}

// Element is a sampled (group, variant) pair.
type Element struct {
	Group   string `json:"group"`
	Variant string `json:"variant"`
}

// Catalogue is the loaded, read-only list of groups.
type Catalogue struct {
	Groups []Group `json:"groups"`

	// Source is the file path the catalogue was read from, or SourceEmbedded.
	Source string `json:"source"`

	// Fallback reports whether every candidate file failed and the embedded
	// sample catalogue is in use.
	Fallback bool `json:"fallback"`
}

// SourceEmbedded marks a catalogue served from the binary's embedded sample data.
const SourceEmbedded = "embedded"

// TotalVariants returns the number of variants across all groups.
// Identical variant strings in different groups are counted separately.
func (c *Catalogue) TotalVariants() int {
	if c == nil {
		return 0
	}
	return countVariants(c.Groups)
}

// Len returns the number of groups.
func (c *Catalogue) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Groups)
}

func countVariants(groups []Group) int {
	total := 0
	for _, g := range groups {
		total += len(g.Variants)
	}
	return total
}
