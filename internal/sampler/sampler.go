// Package sampler draws distinct (group, variant) pairs from a catalogue.
//
// Every attempt first picks a group uniformly at random and then picks uniformly among
// that group's variants that are still unused. Selection is therefore uniform over
// groups, not over individual variants, and the catalogue must never be flattened into
// a single variant list. Uniqueness is tracked by variant text: two groups that share an
// identical variant string consume the same used entry.
package sampler

import (
	"math/rand/v2"

	"github.com/Yates-Labs/storyprompt/internal/catalogue"
)

const (
	// AttemptMultiplier bounds a Sample pass to count*AttemptMultiplier attempts
	// (further capped by the catalogue's total variant count).
	AttemptMultiplier = 10

	// MaxSingleAttempts bounds SampleOne.
	MaxSingleAttempts = 100
)

// Source is the randomness a Sampler draws from. *rand.Rand satisfies it.
type Source interface {
	// IntN returns a value in [0, n). n is always > 0.
	IntN(n int) int
}

// Sampler is not safe for concurrent use unless its Source is.
type Sampler struct {
	rng Source
}

// New creates a sampler over the given source.
func New(rng Source) *Sampler {
	return &Sampler{rng: rng}
}

// NewSeeded creates a sampler with a deterministic PCG source.
func NewSeeded(seed uint64) *Sampler {
	return New(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// NewRandom creates a sampler with a randomly seeded PCG source.
func NewRandom() *Sampler {
	return New(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
}

// Source returns the sampler's randomness so related generators can share it.
func (s *Sampler) Source() Source { return s.rng }

// Sample returns up to count distinct pairs. It stops when count pairs were collected
// or after min(count*AttemptMultiplier, total variants) attempts, whichever comes first.
// Running out of attempts is not an error; the partial result is returned.
func (s *Sampler) Sample(groups []catalogue.Group, count int) []catalogue.Element {
	return s.SampleExcluding(groups, count, nil)
}

// SampleExcluding is Sample with variants in used treated as already taken.
// used is not modified.
func (s *Sampler) SampleExcluding(groups []catalogue.Group, count int, used UsedSet) []catalogue.Element {
	if len(groups) == 0 || count <= 0 {
		return []catalogue.Element{}
	}

	taken := used.Clone()
	maxAttempts := min(count*AttemptMultiplier, totalVariants(groups))

	selected := make([]catalogue.Element, 0, count)
	for attempts := 0; len(selected) < count && attempts < maxAttempts; attempts++ {
		el, ok := s.draw(groups, taken)
		if !ok {
			continue
		}
		taken.Add(el.Variant)
		selected = append(selected, el)
	}
	return selected
}

// SampleOne returns one pair whose variant is not in used, trying at most
// MaxSingleAttempts draws. ok is false when nothing was found.
func (s *Sampler) SampleOne(groups []catalogue.Group, used UsedSet) (el catalogue.Element, ok bool) {
	if len(groups) == 0 {
		return catalogue.Element{}, false
	}
	for attempts := 0; attempts < MaxSingleAttempts; attempts++ {
		if el, ok := s.draw(groups, used); ok {
			return el, true
		}
	}
	return catalogue.Element{}, false
}

// draw performs one two-stage attempt. A group with no unused variant wastes the attempt.
func (s *Sampler) draw(groups []catalogue.Group, used UsedSet) (catalogue.Element, bool) {
	group := groups[s.rng.IntN(len(groups))]

	available := make([]string, 0, len(group.Variants))
	for _, v := range group.Variants {
		if !used.Has(v) {
			available = append(available, v)
		}
	}
	if len(available) == 0 {
		return catalogue.Element{}, false
	}

	return catalogue.Element{
		Group:   group.Name,
		Variant: available[s.rng.IntN(len(available))],
	}, true
}

func totalVariants(groups []catalogue.Group) int {
	total := 0
	for _, g := range groups {
		total += len(g.Variants)
	}
	return total
}
