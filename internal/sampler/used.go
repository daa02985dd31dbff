package sampler

import "github.com/Yates-Labs/storyprompt/internal/catalogue"

// UsedSet is the set of variant texts already consumed. A nil UsedSet is an empty,
// read-only set.
type UsedSet map[string]struct{}

// NewUsedSet creates a set holding the variants of the given elements.
func NewUsedSet(elements ...catalogue.Element) UsedSet {
	set := make(UsedSet, len(elements))
	for _, el := range elements {
		set.Add(el.Variant)
	}
	return set
}

func (u UsedSet) Has(variant string) bool {
	_, ok := u[variant]
	return ok
}

func (u UsedSet) Add(variant string) {
	u[variant] = struct{}{}
}

func (u UsedSet) Remove(variant string) {
	delete(u, variant)
}

func (u UsedSet) Len() int {
	return len(u)
}

// Clone returns a writable copy; cloning a nil set yields an empty set.
func (u UsedSet) Clone() UsedSet {
	out := make(UsedSet, len(u))
	for v := range u {
		out[v] = struct{}{}
	}
	return out
}
