package cpuinfo

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
)

// Fact is a named value extracted from a decoded register. Names are
// slash-delimited paths built from the innermost segment outwards, e.g.
// "cpuid/features/edx/sse2".
type Fact[V any] struct {
	Name  string `json:"name" yaml:"name"`
	Value V      `json:"value" yaml:"value"`
}

// NewFact returns a fact with the given name and value.
func NewFact[V any](name string, value V) Fact[V] {
	return Fact[V]{Name: name, Value: value}
}

// AddPath prefixes the fact name with path and a slash.
func (f *Fact[V]) AddPath(path string) *Fact[V] {
	f.Name = path + "/" + f.Name
	return f
}

// String renders the fact as "<name> = <value>".
func (f Fact[V]) String() string {
	return fmt.Sprintf("%s = %v", f.Name, f.Value)
}

// ConvertFact widens a fact into another value type.
func ConvertFact[From, To any](f Fact[From], convert func(From) To) Fact[To] {
	return Fact[To]{Name: f.Name, Value: convert(f.Value)}
}

// prefixFacts adds path to the name of every fact in facts.
func prefixFacts[V any](facts []Fact[V], path string) []Fact[V] {
	for i := range facts {
		facts[i].AddPath(path)
	}
	return facts
}

// FactSet indexes a list of facts by name. Facts are identified by name
// only; when the input holds the same name twice the later fact wins and
// the name is recorded in [FactSet.Duplicates].
//
// A FactSet is read-only once built and safe for concurrent readers.
type FactSet[V comparable] struct {
	backing    map[string]Fact[V]
	names      map[string]struct{}
	duplicates []string
}

// NewFactSet indexes facts by name.
func NewFactSet[V comparable](facts []Fact[V]) *FactSet[V] {
	s := &FactSet[V]{
		backing: make(map[string]Fact[V], len(facts)),
		names:   make(map[string]struct{}, len(facts)),
	}
	for _, fact := range facts {
		if _, dup := s.backing[fact.Name]; dup {
			s.duplicates = append(s.duplicates, fact.Name)
		}
		s.backing[fact.Name] = fact
	}
	for name := range s.backing {
		s.names[name] = struct{}{}
	}
	return s
}

// Len returns the number of distinct fact names.
func (s *FactSet[V]) Len() int {
	return len(s.backing)
}

// Get returns the fact called name.
func (s *FactSet[V]) Get(name string) (Fact[V], bool) {
	fact, ok := s.backing[name]
	return fact, ok
}

// Duplicates returns the names that occurred more than once in the input,
// once per overwritten occurrence.
func (s *FactSet[V]) Duplicates() []string {
	return slices.Clone(s.duplicates)
}

// AddedFacts returns the facts of to whose names are absent from from.
// The order of the result is unspecified.
func AddedFacts[V comparable](from, to *FactSet[V]) []Fact[V] {
	return difference(to, from)
}

// RemovedFacts returns the facts of from whose names are absent from to.
// The order of the result is unspecified.
func RemovedFacts[V comparable](from, to *FactSet[V]) []Fact[V] {
	return difference(from, to)
}

// difference returns the facts of a whose names are not in b.
func difference[V comparable](a, b *FactSet[V]) []Fact[V] {
	out := make([]Fact[V], 0)
	for name := range a.names {
		if _, ok := b.names[name]; ok {
			continue
		}
		out = append(out, a.backing[name])
	}
	return out
}

// FactChange is a fact present in both collections with different values.
type FactChange[V any] struct {
	Before Fact[V]
	After  Fact[V]
}

// MarshalYAML writes a change as a [before, after] pair.
func (c FactChange[V]) MarshalYAML() (any, error) {
	return []Fact[V]{c.Before, c.After}, nil
}

// MarshalJSON writes a change as a [before, after] pair.
func (c FactChange[V]) MarshalJSON() ([]byte, error) {
	return json.Marshal([]Fact[V]{c.Before, c.After})
}

// ChangedFacts returns the facts present in both from and to whose values
// differ. Names present in only one set are not reported. The order of the
// result is unspecified.
func ChangedFacts[V comparable](from, to *FactSet[V]) []FactChange[V] {
	out := make([]FactChange[V], 0)
	for name, before := range from.backing {
		after, ok := to.backing[name]
		if !ok || before.Value == after.Value {
			continue
		}
		out = append(out, FactChange[V]{Before: before, After: after})
	}
	return out
}

// DiffReport lists the differences between two fact collections. Each
// list is sorted by fact name.
type DiffReport[V any] struct {
	Added   []Fact[V]       `json:"added" yaml:"added"`
	Removed []Fact[V]       `json:"removed" yaml:"removed"`
	Changed []FactChange[V] `json:"changed" yaml:"changed"`
}

// Equivalent reports whether the two collections had no differences.
func (r *DiffReport[V]) Equivalent() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Changed) == 0
}

// Err returns a [*DiffError] summarising r, or nil when r is empty.
func (r *DiffReport[V]) Err() error {
	if r.Equivalent() {
		return nil
	}
	return &DiffError{Added: len(r.Added), Removed: len(r.Removed), Changed: len(r.Changed)}
}

// Diff compares two fact lists by name.
func Diff[V comparable](from, to []Fact[V]) *DiffReport[V] {
	return DiffSets(NewFactSet(from), NewFactSet(to))
}

// DiffSets compares two indexed fact collections.
func DiffSets[V comparable](from, to *FactSet[V]) *DiffReport[V] {
	report := &DiffReport[V]{
		Added:   AddedFacts(from, to),
		Removed: RemovedFacts(from, to),
		Changed: ChangedFacts(from, to),
	}
	byName := func(a, b Fact[V]) int { return cmp.Compare(a.Name, b.Name) }
	slices.SortFunc(report.Added, byName)
	slices.SortFunc(report.Removed, byName)
	slices.SortFunc(report.Changed, func(a, b FactChange[V]) int {
		return cmp.Compare(a.Before.Name, b.Before.Name)
	})
	return report
}

// SortFacts orders facts by name.
func SortFacts[V any](facts []Fact[V]) {
	slices.SortStableFunc(facts, func(a, b Fact[V]) int { return cmp.Compare(a.Name, b.Name) })
}
