package symptom

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed synonyms.yaml
var defaultSynonymsYAML []byte

// Synonyms maps a canonical symptom name to its canonical aliases.
type Synonyms map[string][]string

// DefaultSynonyms parses the embedded synonym table.
func DefaultSynonyms() (Synonyms, error) {
	return ParseSynonyms(defaultSynonymsYAML)
}

// LoadSynonyms reads a synonym table from a YAML file.
func LoadSynonyms(path string) (Synonyms, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read synonyms: %w", err)
	}
	return ParseSynonyms(data)
}

// ParseSynonyms decodes a YAML map of symptom to alias list. Keys and aliases
// are normalized; empty tokens are dropped.
func ParseSynonyms(data []byte) (Synonyms, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse synonyms: %w", err)
	}

	out := make(Synonyms, len(raw))
	for key, aliases := range raw {
		canonical := Normalize(key)
		if canonical == "" {
			continue
		}
		seen := NewSet(out[canonical]...)
		for _, a := range aliases {
			alias := Normalize(a)
			if alias == "" || alias == canonical || seen.Has(alias) {
				continue
			}
			seen.Add(alias)
			out[canonical] = append(out[canonical], alias)
		}
	}
	return out, nil
}

// Normalizer canonicalizes symptom names and expands them through a synonym
// table. Safe for concurrent use; the table is never mutated after construction.
type Normalizer struct {
	synonyms Synonyms
}

// NewNormalizer builds a normalizer over the given synonym table. A nil table
// disables expansion.
func NewNormalizer(synonyms Synonyms) *Normalizer {
	if synonyms == nil {
		synonyms = Synonyms{}
	}
	return &Normalizer{synonyms: synonyms}
}

// Normalize is Normalize bound to the normalizer.
func (n *Normalizer) Normalize(raw string) string {
	return Normalize(raw)
}

// Expand returns the input set plus every alias keyed by one of its members.
// Expansion is one level deep: aliases are not expanded again.
func (n *Normalizer) Expand(selected Set) Set {
	out := make(Set, len(selected))
	for name := range selected {
		out.Add(name)
	}
	for name := range selected {
		for _, alias := range n.synonyms[name] {
			out.Add(alias)
		}
	}
	return out
}

// Size returns the number of canonical entries in the synonym table.
func (n *Normalizer) Size() int {
	return len(n.synonyms)
}
