// Package seed serves the disease catalogue from a YAML file so the service
// can run without a database.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yuki5321/AIsindan/internal/domain"
	"github.com/yuki5321/AIsindan/internal/symptomindex"
)

//go:embed seed.yaml
var defaultSeed []byte

type fileSymptomLink struct {
	Name      string  `yaml:"name"`
	Relevance float64 `yaml:"relevance"`
}

type fileCondition struct {
	ID       string            `yaml:"id"`
	Name     string            `yaml:"name"`
	NameEN   string            `yaml:"name_en"`
	Overview string            `yaml:"overview"`
	Symptoms []fileSymptomLink `yaml:"symptoms"`
}

type fileSymptom struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	NameEN     string `yaml:"name_en"`
	CategoryID string `yaml:"category_id"`
}

type file struct {
	Symptoms   []fileSymptom   `yaml:"symptoms"`
	Conditions []fileCondition `yaml:"conditions"`
}

// Store is an immutable in-memory catalogue.
type Store struct {
	conditions   []domain.Condition
	associations []symptomindex.Association
	symptoms     []domain.Symptom
}

// Default returns the embedded catalogue.
func Default() (*Store, error) {
	return Parse(defaultSeed)
}

// Load reads a catalogue from path.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalogue. Condition IDs must be present and unique.
func Parse(data []byte) (*Store, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	s := &Store{}
	seen := make(map[string]bool, len(f.Conditions))
	for i, c := range f.Conditions {
		if c.ID == "" {
			return nil, fmt.Errorf("seed condition %d has no id", i)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("seed condition id %q is duplicated", c.ID)
		}
		seen[c.ID] = true

		s.conditions = append(s.conditions, domain.Condition{
			ID:       c.ID,
			Name:     c.Name,
			NameEN:   c.NameEN,
			Overview: c.Overview,
		})
		for _, link := range c.Symptoms {
			s.associations = append(s.associations, symptomindex.Association{
				ConditionID: c.ID,
				Symptom:     link.Name,
				Relevance:   link.Relevance,
			})
		}
	}

	for _, sym := range f.Symptoms {
		s.symptoms = append(s.symptoms, domain.Symptom(sym))
	}

	return s, nil
}

func (s *Store) ListConditions(context.Context) ([]domain.Condition, error) {
	return append([]domain.Condition(nil), s.conditions...), nil
}

func (s *Store) ListAssociations(context.Context) ([]symptomindex.Association, error) {
	return append([]symptomindex.Association(nil), s.associations...), nil
}

func (s *Store) ListSymptoms(context.Context) ([]domain.Symptom, error) {
	return append([]domain.Symptom(nil), s.symptoms...), nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}
