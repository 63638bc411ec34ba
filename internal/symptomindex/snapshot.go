package symptomindex

import (
	"sort"
	"time"

	"github.com/yuki5321/AIsindan/internal/domain"
	"github.com/yuki5321/AIsindan/internal/symptom"
)

// Association links a condition to one of its symptoms.
type Association struct {
	ConditionID string
	Symptom     string
	Relevance   float64
}

// Snapshot is one immutable generation of the index. It is never modified
// after construction, so it can be shared freely between goroutines.
type Snapshot struct {
	conditions map[string]domain.Condition
	byName     map[string]string
	symptoms   map[string]symptom.Set
	relevance  map[string]map[string]float64
	loadedAt   time.Time
}

// Empty returns a snapshot with no conditions. Lookups on it always miss.
func Empty() *Snapshot {
	return &Snapshot{
		conditions: map[string]domain.Condition{},
		byName:     map[string]string{},
		symptoms:   map[string]symptom.Set{},
		relevance:  map[string]map[string]float64{},
	}
}

// NewSnapshot groups associations by condition, normalizing every symptom
// name. Associations for conditions that are not listed are still indexed by
// their condition ID.
func NewSnapshot(conditions []domain.Condition, associations []Association, loadedAt time.Time) *Snapshot {
	s := Empty()
	s.loadedAt = loadedAt

	for _, c := range conditions {
		s.conditions[c.ID] = c
		if key := domain.NameKey(c.NameEN); key != "" {
			if _, dup := s.byName[key]; !dup {
				s.byName[key] = c.ID
			}
		}
	}

	for _, a := range associations {
		name := symptom.Normalize(a.Symptom)
		if name == "" || a.ConditionID == "" {
			continue
		}
		set, ok := s.symptoms[a.ConditionID]
		if !ok {
			set = symptom.NewSet()
			s.symptoms[a.ConditionID] = set
			s.relevance[a.ConditionID] = map[string]float64{}
		}
		set.Add(name)

		weight := a.Relevance
		if weight <= 0 {
			weight = 1
		}
		// Two raw spellings collapsing to one token keep the stronger weight.
		if weight > s.relevance[a.ConditionID][name] {
			s.relevance[a.ConditionID][name] = weight
		}
	}

	return s
}

// Lookup returns the canonical symptoms associated with a condition. Unknown
// conditions yield an empty set. The returned set is shared with the snapshot
// and must not be modified.
func (s *Snapshot) Lookup(conditionID string) symptom.Set {
	set, ok := s.symptoms[conditionID]
	if !ok {
		return symptom.NewSet()
	}
	return set
}

// Relevance returns the association weight of a symptom for a condition, or
// zero when they are not associated.
func (s *Snapshot) Relevance(conditionID, name string) float64 {
	return s.relevance[conditionID][name]
}

// Condition returns the condition with the given ID.
func (s *Snapshot) Condition(id string) (domain.Condition, bool) {
	c, ok := s.conditions[id]
	return c, ok
}

// ConditionByName returns the condition whose English name matches nameEN,
// ignoring case and surrounding whitespace.
func (s *Snapshot) ConditionByName(nameEN string) (domain.Condition, bool) {
	id, ok := s.byName[domain.NameKey(nameEN)]
	if !ok {
		return domain.Condition{}, false
	}
	return s.Condition(id)
}

// Resolve maps a condition as sent by a caller to the ID the snapshot keys
// its symptoms by. A known ID wins; otherwise the English name is tried, so
// placeholder conditions without an ID still resolve.
func (s *Snapshot) Resolve(c domain.Condition) (string, bool) {
	if c.ID != "" {
		if _, ok := s.conditions[c.ID]; ok {
			return c.ID, true
		}
		if _, ok := s.symptoms[c.ID]; ok {
			return c.ID, true
		}
	}
	if byName, ok := s.ConditionByName(c.NameEN); ok {
		return byName.ID, true
	}
	return "", false
}

// Conditions returns every condition ordered by English name.
func (s *Snapshot) Conditions() []domain.Condition {
	out := make([]domain.Condition, 0, len(s.conditions))
	for _, c := range s.conditions {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NameEN != out[j].NameEN {
			return out[i].NameEN < out[j].NameEN
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Size returns the number of conditions and associations in the snapshot.
func (s *Snapshot) Size() (conditions, associations int) {
	for _, set := range s.symptoms {
		associations += set.Len()
	}
	return len(s.conditions), associations
}

// LoadedAt returns when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}
