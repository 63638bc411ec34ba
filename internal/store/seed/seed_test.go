package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuki5321/AIsindan/internal/domain"
	"github.com/yuki5321/AIsindan/internal/symptom"
	"github.com/yuki5321/AIsindan/internal/symptomindex"
)

func TestDefaultCoversEveryClassLabel(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)

	conditions, err := s.ListConditions(context.Background())
	require.NoError(t, err)

	assoc, err := s.ListAssociations(context.Background())
	require.NoError(t, err)

	snap := symptomindex.NewSnapshot(conditions, assoc, time.Now())
	for _, label := range domain.ClassLabels {
		c, ok := snap.ConditionByName(label)
		assert.True(t, ok, "no seed condition for %q", label)
		assert.NotEmpty(t, c.ID)
		assert.NotEqual(t, domain.FallbackOverview, c.Overview)
	}
}

func TestDefaultStoreTermsReachableThroughSynonyms(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)
	conditions, _ := s.ListConditions(context.Background())
	assoc, _ := s.ListAssociations(context.Background())
	snap := symptomindex.NewSnapshot(conditions, assoc, time.Now())

	syn, err := symptom.DefaultSynonyms()
	require.NoError(t, err)
	expanded := symptom.NewNormalizer(syn).Expand(symptom.NormalizeAll([]string{"Scaling", "Irregular border"}))

	melanoma, ok := snap.ConditionByName("melanoma")
	require.True(t, ok)
	assert.Equal(t, []string{"irregular_margins"}, snap.Lookup(melanoma.ID).Intersect(expanded).Sorted())

	ak, ok := snap.ConditionByName(domain.ClassLabels[0])
	require.True(t, ok)
	assert.Equal(t, []string{"scaly_skin"}, snap.Lookup(ak.ID).Intersect(expanded).Sorted())
}

func TestListSymptoms(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)

	symptoms, err := s.ListSymptoms(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, symptoms)
	assert.Equal(t, "itching", symptoms[0].NameEN)
	assert.Equal(t, "sensation", symptoms[0].CategoryID)
}

func TestListReturnsCopies(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)

	first, _ := s.ListConditions(context.Background())
	first[0].NameEN = "changed"
	second, _ := s.ListConditions(context.Background())
	assert.NotEqual(t, "changed", second[0].NameEN)
}

func TestParseRejectsDuplicateIDs(t *testing.T) {
	_, err := Parse([]byte(`
conditions:
  - {id: "1", name_en: a}
  - {id: "1", name_en: b}
`))
	assert.ErrorContains(t, err, "duplicated")
}

func TestParseRejectsMissingID(t *testing.T) {
	_, err := Parse([]byte(`
conditions:
  - {name_en: a}
`))
	assert.ErrorContains(t, err, "has no id")
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("conditions: [unterminated"))
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
symptoms:
  - {id: "x", name: "x", name_en: "itching"}
conditions:
  - id: "9"
    name_en: "melanoma"
    symptoms:
      - {name: "itching", relevance: 2}
`), 0o600))

	s, err := Load(path)
	require.NoError(t, err)

	assoc, err := s.ListAssociations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []symptomindex.Association{{ConditionID: "9", Symptom: "itching", Relevance: 2}}, assoc)
	assert.NoError(t, s.Ping(context.Background()))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
