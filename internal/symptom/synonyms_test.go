package symptom

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSynonyms(t *testing.T) {
	syn, err := DefaultSynonyms()
	require.NoError(t, err)
	require.NotEmpty(t, syn)

	assert.Equal(t, []string{"pruritus"}, syn["itching"])
	assert.ElementsMatch(t, []string{"xerosis", "dry_skin"}, syn["dryness"])
}

func TestParseSynonymsNormalizes(t *testing.T) {
	syn, err := ParseSynonyms([]byte(`
"Dry Skin":
  - Xerosis
  - "dry skin"
  - "!!"
"!!!":
  - ignored
`))
	require.NoError(t, err)
	assert.Equal(t, Synonyms{"dry_skin": {"xerosis"}}, syn)
}

func TestParseSynonymsInvalidYAML(t *testing.T) {
	_, err := ParseSynonyms([]byte("itching: [unterminated"))
	assert.Error(t, err)
}

func TestLoadSynonymsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synonyms.yaml")
	require.NoError(t, os.WriteFile(path, []byte("redness:\n  - erythema\n"), 0o644))

	syn, err := LoadSynonyms(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"erythema"}, syn["redness"])

	_, err = LoadSynonyms(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestExpandIsOneLevel(t *testing.T) {
	n := NewNormalizer(Synonyms{
		"itching":  {"pruritus"},
		"pruritus": {"itch"},
	})

	got := n.Expand(NewSet("itching"))
	assert.Equal(t, []string{"itching", "pruritus"}, got.Sorted())
}

func TestExpandHandlesCycles(t *testing.T) {
	n := NewNormalizer(Synonyms{
		"a": {"b"},
		"b": {"a"},
	})
	assert.Equal(t, []string{"a", "b"}, n.Expand(NewSet("a")).Sorted())
}

func TestExpandDoesNotMutateInput(t *testing.T) {
	n := NewNormalizer(Synonyms{"itching": {"pruritus"}})
	in := NewSet("itching")
	_ = n.Expand(in)
	assert.Equal(t, 1, in.Len())
}

func TestNilSynonymsDisableExpansion(t *testing.T) {
	n := NewNormalizer(nil)
	assert.Equal(t, []string{"itching"}, n.Expand(NewSet("itching")).Sorted())
	assert.Zero(t, n.Size())
}

func TestSetIntersect(t *testing.T) {
	a := NewSet("itching", "redness", "scaling")
	b := NewSet("redness", "pain")
	assert.Equal(t, []string{"redness"}, a.Intersect(b).Sorted())
	assert.Equal(t, []string{"redness"}, b.Intersect(a).Sorted())
	assert.Zero(t, a.Intersect(NewSet()).Len())
}
