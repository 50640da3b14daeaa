package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadVocabEmptyPathUsesDefaults(t *testing.T) {
	v, err := LoadVocab("")
	require.NoError(t, err)

	// Empty sections fall through to the built-in vocabularies.
	person := v.NameParser().Parse("DR JOHN SMITH JR")
	assert.Equal(t, "DR", person.Prefix)
	assert.Equal(t, "JR", person.Suffix)

	addr := v.AddressParser().Parse("12 OAK STREET", "RALEIGH", "NORTH CAROLINA", "27601")
	assert.Equal(t, "12 OAK ST", addr.HouseNumber+" "+addr.Street)
	assert.Equal(t, "NC", addr.State)
}

func TestLoadVocabOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	content := `
prefixes: ["COMMISSIONER"]
suffixes: ["OD"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v, err := LoadVocab(path)
	require.NoError(t, err)

	person := v.NameParser().Parse("COMMISSIONER JANE DOE OD")
	assert.Equal(t, "COMMISSIONER", person.Prefix)
	assert.Equal(t, "OD", person.Suffix)

	// Defaults are replaced, not merged.
	person = v.NameParser().Parse("DR JANE DOE")
	assert.Empty(t, person.Prefix)
	assert.Equal(t, "DR", person.First)
}

func TestLoadVocabMissingFile(t *testing.T) {
	_, err := LoadVocab("/nonexistent/vocab.yaml")
	assert.Error(t, err)
}
