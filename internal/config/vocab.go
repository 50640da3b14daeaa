package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ncboe-donors/internal/normalize"
)

// Vocab is an optional YAML override of the parsing vocabularies: name
// prefixes and suffixes, street-type/directional and state abbreviation
// tables, and unit-marker tokens. Empty sections fall back to the built-in
// defaults.
type Vocab struct {
	Prefixes    []string          `yaml:"prefixes"`
	Suffixes    []string          `yaml:"suffixes"`
	Streets     map[string]string `yaml:"streets"`
	States      map[string]string `yaml:"states"`
	UnitMarkers []string          `yaml:"unit_markers"`
}

// LoadVocab reads a vocabulary file. A missing path returns an empty Vocab
// so callers fall through to the defaults.
func LoadVocab(path string) (*Vocab, error) {
	if path == "" {
		return &Vocab{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocab file: %w", err)
	}
	var v Vocab
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse vocab file %s: %w", path, err)
	}
	return &v, nil
}

// NameParser builds a name parser from the vocabulary, defaulting empty
// sections.
func (v *Vocab) NameParser() *normalize.NameParser {
	return normalize.NewNameParserWithVocab(v.Prefixes, v.Suffixes)
}

// AddressParser builds an address parser from the vocabulary, defaulting
// empty sections.
func (v *Vocab) AddressParser() *normalize.AddressParser {
	return normalize.NewAddressParserWithVocab(v.Streets, v.States, v.UnitMarkers)
}
