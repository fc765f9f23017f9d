package venue

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// AliasTable is the on-disk venue alias configuration. The alias map and
// pattern set are data that evolved by hand, not algorithm, so they live in
// an editable file rather than in code.
//
//	aliases:
//	  "Independent SF": "The Independent"
//	  "GAMH": "Great American Music Hall"
//	tba_patterns: [tba, tbd]
type AliasTable struct {
	Aliases     map[string]string `yaml:"aliases"`
	TBAPatterns []string          `yaml:"tba_patterns"`
}

// LoadAliasTable reads an alias table from a YAML file.
func LoadAliasTable(path string) (*AliasTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "venue: read alias file %s", path)
	}
	var t AliasTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrapf(err, "venue: parse alias file %s", path)
	}
	return &t, nil
}

// NewNormalizerFromFile builds a Normalizer from an optional alias file,
// merging extraPatterns into the file's TBA pattern set. An empty path
// yields a normalizer with no aliases.
func NewNormalizerFromFile(path string, extraPatterns []string) (*Normalizer, error) {
	if path == "" {
		return NewNormalizer(nil, extraPatterns), nil
	}
	t, err := LoadAliasTable(path)
	if err != nil {
		return nil, err
	}
	patterns := t.TBAPatterns
	patterns = append(patterns, extraPatterns...)
	if len(patterns) == 0 {
		patterns = nil
	}
	return NewNormalizer(t.Aliases, patterns), nil
}
