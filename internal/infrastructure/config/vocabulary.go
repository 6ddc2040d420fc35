package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
)

//go:embed vocabulary.yaml
var defaultVocabulary []byte

// VocabularyFile is the YAML shape of a variation vocabulary
type VocabularyFile struct {
	Themes []ThemeEntry `yaml:"themes"`
}

// ThemeEntry is one theme in a vocabulary file
type ThemeEntry struct {
	Name          string   `yaml:"name"`
	AttributeKeys []string `yaml:"attribute_keys"`
	Patterns      []string `yaml:"patterns"`
	CommonValues  []string `yaml:"common_values"`
}

// DefaultVocabularyYAML returns the embedded vocabulary document
func DefaultVocabularyYAML() []byte {
	return append([]byte(nil), defaultVocabulary...)
}

// LoadVocabulary builds the detection vocabulary from path, or from the
// embedded default when path is empty.
func LoadVocabulary(path string, opts ...variation.VocabularyOption) (*variation.Vocabulary, error) {
	data := defaultVocabulary
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read vocabulary %s: %w", path, err)
		}
		data = raw
	}
	return ParseVocabulary(data, opts...)
}

// ParseVocabulary decodes a YAML vocabulary document
func ParseVocabulary(data []byte, opts ...variation.VocabularyOption) (*variation.Vocabulary, error) {
	var file VocabularyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, variation.NewConfigurationError("vocabulary", fmt.Sprintf("invalid yaml: %v", err))
	}

	themes := make([]variation.VariationTheme, 0, len(file.Themes))
	for i, entry := range file.Themes {
		name, err := variation.ParseThemeName(entry.Name)
		if err != nil {
			return nil, fmt.Errorf("vocabulary theme #%d: %w", i+1, err)
		}
		themes = append(themes, variation.VariationTheme{
			Name:          name,
			AttributeKeys: entry.AttributeKeys,
			Patterns:      entry.Patterns,
			CommonValues:  entry.CommonValues,
		})
	}
	return variation.NewVocabulary(themes, opts...)
}
