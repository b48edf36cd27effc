package insights

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrEmptyCatalog = errors.New("insights: question catalog is empty")

type catalogFile struct {
	Questions []string `yaml:"questions"`
}

// LoadCatalog reads the question catalog from a YAML file. Both a bare
// sequence and a mapping with a "questions" key are accepted.
func LoadCatalog(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("insights: read catalog: %w", err)
	}
	return ParseCatalog(raw)
}

func ParseCatalog(raw []byte) ([]string, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("insights: parse catalog: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, ErrEmptyCatalog
	}

	var questions []string
	switch root := node.Content[0]; root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&questions); err != nil {
			return nil, fmt.Errorf("insights: parse catalog: %w", err)
		}
	case yaml.MappingNode:
		var f catalogFile
		if err := root.Decode(&f); err != nil {
			return nil, fmt.Errorf("insights: parse catalog: %w", err)
		}
		questions = f.Questions
	default:
		return nil, errors.New("insights: catalog must be a list or a mapping with questions")
	}

	out := cleanCatalog(questions)
	if len(out) == 0 {
		return nil, ErrEmptyCatalog
	}
	return out, nil
}

// cleanCatalog trims entries and drops blanks and duplicates, keeping order.
func cleanCatalog(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, q := range in {
		q = strings.TrimSpace(q)
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	return out
}
