package inference

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/veritas/internal/model"
)

//go:embed facts.yaml
var defaultFacts []byte

// FactSet holds the curated true and false claims of one category
type FactSet struct {
	True  []string `yaml:"true"`
	False []string `yaml:"false"`
}

// Empty reports whether the set has no entries
func (s FactSet) Empty() bool {
	return len(s.True) == 0 && len(s.False) == 0
}

// FactTable is the curated fact table keyed by category
type FactTable map[model.Category]FactSet

// DefaultFacts returns the built-in fact table
func DefaultFacts() FactTable {
	facts, err := ParseFacts(defaultFacts)
	if err != nil {
		panic(fmt.Sprintf("embedded facts: %v", err))
	}
	return facts
}

// LoadFacts reads a fact table from a YAML file
func LoadFacts(path string) (FactTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read facts file: %w", err)
	}
	return ParseFacts(data)
}

// ParseFacts decodes a YAML fact table. Category keys are normalized.
func ParseFacts(data []byte) (FactTable, error) {
	var raw map[string]FactSet
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse facts: %w", err)
	}

	table := make(FactTable, len(raw))
	for name, set := range raw {
		cat := model.NormalizeCategory(name)
		merged := table[cat]
		merged.True = append(merged.True, set.True...)
		merged.False = append(merged.False, set.False...)
		table[cat] = merged
	}
	return table, nil
}

// searchOrder returns the categories to search for a claim: its own when that
// category has entries, otherwise every category in a stable order.
func (t FactTable) searchOrder(cat model.Category) []model.Category {
	if set, ok := t[cat]; ok && !set.Empty() {
		return []model.Category{cat}
	}
	return t.categories()
}

func (t FactTable) categories() []model.Category {
	cats := make([]model.Category, 0, len(t))
	for c := range t {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}
