package engine

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed features.yaml
var defaultFeaturesYAML []byte

const (
	FeatureSavingsGoals = "SAVINGS_GOALS"
	FeatureBudgets      = "BUDGETS"
	FeatureAIInsights   = "AI_INSIGHTS"
)

type FeatureGateDefinition struct {
	Key           string   `yaml:"-"`
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	Icon          string   `yaml:"icon"`
	RequiredLevel int      `yaml:"required_level"`
	XPThreshold   int      `yaml:"xp_threshold"`
	Benefits      []string `yaml:"benefits"`
}

// FeatureTable maps feature keys to their gate definitions.
type FeatureTable map[string]FeatureGateDefinition

var defaultFeatures = mustParseFeatures(defaultFeaturesYAML)

// DefaultFeatures returns a copy of the built-in table.
func DefaultFeatures() FeatureTable {
	out := make(FeatureTable, len(defaultFeatures))
	for k, v := range defaultFeatures {
		out[k] = v
	}
	return out
}

func mustParseFeatures(raw []byte) FeatureTable {
	t, err := ParseFeatureTable(raw)
	if err != nil {
		panic(fmt.Sprintf("embedded feature table: %v", err))
	}
	return t
}

func LoadFeatureTable(path string) (FeatureTable, error) {
	if path == "" {
		return DefaultFeatures(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feature table: %w", err)
	}
	t, err := ParseFeatureTable(raw)
	if err != nil {
		return nil, fmt.Errorf("feature table %s: %w", path, err)
	}
	return t, nil
}

func ParseFeatureTable(raw []byte) (FeatureTable, error) {
	var doc struct {
		Features map[string]FeatureGateDefinition `yaml:"features"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse features: %w", err)
	}
	out := make(FeatureTable, len(doc.Features))
	for key, def := range doc.Features {
		if def.RequiredLevel < 0 {
			return nil, fmt.Errorf("feature %s: negative required_level", key)
		}
		def.Key = key
		if def.Name == "" {
			def.Name = key
		}
		out[key] = def
	}
	return out, nil
}

// Keys lists feature keys by required level, then key.
func (t FeatureTable) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := t[keys[i]], t[keys[j]]
		if a.RequiredLevel != b.RequiredLevel {
			return a.RequiredLevel < b.RequiredLevel
		}
		return keys[i] < keys[j]
	})
	return keys
}
