package models

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed options.yaml
var optionsYAML []byte

// OptionTable holds the allowed values for select-style fields.
// Loaded once at first use and never modified afterwards.
type OptionTable struct {
	Categories        []string `yaml:"categories" json:"categories"`
	Industries        []string `yaml:"industries" json:"industries"`
	Priorities        []string `yaml:"priorities" json:"priorities"`
	Scopes            []string `yaml:"scopes" json:"scopes"`
	MeasureTypes      []string `yaml:"measure_types" json:"measure_types"`
	DataTypes         []string `yaml:"data_types" json:"data_types"`
	EventTypes        []string `yaml:"event_types" json:"event_types"`
	DataSensitivities []string `yaml:"data_sensitivities" json:"data_sensitivities"`
}

var (
	optionsOnce  sync.Once
	optionsTable *OptionTable
)

// Options returns the process-wide option table.
// Panics if the embedded document is malformed, which is a build defect.
func Options() *OptionTable {
	optionsOnce.Do(func() {
		t, err := ParseOptions(optionsYAML)
		if err != nil {
			panic(err)
		}
		optionsTable = t
	})
	return optionsTable
}

// ParseOptions decodes an option table from YAML.
func ParseOptions(data []byte) (*OptionTable, error) {
	var t OptionTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse option table: %w", err)
	}
	return &t, nil
}

// Allows reports whether value is one of allowed. Empty values are always
// allowed since every select field is optional.
func Allows(allowed []string, value string) bool {
	if value == "" {
		return true
	}
	for _, a := range allowed {
		if a == value {
			return true
		}
	}
	return false
}
