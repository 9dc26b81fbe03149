// pkg/config/rules.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cuidar-analytics/evaluator/pkg/columns"
)

// rulesFile is the YAML overlay for detection vocabulary. Both sections are
// optional; present sections replace the defaults wholesale.
type rulesFile struct {
	Rules            []columns.Rule `yaml:"rules"`
	MethodVocabulary []string       `yaml:"method_vocabulary"`
	CriticalFields   []string       `yaml:"critical_fields"`
}

// ApplyRulesFile overlays column-role rules and the method vocabulary from
// a YAML file onto the configuration.
func (c *Config) ApplyRulesFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading rules file: %w", err)
	}

	var rf rulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return fmt.Errorf("parsing rules file %s: %w", path, err)
	}

	if len(rf.Rules) > 0 {
		c.Rules = rf.Rules
	}
	if len(rf.MethodVocabulary) > 0 {
		c.MethodVocabulary = rf.MethodVocabulary
	}
	if len(rf.CriticalFields) > 0 {
		c.CriticalFieldKeywords = rf.CriticalFields
	}
	return nil
}
