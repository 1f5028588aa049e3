package validation

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ReadRules parses a rule set written in YAML or JSON. The document is either
// a list of rule specs or a mapping with a "rules" list.
func ReadRules(r io.Reader) ([]Rule, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}

	var doc interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if m, ok := doc.(map[string]interface{}); ok {
		doc, ok = m["rules"]
		if !ok {
			return nil, fmt.Errorf("parse rules: mapping has no rules key")
		}
	}
	if _, ok := doc.([]interface{}); !ok {
		return nil, fmt.Errorf("parse rules: expected a list of rules")
	}

	// Round-trip through JSON so values reach RuleSpec in their wire form.
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	var specs []RuleSpec
	if err := json.Unmarshal(asJSON, &specs); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	return ParseRules(specs)
}

// LoadRuleFile reads a YAML or JSON rule file from disk.
func LoadRuleFile(path string) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rules, err := ReadRules(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}
