package validate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FormSet maps a form name to its declared rules.
type FormSet map[string]Rules

type formsDocument struct {
	Forms map[string]Rules `yaml:"forms"`
}

// ParseForms decodes a YAML form declaration document:
//
//	forms:
//	  sign_up:
//	    - {field: email, kind: required}
//	    - {field: password, kind: min_length, min: 8}
func ParseForms(data []byte) (FormSet, error) {
	var doc formsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse form declarations: %w", err)
	}
	for name, rules := range doc.Forms {
		for i, rule := range rules {
			if err := rule.validate(); err != nil {
				return nil, fmt.Errorf("form %s rule %d: %w", name, i, err)
			}
		}
	}
	if doc.Forms == nil {
		return FormSet{}, nil
	}
	return FormSet(doc.Forms), nil
}

// LoadForms reads and parses a YAML declaration file.
func LoadForms(path string) (FormSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read form declarations %s: %w", path, err)
	}
	return ParseForms(data)
}

// Lookup returns the declared rules for name, falling back to def.
func (s FormSet) Lookup(name string, def Rules) Rules {
	if rules, ok := s[name]; ok {
		return rules
	}
	return def
}

func (r Rule) validate() error {
	if r.Field == "" {
		return fmt.Errorf("field is required")
	}
	switch r.Kind {
	case KindRequired, KindFilePresent, KindEmail:
	case KindMinLength:
		if r.Min <= 0 {
			return fmt.Errorf("min_length on %s needs a positive min", r.Field)
		}
	case KindEquals:
		if r.Other == "" {
			return fmt.Errorf("equals on %s needs other", r.Field)
		}
	default:
		return fmt.Errorf("unknown kind %q", r.Kind)
	}
	return nil
}
