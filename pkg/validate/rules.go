// Package validate runs the declared client-side constraints of a form.
// Checks are pure: the same form always yields the same errors in the same order.
package validate

import (
	"fmt"
	"strings"
)

// MinPasswordLength is the shortest password the panel accepts.
const MinPasswordLength = 8

// Kind names a constraint type.
type Kind string

const (
	KindRequired    Kind = "required"
	KindMinLength   Kind = "min_length"
	KindEquals      Kind = "equals"
	KindFilePresent Kind = "file_present"
	KindEmail       Kind = "email"
)

// Rule is one declared constraint on a field.
type Rule struct {
	Field   string `yaml:"field"`
	Kind    Kind   `yaml:"kind"`
	Min     int    `yaml:"min,omitempty"`
	Other   string `yaml:"other,omitempty"` // KindEquals: the field whose value must match
	Message string `yaml:"message,omitempty"`
}

// Rules is an ordered constraint list. Order decides which field gets focus.
type Rules []Rule

// Required declares that each field must be non-blank.
func Required(fields ...string) Rules {
	out := make(Rules, 0, len(fields))
	for _, f := range fields {
		out = append(out, Rule{Field: f, Kind: KindRequired})
	}
	return out
}

// MinLength declares a minimum character count.
func MinLength(field string, n int) Rule {
	return Rule{Field: field, Kind: KindMinLength, Min: n}
}

// Equals declares that field must repeat other, as a confirmation input does.
func Equals(field, other string) Rule {
	return Rule{Field: field, Kind: KindEquals, Other: other}
}

// FilePresent declares that a file or staged upload must be attached.
func FilePresent(field string) Rule {
	return Rule{Field: field, Kind: KindFilePresent}
}

// Email declares a loose address shape check.
func Email(field string) Rule {
	return Rule{Field: field, Kind: KindEmail}
}

// FieldError is a failed constraint.
type FieldError struct {
	Field   string
	Kind    Kind
	Message string
}

// Errors is the ordered set of failures from one check.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields returns the distinct offending fields in rule order.
func (e Errors) Fields() []string {
	seen := make(map[string]bool, len(e))
	out := make([]string, 0, len(e))
	for _, fe := range e {
		if !seen[fe.Field] {
			seen[fe.Field] = true
			out = append(out, fe.Field)
		}
	}
	return out
}

// First returns the field that should receive focus.
func (e Errors) First() string {
	if len(e) == 0 {
		return ""
	}
	return e[0].Field
}

// Source supplies the values a rule reads. action.Form satisfies it.
type Source interface {
	Value(field string) string
	Has(field string) bool
}

// FileSource is consulted by KindFilePresent when the source also carries files.
type FileSource interface {
	HasFile(field string) bool
}

// Check evaluates every rule against src. A nil result means the form is valid.
func (r Rules) Check(src Source) Errors {
	var errs Errors
	for _, rule := range r {
		if ok := rule.holds(src); !ok {
			errs = append(errs, FieldError{Field: rule.Field, Kind: rule.Kind, Message: rule.message()})
		}
	}
	return errs
}

func (r Rule) holds(src Source) bool {
	switch r.Kind {
	case KindRequired:
		return src.Has(r.Field)
	case KindMinLength:
		return len([]rune(src.Value(r.Field))) >= r.Min
	case KindEquals:
		return src.Value(r.Field) == src.Value(r.Other)
	case KindFilePresent:
		if fs, ok := src.(FileSource); ok && fs.HasFile(r.Field) {
			return true
		}
		return src.Has(r.Field)
	case KindEmail:
		v := strings.TrimSpace(src.Value(r.Field))
		at := strings.LastIndex(v, "@")
		return at > 0 && at < len(v)-1 && !strings.ContainsAny(v, " \t")
	default:
		return true
	}
}

func (r Rule) message() string {
	if r.Message != "" {
		return r.Message
	}
	switch r.Kind {
	case KindRequired:
		return "this field is required"
	case KindMinLength:
		return fmt.Sprintf("must be at least %d characters", r.Min)
	case KindEquals:
		return "does not match " + r.Other
	case KindFilePresent:
		return "a file must be attached"
	case KindEmail:
		return "must be a valid email address"
	default:
		return "invalid value"
	}
}
