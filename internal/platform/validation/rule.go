// Package validation implements the declarative field/form rule evaluator
// shared by chart-entry templates and medication forms, together with the
// per-form session state that hosts merge live and pre-submit results into.
package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// Severity classifies a rule violation. Only SeverityError blocks a form.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

var validSeverities = map[Severity]bool{
	SeverityError: true, SeverityWarning: true, SeverityInfo: true,
}

// IsValid reports whether s is one of the known severities.
func (s Severity) IsValid() bool {
	return validSeverities[s]
}

// RuleType identifies how a Rule is evaluated.
type RuleType string

const (
	RuleRequired  RuleType = "required"
	RuleMinLength RuleType = "minLength"
	RuleMaxLength RuleType = "maxLength"
	RulePattern   RuleType = "pattern"
	RuleCustom    RuleType = "custom"
)

// Predicate is a custom check invoked with the raw field value.
type Predicate func(value interface{}) bool

// Rule is a single declarative constraint on a field. Which of the payload
// fields is meaningful depends on Type:
//
//	required            none
//	minLength/maxLength Limit (nil means no bound)
//	pattern             Pattern
//	custom              Check, or Named when Check is nil
//
// Build rules with the constructors below rather than by hand.
type Rule struct {
	Field    string
	Type     RuleType
	Message  string
	Severity Severity

	Limit   *int
	Pattern *regexp.Regexp
	Check   Predicate
	Named   NamedValidator
}

func newRule(field string, t RuleType, message string, sev Severity) Rule {
	if sev == "" {
		sev = SeverityError
	}
	return Rule{Field: field, Type: t, Message: message, Severity: sev}
}

// Required fails when the value is missing or blank.
func Required(field, message string, sev Severity) Rule {
	return newRule(field, RuleRequired, message, sev)
}

// MinLength fails when the value is shorter than n characters.
func MinLength(field string, n int, message string, sev Severity) Rule {
	r := newRule(field, RuleMinLength, message, sev)
	r.Limit = &n
	return r
}

// MaxLength fails when the value is longer than n characters.
func MaxLength(field string, n int, message string, sev Severity) Rule {
	r := newRule(field, RuleMaxLength, message, sev)
	r.Limit = &n
	return r
}

// Pattern fails when the value does not match re.
func Pattern(field string, re *regexp.Regexp, message string, sev Severity) Rule {
	r := newRule(field, RulePattern, message, sev)
	r.Pattern = re
	return r
}

// PatternString compiles src and returns a pattern rule.
func PatternString(field, src, message string, sev Severity) (Rule, error) {
	re, err := regexp.Compile(src)
	if err != nil {
		return Rule{}, fmt.Errorf("compile pattern for %s: %w", field, err)
	}
	return Pattern(field, re, message, sev), nil
}

// Custom fails when check returns false.
func Custom(field string, check Predicate, message string, sev Severity) Rule {
	r := newRule(field, RuleCustom, message, sev)
	r.Check = check
	return r
}

// Named fails when the named validator rejects the value.
func Named(field string, name NamedValidator, message string, sev Severity) Rule {
	r := newRule(field, RuleCustom, message, sev)
	r.Named = name
	return r
}

// RuleSpec is the JSON form of a rule as sent by remote form hosts. Value is
// a number for length rules, a regular expression source for pattern rules
// and a named validator key for custom rules.
type RuleSpec struct {
	Field    string          `json:"field"`
	Type     RuleType        `json:"type"`
	Value    json.RawMessage `json:"value,omitempty"`
	Message  string          `json:"message"`
	Severity Severity        `json:"severity,omitempty"`
}

// ParseRule converts a wire RuleSpec into a typed Rule. Unknown rule types
// are passed through untouched so the engine can skip them at evaluation.
func ParseRule(spec RuleSpec) (Rule, error) {
	if spec.Field == "" {
		return Rule{}, fmt.Errorf("rule field is required")
	}
	if spec.Severity != "" && !spec.Severity.IsValid() {
		return Rule{}, fmt.Errorf("invalid severity %q for field %s", spec.Severity, spec.Field)
	}

	switch spec.Type {
	case RuleRequired:
		return Required(spec.Field, spec.Message, spec.Severity), nil

	case RuleMinLength, RuleMaxLength:
		r := newRule(spec.Field, spec.Type, spec.Message, spec.Severity)
		if len(spec.Value) > 0 && string(spec.Value) != "null" {
			var n int
			if err := json.Unmarshal(spec.Value, &n); err != nil {
				return Rule{}, fmt.Errorf("%s threshold for %s must be an integer: %w", spec.Type, spec.Field, err)
			}
			r.Limit = &n
		}
		return r, nil

	case RulePattern:
		var src string
		if err := json.Unmarshal(spec.Value, &src); err != nil {
			return Rule{}, fmt.Errorf("pattern for %s must be a string: %w", spec.Field, err)
		}
		return PatternString(spec.Field, src, spec.Message, spec.Severity)

	case RuleCustom:
		var name string
		if err := json.Unmarshal(spec.Value, &name); err != nil {
			return Rule{}, fmt.Errorf("custom rule for %s must name a validator: %w", spec.Field, err)
		}
		nv := NamedValidator(name)
		if !nv.IsKnown() {
			return Rule{}, fmt.Errorf("unknown named validator %q", name)
		}
		return Named(spec.Field, nv, spec.Message, spec.Severity), nil
	}

	r := newRule(spec.Field, spec.Type, spec.Message, spec.Severity)
	return r, nil
}

// ParseRules converts a list of wire specs, failing on the first bad one.
func ParseRules(specs []RuleSpec) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for i, spec := range specs {
		r, err := ParseRule(spec)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Spec returns the wire form of r. Predicate rules have no wire form and
// are reported as custom rules without a value.
func (r Rule) Spec() RuleSpec {
	spec := RuleSpec{Field: r.Field, Type: r.Type, Message: r.Message, Severity: r.Severity}
	switch {
	case r.Limit != nil:
		spec.Value, _ = json.Marshal(*r.Limit)
	case r.Pattern != nil:
		spec.Value, _ = json.Marshal(r.Pattern.String())
	case r.Type == RuleCustom && r.Check == nil && r.Named != "":
		spec.Value, _ = json.Marshal(string(r.Named))
	}
	return spec
}

// Specs returns the wire form of every rule.
func Specs(rules []Rule) []RuleSpec {
	out := make([]RuleSpec, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.Spec())
	}
	return out
}
