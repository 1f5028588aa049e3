package validation

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// ValidationError is one failed rule for one field.
type ValidationError struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Type     RuleType `json:"type"`
}

// State is the categorized result of validating a field or a form.
type State struct {
	Errors      []ValidationError `json:"errors"`
	Warnings    []ValidationError `json:"warnings"`
	Infos       []ValidationError `json:"infos"`
	IsValid     bool              `json:"is_valid"`
	HasWarnings bool              `json:"has_warnings"`
	HasInfos    bool              `json:"has_infos"`
}

// NewState returns an empty, valid state.
func NewState() State {
	return State{
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
		Infos:    []ValidationError{},
		IsValid:  true,
	}
}

func (s *State) add(e ValidationError) {
	switch e.Severity {
	case SeverityWarning:
		s.Warnings = append(s.Warnings, e)
	case SeverityInfo:
		s.Infos = append(s.Infos, e)
	default:
		s.Errors = append(s.Errors, e)
	}
}

func (s *State) refresh() {
	s.IsValid = len(s.Errors) == 0
	s.HasWarnings = len(s.Warnings) > 0
	s.HasInfos = len(s.Infos) > 0
}

func (s State) clone() State {
	out := State{
		Errors:   append([]ValidationError{}, s.Errors...),
		Warnings: append([]ValidationError{}, s.Warnings...),
		Infos:    append([]ValidationError{}, s.Infos...),
	}
	out.refresh()
	return out
}

// Engine evaluates rule sets. It holds no per-form state and is safe for
// concurrent use.
type Engine struct {
	logger zerolog.Logger
}

// NewEngine creates an Engine that reports skipped rules to logger.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger}
}

// EvaluateField runs every rule targeting field against value, in order,
// and returns one ValidationError per failing rule.
func (e *Engine) EvaluateField(field string, value interface{}, rules []Rule) []ValidationError {
	var out []ValidationError
	for _, r := range rules {
		if r.Field != field {
			continue
		}
		pass, ok := e.check(r, value)
		if !ok {
			e.logger.Warn().
				Str("field", r.Field).
				Str("rule_type", string(r.Type)).
				Msg("skipping rule with unknown type")
			continue
		}
		if !pass {
			out = append(out, ValidationError{
				Field:    r.Field,
				Message:  r.Message,
				Severity: r.Severity,
				Type:     r.Type,
			})
		}
	}
	return out
}

// EvaluateForm validates every field referenced by rules against data.
func (e *Engine) EvaluateForm(data map[string]interface{}, rules []Rule) State {
	state := NewState()
	for _, field := range Fields(rules) {
		for _, ve := range e.EvaluateField(field, data[field], rules) {
			state.add(ve)
		}
	}
	state.refresh()
	return state
}

// Fields returns the distinct field names referenced by rules in first
// appearance order.
func Fields(rules []Rule) []string {
	seen := make(map[string]bool, len(rules))
	var fields []string
	for _, r := range rules {
		if !seen[r.Field] {
			seen[r.Field] = true
			fields = append(fields, r.Field)
		}
	}
	return fields
}

// check evaluates a single rule. ok is false for rule types the engine
// does not understand.
func (e *Engine) check(r Rule, value interface{}) (pass bool, ok bool) {
	switch r.Type {
	case RuleRequired:
		return !isBlank(value), true

	case RuleMinLength:
		if isEmpty(value) || r.Limit == nil {
			return true, true
		}
		return utf8.RuneCountInString(stringify(value)) >= *r.Limit, true

	case RuleMaxLength:
		if isEmpty(value) || r.Limit == nil {
			return true, true
		}
		return utf8.RuneCountInString(stringify(value)) <= *r.Limit, true

	case RulePattern:
		if isEmpty(value) || r.Pattern == nil {
			return true, true
		}
		return r.Pattern.MatchString(stringify(value)), true

	case RuleCustom:
		if r.Check != nil {
			return r.Check(value), true
		}
		pass, known := checkNamed(r.Named, value)
		if !known {
			return false, false
		}
		return pass, true
	}
	return false, false
}

func isBlank(value interface{}) bool {
	if value == nil {
		return true
	}
	return strings.TrimSpace(stringify(value)) == ""
}

// isEmpty reports a missing value or an empty string. Whitespace is content
// for the length and pattern rules.
func isEmpty(value interface{}) bool {
	return value == nil || stringify(value) == ""
}

// stringify renders a decoded JSON value the way a form would display it.
// Lists are joined with commas so an empty list reads as blank.
func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case []string:
		return strings.Join(v, ",")
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(value)
}
