// Package notes holds the chart-entry templates, their fixed validation rule
// sets and the service that files validated entries on a patient chart.
package notes

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/ehr/chart/internal/platform/validation"
)

type TemplateType string

const (
	ProgressNote     TemplateType = "progress_note"
	AdmissionNote    TemplateType = "admission_note"
	ProcedureNote    TemplateType = "procedure_note"
	DischargeSummary TemplateType = "discharge_summary"
	ConsultationNote TemplateType = "consultation_note"
	EmergencyNote    TemplateType = "emergency_note"
	QuickNote        TemplateType = "quick_note"
)

// Template describes a chart-entry kind.
type Template struct {
	Type   TemplateType `json:"type"`
	Title  string       `json:"title"`
	Fields []string     `json:"fields"`
}

var templateOrder = []TemplateType{
	ProgressNote, AdmissionNote, ProcedureNote, DischargeSummary,
	ConsultationNote, EmergencyNote, QuickNote,
}

var templateTitles = map[TemplateType]string{
	ProgressNote:     "Progress Note",
	AdmissionNote:    "Admission Note",
	ProcedureNote:    "Procedure Note",
	DischargeSummary: "Discharge Summary",
	ConsultationNote: "Consultation Note",
	EmergencyNote:    "Emergency Note",
	QuickNote:        "Quick Note",
}

func (t TemplateType) IsValid() bool {
	_, ok := templateTitles[t]
	return ok
}

func (t TemplateType) Title() string {
	return templateTitles[t]
}

// Templates lists every template with the fields its rules reference.
func Templates() []Template {
	out := make([]Template, 0, len(templateOrder))
	for _, t := range templateOrder {
		rules, _ := Rules(t)
		out = append(out, Template{Type: t, Title: t.Title(), Fields: validation.Fields(rules)})
	}
	return out
}

func soapRules() []validation.Rule {
	return []validation.Rule{
		validation.Required("subjective", "Subjective findings are required", validation.SeverityError),
		validation.Required("objective", "Objective findings are required", validation.SeverityError),
		validation.Required("assessment", "Assessment is required", validation.SeverityError),
		validation.Required("plan", "Plan is required", validation.SeverityError),
	}
}

// Rules returns the fixed rule set for a template.
func Rules(t TemplateType) ([]validation.Rule, bool) {
	switch t {
	case ProgressNote:
		return append(soapRules(),
			validation.MinLength("subjective", 10, "Subjective section seems brief", validation.SeverityWarning),
			validation.MinLength("objective", 10, "Objective section seems brief", validation.SeverityWarning),
			validation.MinLength("assessment", 5, "Assessment seems brief", validation.SeverityWarning),
			validation.MinLength("plan", 10, "Plan seems brief", validation.SeverityWarning),
		), true

	case AdmissionNote:
		return append(soapRules(),
			validation.Required("pastMedicalHistory", "Past medical history is required", validation.SeverityError),
			validation.Required("socialHistory", "Social history is required", validation.SeverityError),
			validation.Required("familyHistory", "Family history is required", validation.SeverityError),
		), true

	case ProcedureNote:
		return append(soapRules(),
			validation.Custom("informedConsent", isTrue, "Informed consent must be documented", validation.SeverityError),
			validation.Required("procedureStartTime", "Procedure start time is required", validation.SeverityError),
			validation.Required("procedureEndTime", "Procedure end time is required", validation.SeverityError),
			validation.Named("procedureStartTime", validation.ValidatorTime, "Start time should be HH:MM", validation.SeverityWarning),
			validation.Named("procedureEndTime", validation.ValidatorTime, "End time should be HH:MM", validation.SeverityWarning),
		), true

	case DischargeSummary:
		return append(soapRules(),
			validation.Custom("dischargeDiagnoses", hasEntries, "At least one discharge diagnosis is required", validation.SeverityError),
			validation.Required("followUpInstructions", "Follow-up instructions are required", validation.SeverityError),
		), true

	case ConsultationNote:
		return append(soapRules(),
			validation.Required("referringPhysician", "Referring physician is required", validation.SeverityError),
		), true

	case EmergencyNote:
		return append(soapRules(),
			validation.Required("personnel", "Consider listing personnel present", validation.SeverityWarning),
			validation.Required("interventions", "Consider documenting interventions", validation.SeverityWarning),
		), true

	case QuickNote:
		return []validation.Rule{
			validation.Required("subjective", "Note text is required", validation.SeverityError),
			validation.MinLength("subjective", 5, "Note seems brief", validation.SeverityWarning),
		}, true
	}
	return nil, false
}

// Catalog resolves template rule sets by name for the validation API.
func Catalog(name string) ([]validation.Rule, bool) {
	return Rules(TemplateType(name))
}

var requiredEngine = validation.NewEngine(zerolog.Nop())

// ValidateRequiredFieldsCompletion reports whether every required rule of
// error severity passes. Warnings and other rule types are ignored.
func ValidateRequiredFieldsCompletion(data map[string]interface{}, t TemplateType) bool {
	rules, ok := Rules(t)
	if !ok {
		return false
	}
	required := make([]validation.Rule, 0, len(rules))
	for _, r := range rules {
		if r.Type == validation.RuleRequired && r.Severity == validation.SeverityError {
			required = append(required, r)
		}
	}
	return requiredEngine.EvaluateForm(data, required).IsValid
}

func isTrue(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(strings.TrimSpace(b), "true")
	}
	return false
}

func hasEntries(v interface{}) bool {
	switch d := v.(type) {
	case []interface{}:
		for _, item := range d {
			if s, ok := item.(string); ok && strings.TrimSpace(s) == "" {
				continue
			}
			if item != nil {
				return true
			}
		}
	case []string:
		for _, s := range d {
			if strings.TrimSpace(s) != "" {
				return true
			}
		}
	case string:
		return strings.TrimSpace(d) != ""
	}
	return false
}
