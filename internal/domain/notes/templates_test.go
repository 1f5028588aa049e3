package notes

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/ehr/chart/internal/platform/validation"
)

func completeSOAP() map[string]interface{} {
	return map[string]interface{}{
		"subjective": "Patient reports mild headache",
		"objective":  "BP 128/82, afebrile",
		"assessment": "Tension headache",
		"plan":       "Rest, hydration, follow up in 1 week",
	}
}

func TestValidateRequiredFieldsCompletion_ProgressNote(t *testing.T) {
	data := completeSOAP()
	if !ValidateRequiredFieldsCompletion(data, ProgressNote) {
		t.Error("expected complete progress note")
	}

	for _, field := range []string{"subjective", "objective", "assessment", "plan"} {
		d := completeSOAP()
		d[field] = "   "
		if ValidateRequiredFieldsCompletion(d, ProgressNote) {
			t.Errorf("expected blank %s to block completion", field)
		}
		delete(d, field)
		if ValidateRequiredFieldsCompletion(d, ProgressNote) {
			t.Errorf("expected missing %s to block completion", field)
		}
	}

	// Short values trigger minLength warnings only.
	short := map[string]interface{}{"subjective": "a", "objective": "b", "assessment": "c", "plan": "d"}
	if !ValidateRequiredFieldsCompletion(short, ProgressNote) {
		t.Error("expected warnings not to block completion")
	}
}

func TestValidateRequiredFieldsCompletion_UnknownTemplate(t *testing.T) {
	if ValidateRequiredFieldsCompletion(completeSOAP(), TemplateType("haiku")) {
		t.Error("expected unknown template to be incomplete")
	}
}

func TestRules_Catalog(t *testing.T) {
	e := validation.NewEngine(zerolog.Nop())

	tests := []struct {
		template TemplateType
		extra    map[string]interface{}
		errors   int
		warnings int
	}{
		{ProgressNote, nil, 0, 0},
		{AdmissionNote, nil, 3, 0},
		{AdmissionNote, map[string]interface{}{
			"pastMedicalHistory": "HTN", "socialHistory": "Non-smoker", "familyHistory": "None",
		}, 0, 0},
		{ProcedureNote, nil, 3, 0},
		{ProcedureNote, map[string]interface{}{
			"informedConsent": true, "procedureStartTime": "09:00", "procedureEndTime": "9am",
		}, 0, 1},
		{ProcedureNote, map[string]interface{}{
			"informedConsent": false, "procedureStartTime": "09:00", "procedureEndTime": "09:30",
		}, 1, 0},
		{DischargeSummary, nil, 2, 0},
		{DischargeSummary, map[string]interface{}{
			"dischargeDiagnoses": []interface{}{"I10"}, "followUpInstructions": "PCP in 1 week",
		}, 0, 0},
		{DischargeSummary, map[string]interface{}{
			"dischargeDiagnoses": []interface{}{}, "followUpInstructions": "PCP in 1 week",
		}, 1, 0},
		{ConsultationNote, nil, 1, 0},
		{EmergencyNote, nil, 0, 2},
	}
	for _, tt := range tests {
		rules, ok := Rules(tt.template)
		if !ok {
			t.Fatalf("%s: expected rule set", tt.template)
		}
		data := completeSOAP()
		for k, v := range tt.extra {
			data[k] = v
		}
		st := e.EvaluateForm(data, rules)
		if len(st.Errors) != tt.errors || len(st.Warnings) != tt.warnings {
			t.Errorf("%s %v: expected %d errors/%d warnings, got %v / %v",
				tt.template, tt.extra, tt.errors, tt.warnings, st.Errors, st.Warnings)
		}
	}
}

func TestRules_QuickNote(t *testing.T) {
	e := validation.NewEngine(zerolog.Nop())
	rules, _ := Rules(QuickNote)

	st := e.EvaluateForm(map[string]interface{}{"subjective": "ok"}, rules)
	if !st.IsValid || len(st.Warnings) != 1 {
		t.Errorf("expected valid with one warning, got %+v", st)
	}
	if !ValidateRequiredFieldsCompletion(map[string]interface{}{"subjective": "ok"}, QuickNote) {
		t.Error("expected quick note with subjective to be complete")
	}

	st = e.EvaluateForm(map[string]interface{}{"subjective": "   "}, rules)
	if st.IsValid || len(st.Errors) != 1 || len(st.Warnings) != 1 {
		t.Errorf("expected required error and minLength warning for whitespace, got %+v", st)
	}
	if len(st.Warnings) == 1 && st.Warnings[0].Type != validation.RuleMinLength {
		t.Errorf("expected minLength warning, got %+v", st.Warnings[0])
	}
}

func TestTemplates(t *testing.T) {
	all := Templates()
	if len(all) != 7 {
		t.Fatalf("expected 7 templates, got %d", len(all))
	}
	if all[0].Type != ProgressNote || all[0].Title != "Progress Note" {
		t.Errorf("unexpected first template: %+v", all[0])
	}
	last := all[6]
	if last.Type != QuickNote || len(last.Fields) != 1 || last.Fields[0] != "subjective" {
		t.Errorf("unexpected quick note template: %+v", last)
	}
	if _, ok := Catalog("emergency_note"); !ok {
		t.Error("expected catalog to resolve template names")
	}
}
