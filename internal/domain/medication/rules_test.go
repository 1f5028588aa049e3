package medication

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/ehr/chart/internal/platform/validation"
)

func TestDiscontinueRules(t *testing.T) {
	e := validation.NewEngine(zerolog.Nop())

	st := e.EvaluateForm(map[string]interface{}{"reason": ""}, DiscontinueRules())
	if st.IsValid {
		t.Error("expected blank reason to block")
	}

	st = e.EvaluateForm(map[string]interface{}{"reason": "Drug interaction"}, DiscontinueRules())
	if !st.IsValid || st.HasInfos {
		t.Errorf("expected standard reason to pass cleanly, got %+v", st)
	}

	st = e.EvaluateForm(map[string]interface{}{"reason": "Insurance stopped covering it"}, DiscontinueRules())
	if !st.IsValid || !st.HasInfos {
		t.Errorf("expected free-text reason to pass with an info note, got %+v", st)
	}
}

func TestFormRules(t *testing.T) {
	e := validation.NewEngine(zerolog.Nop())

	in := lisinopril()
	in.Indication = "Hypertension"
	st := e.EvaluateForm(FormData(in), FormRules())
	if !st.IsValid || st.HasInfos {
		t.Errorf("expected complete form to pass, got %+v", st)
	}

	in.Dosage.Amount = 2.5
	in.Indication = ""
	st = e.EvaluateForm(FormData(in), FormRules())
	if !st.IsValid || len(st.Infos) != 1 {
		t.Errorf("expected missing indication as info only, got %+v", st)
	}

	in.Dosage.Amount = 0.12345
	in.Frequency.Times = 30
	in.Route = "intrathecal"
	st = e.EvaluateForm(FormData(in), FormRules())
	if st.IsValid {
		t.Fatal("expected invalid form")
	}
	fields := map[string]bool{}
	for _, fe := range st.Errors {
		fields[fe.Field] = true
	}
	for _, f := range []string{"dosage.amount", "frequency.times", "route"} {
		if !fields[f] {
			t.Errorf("expected error for %s, got %v", f, st.Errors)
		}
	}
}

func TestIsDiscontinuationReason(t *testing.T) {
	if !IsDiscontinuationReason("Other") {
		t.Error("expected Other to be listed")
	}
	if IsDiscontinuationReason("other") {
		t.Error("expected match to be exact")
	}
}
