package validation

import (
	"errors"
	"testing"
	"time"
)

func TestSession_AddErrorUpsertsAcrossSeverities(t *testing.T) {
	s := NewSession(newTestEngine())

	if err := s.AddError(ValidationError{Field: "dose", Message: "too high", Severity: SeverityError, Type: RuleCustom}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.AddError(ValidationError{Field: "dose", Message: "check dose", Severity: SeverityWarning, Type: RuleCustom}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st, err := s.State()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(st.Errors) != 0 {
		t.Errorf("expected error bucket to be empty, got %v", st.Errors)
	}
	if len(st.Warnings) != 1 || st.Warnings[0].Message != "check dose" {
		t.Errorf("expected single warning with latest message, got %v", st.Warnings)
	}
	if !st.IsValid || !st.HasWarnings {
		t.Errorf("expected valid state with warnings, got %+v", st)
	}
}

func TestSession_AddErrorKeepsDifferentRuleTypes(t *testing.T) {
	s := NewSession(newTestEngine())
	_ = s.AddError(ValidationError{Field: "name", Severity: SeverityError, Type: RuleRequired})
	_ = s.AddError(ValidationError{Field: "name", Severity: SeverityError, Type: RuleMaxLength})

	errs, err := s.FieldErrors("name")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(errs) != 2 {
		t.Errorf("expected 2 errors for distinct rule types, got %d", len(errs))
	}
}

func TestSession_ClearField(t *testing.T) {
	s := NewSession(newTestEngine())
	_ = s.AddError(ValidationError{Field: "a", Severity: SeverityError, Type: RuleRequired})
	_ = s.AddError(ValidationError{Field: "a", Severity: SeverityInfo, Type: RuleMinLength})
	_ = s.AddError(ValidationError{Field: "b", Severity: SeverityWarning, Type: RuleRequired})

	if err := s.Clear("a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st, _ := s.State()
	if len(st.Errors) != 0 || len(st.Infos) != 0 {
		t.Errorf("expected field a removed from all buckets, got %+v", st)
	}
	if len(st.Warnings) != 1 {
		t.Errorf("expected field b to remain, got %v", st.Warnings)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st, _ = s.State()
	if st.HasWarnings || !st.IsValid {
		t.Errorf("expected empty state after full clear, got %+v", st)
	}
}

func TestSession_RemoveError(t *testing.T) {
	s := NewSession(newTestEngine())
	_ = s.AddError(ValidationError{Field: "a", Severity: SeverityError, Type: RuleRequired})
	if err := s.RemoveError("a", RuleRequired); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st, _ := s.State()
	if !st.IsValid {
		t.Errorf("expected valid state after remove, got %v", st.Errors)
	}
}

func TestSession_ValidateFieldMergesWithOtherFields(t *testing.T) {
	s := NewSession(newTestEngine())
	rules := []Rule{
		Required("subjective", "required", SeverityError),
		MinLength("subjective", 10, "short", SeverityWarning),
		Required("plan", "required", SeverityError),
	}

	if _, err := s.ValidateForm(map[string]interface{}{}, rules); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found, err := s.ValidateField("subjective", "headache", rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(found) != 1 || found[0].Type != RuleMinLength {
		t.Errorf("expected minLength warning, got %v", found)
	}

	errs, _ := s.FieldErrors("subjective")
	if len(errs) != 0 {
		t.Errorf("expected subjective required error to flip to pass, got %v", errs)
	}
	warns, _ := s.FieldWarnings("subjective")
	if len(warns) != 1 {
		t.Errorf("expected 1 subjective warning, got %v", warns)
	}
	planErrs, _ := s.FieldErrors("plan")
	if len(planErrs) != 1 {
		t.Errorf("expected plan error from form validation to remain, got %v", planErrs)
	}
}

func TestSession_StateIsSnapshot(t *testing.T) {
	s := NewSession(newTestEngine())
	_ = s.AddError(ValidationError{Field: "a", Severity: SeverityError, Type: RuleRequired})
	st, _ := s.State()
	st.Errors[0].Message = "mutated"

	again, _ := s.State()
	if again.Errors[0].Message == "mutated" {
		t.Error("expected State to return a copy")
	}
}

func TestSession_NilSessionIsContextError(t *testing.T) {
	var s *Session
	_, err := s.State()
	var ce *ContextError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ContextError, got %v", err)
	}
	if err := s.AddError(ValidationError{Field: "a"}); !errors.As(err, &ce) {
		t.Errorf("expected ContextError from AddError, got %v", err)
	}
	if _, err := s.FieldInfos("a"); !errors.As(err, &ce) {
		t.Errorf("expected ContextError from FieldInfos, got %v", err)
	}
}

func TestSession_ClosedSessionIsContextError(t *testing.T) {
	s := NewSession(newTestEngine())
	s.Close()
	s.Close()

	var ce *ContextError
	if err := s.Clear(); !errors.As(err, &ce) {
		t.Errorf("expected ContextError after close, got %v", err)
	}
	if _, err := s.ValidateField("a", "x", nil); !errors.As(err, &ce) {
		t.Errorf("expected ContextError from ValidateField after close, got %v", err)
	}
}

func TestRegistry_OpenGetClose(t *testing.T) {
	r := NewRegistry(newTestEngine(), time.Minute)
	id, s := r.Open()
	if id == "" || s == nil {
		t.Fatal("expected session handle")
	}

	got, err := r.Get(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != s {
		t.Error("expected same session for handle")
	}

	r.Close(id)
	if _, err := r.Get(id); err == nil {
		t.Error("expected error for closed handle")
	}
	if _, err := s.State(); err == nil {
		t.Error("expected closed session to reject access")
	}
}

func TestRegistry_UnknownHandle(t *testing.T) {
	r := NewRegistry(newTestEngine(), 0)
	_, err := r.Get("missing")
	var ce *ContextError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ContextError, got %v", err)
	}
}

func TestRegistry_Expiry(t *testing.T) {
	r := NewRegistry(newTestEngine(), time.Minute)
	idA, _ := r.Open()
	r.Open()

	r.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	if _, err := r.Get(idA); err == nil {
		t.Error("expected expired handle to fail")
	}
	if n := r.Sweep(); n != 1 {
		t.Errorf("expected sweep to close 1 remaining session, closed %d", n)
	}
	if r.Len() != 0 {
		t.Errorf("expected no open sessions, got %d", r.Len())
	}
}

func TestRegistry_ExpiryFollowsSessionUse(t *testing.T) {
	clock := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	r := NewRegistry(newTestEngine(), time.Minute)
	r.now = func() time.Time { return clock }

	id, s := r.Open()
	clock = clock.Add(50 * time.Second)
	if err := s.AddError(ValidationError{Field: "plan", Message: "m", Severity: SeverityWarning, Type: RuleMinLength}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock = clock.Add(50 * time.Second)
	if _, err := r.Get(id); err != nil {
		t.Fatalf("expected recently used session to stay open: %v", err)
	}

	clock = clock.Add(61 * time.Second)
	if _, err := r.Get(id); err == nil {
		t.Error("expected idle session to expire")
	}
}
