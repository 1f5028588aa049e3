package validation

import (
	"fmt"
	"sync"
	"time"
)

// ContextError reports use of validation session state outside a live
// session. It signals a broken caller contract and should not be retried.
type ContextError struct {
	Op     string
	Reason string
}

func (e *ContextError) Error() string {
	return fmt.Sprintf("validation %s: %s", e.Op, e.Reason)
}

// Session holds the mutable validation state of a single form. Create one
// per form with NewSession and Close it when the form goes away; a nil or
// closed session rejects every operation with a *ContextError.
type Session struct {
	mu       sync.Mutex
	engine   *Engine
	state    State
	closed   bool
	lastUsed time.Time
	now      func() time.Time
}

// NewSession opens a session evaluating rules with engine.
func NewSession(engine *Engine) *Session {
	return newSession(engine, time.Now)
}

func newSession(engine *Engine, now func() time.Time) *Session {
	return &Session{
		engine:   engine,
		state:    NewState(),
		lastUsed: now(),
		now:      now,
	}
}

// lock acquires the session for op, returning a *ContextError if it is not
// usable. On success the caller must unlock.
func (s *Session) lock(op string) error {
	if s == nil {
		return &ContextError{Op: op, Reason: "no validation session in scope"}
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return &ContextError{Op: op, Reason: "validation session is closed"}
	}
	s.lastUsed = s.now()
	return nil
}

// AddError upserts e: any entry with the same field and rule type is
// removed from all severities before e is stored under its own severity.
func (s *Session) AddError(e ValidationError) error {
	if err := s.lock("addError"); err != nil {
		return err
	}
	defer s.mu.Unlock()

	s.removeWhere(func(x ValidationError) bool {
		return x.Field == e.Field && x.Type == e.Type
	})
	s.state.add(e)
	s.state.refresh()
	return nil
}

// RemoveError drops the entry for field and rule type, if any.
func (s *Session) RemoveError(field string, t RuleType) error {
	if err := s.lock("removeError"); err != nil {
		return err
	}
	defer s.mu.Unlock()

	s.removeWhere(func(x ValidationError) bool {
		return x.Field == field && x.Type == t
	})
	s.state.refresh()
	return nil
}

// Clear removes the entries of the given fields, or everything when no
// field is given.
func (s *Session) Clear(fields ...string) error {
	if err := s.lock("clear"); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if len(fields) == 0 {
		s.state = NewState()
		return nil
	}
	drop := make(map[string]bool, len(fields))
	for _, f := range fields {
		drop[f] = true
	}
	s.removeWhere(func(x ValidationError) bool { return drop[x.Field] })
	s.state.refresh()
	return nil
}

// ValidateField re-evaluates one field and replaces its entries with the
// result, leaving other fields untouched.
func (s *Session) ValidateField(field string, value interface{}, rules []Rule) ([]ValidationError, error) {
	if err := s.lock("validateField"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	found := s.engine.EvaluateField(field, value, rules)
	s.removeWhere(func(x ValidationError) bool { return x.Field == field })
	for _, e := range found {
		s.state.add(e)
	}
	s.state.refresh()
	return found, nil
}

// ValidateForm evaluates the whole form and replaces the session state.
func (s *Session) ValidateForm(data map[string]interface{}, rules []Rule) (State, error) {
	if err := s.lock("validateForm"); err != nil {
		return State{}, err
	}
	defer s.mu.Unlock()

	s.state = s.engine.EvaluateForm(data, rules)
	return s.state.clone(), nil
}

// State returns a snapshot of the current state.
func (s *Session) State() (State, error) {
	if err := s.lock("state"); err != nil {
		return State{}, err
	}
	defer s.mu.Unlock()
	return s.state.clone(), nil
}

// FieldErrors returns the error-severity entries for field.
func (s *Session) FieldErrors(field string) ([]ValidationError, error) {
	return s.fieldEntries("getFieldErrors", field, func(st *State) []ValidationError { return st.Errors })
}

// FieldWarnings returns the warning-severity entries for field.
func (s *Session) FieldWarnings(field string) ([]ValidationError, error) {
	return s.fieldEntries("getFieldWarnings", field, func(st *State) []ValidationError { return st.Warnings })
}

// FieldInfos returns the info-severity entries for field.
func (s *Session) FieldInfos(field string) ([]ValidationError, error) {
	return s.fieldEntries("getFieldInfos", field, func(st *State) []ValidationError { return st.Infos })
}

func (s *Session) fieldEntries(op, field string, bucket func(*State) []ValidationError) ([]ValidationError, error) {
	if err := s.lock(op); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	out := []ValidationError{}
	for _, e := range bucket(&s.state) {
		if e.Field == field {
			out = append(out, e)
		}
	}
	return out, nil
}

// Close ends the session. Closing twice is a no-op.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.closed = true
	s.state = NewState()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) removeWhere(match func(ValidationError) bool) {
	s.state.Errors = filterOut(s.state.Errors, match)
	s.state.Warnings = filterOut(s.state.Warnings, match)
	s.state.Infos = filterOut(s.state.Infos, match)
}

func filterOut(in []ValidationError, match func(ValidationError) bool) []ValidationError {
	out := in[:0]
	for _, e := range in {
		if !match(e) {
			out = append(out, e)
		}
	}
	return out
}
