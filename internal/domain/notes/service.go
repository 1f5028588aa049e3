package notes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/chart/internal/platform/validation"
)

// EventCreated is published after a chart entry is filed.
const EventCreated = "chart-entry.created"

var ErrUnknownTemplate = errors.New("unknown template")

type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChartEntry is a filed note on a patient chart.
type ChartEntry struct {
	ID        string                 `json:"id"`
	PatientID string                 `json:"patient_id"`
	Template  TemplateType           `json:"template"`
	Title     string                 `json:"title"`
	Data      map[string]interface{} `json:"data"`
	Author    Author                 `json:"author"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Clone returns a deep copy of e.
func (e ChartEntry) Clone() ChartEntry {
	out := e
	out.Data = copyMap(e.Data)
	return out
}

// CloneEntries deep-copies a chart-entry list.
func CloneEntries(entries []ChartEntry) []ChartEntry {
	if entries == nil {
		return nil
	}
	out := make([]ChartEntry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}

type NewEntry struct {
	Template TemplateType
	Title    string
	Data     map[string]interface{}
	Author   Author
}

// NotFoundError is returned when a patient or chart entry does not resolve.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// ValidationFailedError carries the blocking validation state of a rejected entry.
type ValidationFailedError struct {
	Template TemplateType
	State    validation.State
}

func (e *ValidationFailedError) Error() string {
	fields := make([]string, 0, len(e.State.Errors))
	for _, ve := range e.State.Errors {
		fields = append(fields, ve.Field)
	}
	return fmt.Sprintf("%s failed validation: %s", e.Template, strings.Join(fields, ", "))
}

type PatientEntries struct {
	PatientID string
	Entries   []ChartEntry
}

// PatientStore is the patient-store collaborator. FindPatientEntries
// returns nil and no error when the patient does not exist.
type PatientStore interface {
	FindPatientEntries(ctx context.Context, id string) (*PatientEntries, error)
	SaveChartEntries(ctx context.Context, patientID string, entries []ChartEntry) error
}

type EventPublisher interface {
	PublishChartEvent(ctx context.Context, patientID, eventType, resourceID string, payload interface{})
}

type Service struct {
	mu     sync.Mutex
	store  PatientStore
	engine *validation.Engine
	events EventPublisher
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(store PatientStore, engine *validation.Engine, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		engine: engine,
		logger: logger.With().Str("component", "notes").Logger(),
		now:    time.Now,
	}
}

// SetEventPublisher attaches an optional publisher for chart events.
func (s *Service) SetEventPublisher(p EventPublisher) {
	s.events = p
}

// Evaluate runs the template rule set against data.
func (s *Service) Evaluate(t TemplateType, data map[string]interface{}) (validation.State, error) {
	rules, ok := Rules(t)
	if !ok {
		return validation.State{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, t)
	}
	return s.engine.EvaluateForm(data, rules), nil
}

// Create validates an entry against its template and files it on the
// patient chart. Blocking errors return a *ValidationFailedError; the
// returned state carries any warnings and infos of an accepted entry.
func (s *Service) Create(ctx context.Context, patientID string, in NewEntry) (*ChartEntry, validation.State, error) {
	state, err := s.Evaluate(in.Template, in.Data)
	if err != nil {
		return nil, validation.State{}, err
	}
	if !state.IsValid {
		return nil, state, &ValidationFailedError{Template: in.Template, State: state}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx, patientID)
	if err != nil {
		return nil, state, err
	}

	ts := s.now().UTC()
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = fmt.Sprintf("%s - %s", in.Template.Title(), ts.Format("2006-01-02"))
	}
	entry := ChartEntry{
		ID:        uuid.NewString(),
		PatientID: patientID,
		Template:  in.Template,
		Title:     title,
		Data:      copyMap(in.Data),
		Author:    in.Author,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if entry.Data == nil {
		entry.Data = map[string]interface{}{}
	}
	entries = append(entries, entry)

	if err := s.store.SaveChartEntries(ctx, patientID, entries); err != nil {
		return nil, state, fmt.Errorf("save chart entries for patient %s: %w", patientID, err)
	}
	s.logger.Info().
		Str("patient_id", patientID).
		Str("entry_id", entry.ID).
		Str("template", string(in.Template)).
		Msg("chart entry filed")
	if s.events != nil {
		s.events.PublishChartEvent(ctx, patientID, EventCreated, entry.ID, entry)
	}

	out := entry.Clone()
	return &out, state, nil
}

// List returns the patient's chart entries, newest first.
func (s *Service) List(ctx context.Context, patientID string) ([]ChartEntry, error) {
	entries, err := s.load(ctx, patientID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

func (s *Service) Get(ctx context.Context, patientID, entryID string) (*ChartEntry, error) {
	entries, err := s.load(ctx, patientID)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID == entryID {
			return &entries[i], nil
		}
	}
	return nil, &NotFoundError{Kind: "chart entry", ID: entryID}
}

func (s *Service) load(ctx context.Context, patientID string) ([]ChartEntry, error) {
	rec, err := s.store.FindPatientEntries(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("find patient %s: %w", patientID, err)
	}
	if rec == nil {
		return nil, &NotFoundError{Kind: "patient", ID: patientID}
	}
	entries := CloneEntries(rec.Entries)
	if entries == nil {
		entries = []ChartEntry{}
	}
	return entries, nil
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return copyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}
	return v
}
