package medication

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReplacementReason is recorded on a medication discontinued by a
// significant change.
const ReplacementReason = "Medication changed - dose/frequency/route modified"

// Chart event types published after a successful save.
const (
	EventCreated       = "medication.created"
	EventUpdated       = "medication.updated"
	EventReplaced      = "medication.replaced"
	EventDiscontinued  = "medication.discontinued"
	EventStatusChanged = "medication.status-changed"
)

// PatientMedications is the slice of a patient record the manager works on.
type PatientMedications struct {
	PatientID   string
	Medications []Medication
}

// PatientStore is the patient-store collaborator. FindPatientByID returns
// nil and no error when the patient does not exist. The manager never
// creates or deletes patients.
type PatientStore interface {
	FindPatientByID(ctx context.Context, id string) (*PatientMedications, error)
	SaveMedications(ctx context.Context, patientID string, meds []Medication) error
}

// EventPublisher receives chart events for a patient.
type EventPublisher interface {
	PublishChartEvent(ctx context.Context, patientID, eventType, resourceID string, payload interface{})
}

// statusTransitions lists the statuses reachable from each status.
var statusTransitions = map[Status]map[Status]bool{
	StatusActive: {
		StatusActive: true, StatusOnHold: true, StatusDiscontinued: true, StatusCompleted: true,
	},
	StatusOnHold: {
		StatusOnHold: true, StatusActive: true, StatusDiscontinued: true, StatusCompleted: true,
	},
	StatusDiscontinued: {
		StatusDiscontinued: true, StatusActive: true,
	},
	StatusCompleted: {
		StatusCompleted: true,
	},
}

// CanTransition reports whether a medication may move from one status to another.
func CanTransition(from, to Status) bool {
	return statusTransitions[from][to]
}

// Manager owns every mutation of a patient's medication list. Mutations are
// serialized and applied to a copy of the list, so a failed save leaves the
// stored list untouched.
type Manager struct {
	mu     sync.Mutex
	store  PatientStore
	events EventPublisher
	logger zerolog.Logger
	now    func() time.Time
}

func NewManager(store PatientStore, logger zerolog.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger.With().Str("component", "medication").Logger(),
		now:    time.Now,
	}
}

// SetEventPublisher attaches an optional publisher for chart events.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	m.events = p
}

// Create adds a new medication to the patient's list.
func (m *Manager) Create(ctx context.Context, patientID string, in NewMedication) (*Medication, error) {
	if in.Status == "" {
		in.Status = StatusActive
	}
	if err := validateNew(in); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	meds, err := m.load(ctx, patientID)
	if err != nil {
		return nil, err
	}

	ts := m.stamp(time.Time{})
	med := Medication{
		ID:                    newID(meds),
		PatientID:             patientID,
		Name:                  in.Name,
		GenericName:           in.GenericName,
		Dosage:                in.Dosage,
		Frequency:             in.Frequency,
		Route:                 in.Route,
		StartDate:             in.StartDate,
		EndDate:               in.EndDate,
		Status:                in.Status,
		DiscontinuationReason: in.DiscontinuationReason,
		PrescribedBy:          in.PrescribedBy,
		Indication:            in.Indication,
		Notes:                 in.Notes,
		CreatedAt:             ts,
		UpdatedAt:             ts,
	}
	if in.Duration != nil {
		d := *in.Duration
		med.Duration = &d
	}
	if in.WeightBased != nil {
		w := *in.WeightBased
		med.WeightBased = &w
	}
	meds = append(meds, med)

	if err := m.save(ctx, patientID, meds); err != nil {
		return nil, err
	}
	m.publish(ctx, patientID, EventCreated, med)
	return ptr(med), nil
}

// Update applies a partial change. A change to dosage, frequency or route
// of an active medication discontinues the original and creates a new
// active record with a fresh id; any other change is merged in place.
func (m *Manager) Update(ctx context.Context, patientID, medicationID string, ch Changes) (*UpdateResult, error) {
	if ch.Route != nil && !ch.Route.IsValid() {
		return nil, fmt.Errorf("%w: unknown route %q", ErrInvalid, *ch.Route)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	meds, idx, err := m.locate(ctx, patientID, medicationID)
	if err != nil {
		return nil, err
	}
	existing := meds[idx]

	if existing.Status == StatusActive && ch.IsSignificant(existing) {
		ts := m.stamp(existing.UpdatedAt)
		today := m.today()

		prev := existing.Clone()
		prev.Status = StatusDiscontinued
		prev.EndDate = today
		prev.DiscontinuationReason = ReplacementReason
		prev.UpdatedAt = ts
		meds[idx] = prev

		next := existing.Clone()
		ch.ApplyTo(&next)
		next.ID = newID(meds)
		next.Status = StatusActive
		next.StartDate = today
		next.EndDate = ""
		next.DiscontinuationReason = ""
		next.CreatedAt = ts
		next.UpdatedAt = ts
		meds = append(meds, next)

		if err := m.save(ctx, patientID, meds); err != nil {
			return nil, err
		}
		m.logger.Info().
			Str("patient_id", patientID).
			Str("previous_id", prev.ID).
			Str("medication_id", next.ID).
			Msg("medication replaced after significant change")
		m.publish(ctx, patientID, EventReplaced, UpdateResult{Medication: &next, Replaced: true, Previous: &prev})
		return &UpdateResult{Medication: ptr(next), Replaced: true, Previous: ptr(prev)}, nil
	}

	updated := existing.Clone()
	ch.ApplyTo(&updated)
	updated.UpdatedAt = m.stamp(existing.UpdatedAt)
	meds[idx] = updated

	if err := m.save(ctx, patientID, meds); err != nil {
		return nil, err
	}
	m.publish(ctx, patientID, EventUpdated, updated)
	return &UpdateResult{Medication: ptr(updated)}, nil
}

// Discontinue stops a medication. Discontinuing an already discontinued
// medication overwrites its end date and reason; a completed medication
// returns a *TransitionError.
func (m *Manager) Discontinue(ctx context.Context, patientID, medicationID, reason string) (*Medication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	meds, idx, err := m.locate(ctx, patientID, medicationID)
	if err != nil {
		return nil, err
	}

	med := meds[idx].Clone()
	if !CanTransition(med.Status, StatusDiscontinued) {
		return nil, &TransitionError{From: med.Status, To: StatusDiscontinued}
	}
	med.Status = StatusDiscontinued
	med.EndDate = m.today()
	med.DiscontinuationReason = reason
	med.UpdatedAt = m.stamp(med.UpdatedAt)
	meds[idx] = med

	if err := m.save(ctx, patientID, meds); err != nil {
		return nil, err
	}
	m.logger.Info().
		Str("patient_id", patientID).
		Str("medication_id", medicationID).
		Str("reason", reason).
		Msg("medication discontinued")
	m.publish(ctx, patientID, EventDiscontinued, med)
	return ptr(med), nil
}

// ChangeStatus moves a medication to a new status. Disallowed transitions
// return a *TransitionError.
func (m *Manager) ChangeStatus(ctx context.Context, patientID, medicationID string, to Status, reason string) (*Medication, error) {
	if !to.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalid, to)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	meds, idx, err := m.locate(ctx, patientID, medicationID)
	if err != nil {
		return nil, err
	}

	med := meds[idx].Clone()
	from := med.Status
	if !CanTransition(from, to) {
		return nil, &TransitionError{From: from, To: to}
	}

	switch to {
	case StatusDiscontinued, StatusCompleted:
		med.EndDate = m.today()
		if reason != "" {
			med.DiscontinuationReason = reason
		}
	case StatusActive:
		if from == StatusDiscontinued || from == StatusCompleted {
			med.EndDate = ""
			med.DiscontinuationReason = ""
		}
	}
	med.Status = to
	med.UpdatedAt = m.stamp(med.UpdatedAt)
	meds[idx] = med

	if err := m.save(ctx, patientID, meds); err != nil {
		return nil, err
	}
	m.logger.Debug().
		Str("patient_id", patientID).
		Str("medication_id", medicationID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("medication status changed")
	m.publish(ctx, patientID, EventStatusChanged, med)
	return ptr(med), nil
}

// CompleteExpired marks active medications whose end date has passed as
// completed. The end date itself is kept. It returns the completed records.
func (m *Manager) CompleteExpired(ctx context.Context, patientID string) ([]Medication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	meds, err := m.load(ctx, patientID)
	if err != nil {
		return nil, err
	}

	today := m.today()
	var completed []Medication
	for i, med := range meds {
		if med.Status != StatusActive || med.EndDate == "" || med.EndDate >= today {
			continue
		}
		med.Status = StatusCompleted
		med.UpdatedAt = m.stamp(med.UpdatedAt)
		meds[i] = med
		completed = append(completed, med)
	}
	if len(completed) == 0 {
		return nil, nil
	}

	if err := m.save(ctx, patientID, meds); err != nil {
		return nil, err
	}
	m.logger.Info().
		Str("patient_id", patientID).
		Int("count", len(completed)).
		Msg("expired medications completed")
	for _, med := range completed {
		m.publish(ctx, patientID, EventStatusChanged, med)
	}
	return CloneAll(completed), nil
}

// GetAll returns the patient's full medication list.
func (m *Manager) GetAll(ctx context.Context, patientID string) ([]Medication, error) {
	return m.load(ctx, patientID)
}

// GetOne returns a single medication. A missing medication is reported as
// found == false; a missing patient is a *NotFoundError.
func (m *Manager) GetOne(ctx context.Context, patientID, medicationID string) (*Medication, bool, error) {
	meds, err := m.load(ctx, patientID)
	if err != nil {
		return nil, false, err
	}
	idx := indexOf(meds, medicationID)
	if idx < 0 {
		return nil, false, nil
	}
	return ptr(meds[idx]), true, nil
}

// GetHistory returns every medication ordered by start date, most recent
// first. Records with the same start date keep their list order.
func (m *Manager) GetHistory(ctx context.Context, patientID string) ([]Medication, error) {
	meds, err := m.load(ctx, patientID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(meds, func(i, j int) bool {
		return meds[i].StartDate > meds[j].StartDate
	})
	return meds, nil
}

// GetActive returns active and on-hold medications in list order.
func (m *Manager) GetActive(ctx context.Context, patientID string) ([]Medication, error) {
	meds, err := m.load(ctx, patientID)
	if err != nil {
		return nil, err
	}
	out := make([]Medication, 0, len(meds))
	for _, med := range meds {
		if med.Status.IsCurrent() {
			out = append(out, med)
		}
	}
	return out, nil
}

func (m *Manager) load(ctx context.Context, patientID string) ([]Medication, error) {
	rec, err := m.store.FindPatientByID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("find patient %s: %w", patientID, err)
	}
	if rec == nil {
		return nil, patientNotFound(patientID)
	}
	meds := CloneAll(rec.Medications)
	if meds == nil {
		meds = []Medication{}
	}
	return meds, nil
}

func (m *Manager) locate(ctx context.Context, patientID, medicationID string) ([]Medication, int, error) {
	meds, err := m.load(ctx, patientID)
	if err != nil {
		return nil, -1, err
	}
	idx := indexOf(meds, medicationID)
	if idx < 0 {
		return nil, -1, medicationNotFound(medicationID)
	}
	return meds, idx, nil
}

func (m *Manager) save(ctx context.Context, patientID string, meds []Medication) error {
	if err := m.store.SaveMedications(ctx, patientID, meds); err != nil {
		return fmt.Errorf("save medications for patient %s: %w", patientID, err)
	}
	return nil
}

func (m *Manager) publish(ctx context.Context, patientID, eventType string, med interface{}) {
	if m.events == nil {
		return
	}
	var id string
	switch v := med.(type) {
	case Medication:
		id = v.ID
	case UpdateResult:
		id = v.Medication.ID
	}
	m.events.PublishChartEvent(ctx, patientID, eventType, id, med)
}

// stamp returns a timestamp strictly after prev.
func (m *Manager) stamp(prev time.Time) time.Time {
	ts := m.now().UTC().Truncate(time.Microsecond)
	if !ts.After(prev) {
		ts = prev.Add(time.Microsecond)
	}
	return ts
}

// today is the current UTC date, matching the UTC updated_at stamps.
func (m *Manager) today() string {
	return m.now().UTC().Format(DateLayout)
}

func validateNew(in NewMedication) error {
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if !in.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, in.Status)
	}
	if in.Route != "" && !in.Route.IsValid() {
		return fmt.Errorf("%w: unknown route %q", ErrInvalid, in.Route)
	}
	return nil
}

func newID(existing []Medication) string {
	for {
		id := uuid.NewString()
		if indexOf(existing, id) < 0 {
			return id
		}
	}
}

func indexOf(meds []Medication, id string) int {
	for i := range meds {
		if meds[i].ID == id {
			return i
		}
	}
	return -1
}

func ptr(m Medication) *Medication {
	out := m.Clone()
	return &out
}
