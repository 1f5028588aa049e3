package patient

import (
	"context"

	"github.com/ehr/chart/internal/domain/medication"
	"github.com/ehr/chart/internal/domain/notes"
)

// Repository persists patients. FindByID returns nil and no error when the
// patient does not exist; the list savers return ErrNotFound instead. Create
// never overwrites: an existing id yields ErrDuplicateID and an existing MRN
// ErrDuplicateMRN. Medication and chart-entry lists change only through the
// list savers.
type Repository interface {
	FindByID(ctx context.Context, id string) (*Patient, error)
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	Create(ctx context.Context, p *Patient) error
	SaveMedications(ctx context.Context, id string, meds []medication.Medication) error
	SaveChartEntries(ctx context.Context, id string, entries []notes.ChartEntry) error
}

// MedicationStore adapts a Repository to the medication manager.
type MedicationStore struct {
	repo Repository
}

func NewMedicationStore(repo Repository) *MedicationStore {
	return &MedicationStore{repo: repo}
}

func (s *MedicationStore) FindPatientByID(ctx context.Context, id string) (*medication.PatientMedications, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}
	return &medication.PatientMedications{PatientID: p.ID, Medications: p.Medications}, nil
}

func (s *MedicationStore) SaveMedications(ctx context.Context, id string, meds []medication.Medication) error {
	return s.repo.SaveMedications(ctx, id, meds)
}

// ChartEntryStore adapts a Repository to the notes service.
type ChartEntryStore struct {
	repo Repository
}

func NewChartEntryStore(repo Repository) *ChartEntryStore {
	return &ChartEntryStore{repo: repo}
}

func (s *ChartEntryStore) FindPatientEntries(ctx context.Context, id string) (*notes.PatientEntries, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}
	return &notes.PatientEntries{PatientID: p.ID, Entries: p.ChartEntries}, nil
}

func (s *ChartEntryStore) SaveChartEntries(ctx context.Context, id string, entries []notes.ChartEntry) error {
	return s.repo.SaveChartEntries(ctx, id, entries)
}
