package patient

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ehr/chart/internal/domain/medication"
	"github.com/ehr/chart/internal/domain/notes"
	"github.com/ehr/chart/internal/platform/validation"
)

func TestMedicationStore_WithManager(t *testing.T) {
	repo := seedRepo(t, 1)
	mgr := medication.NewManager(NewMedicationStore(repo), zerolog.Nop())
	ctx := context.Background()

	created, err := mgr.Create(ctx, "1", medication.NewMedication{
		Name:         "Metformin",
		Dosage:       medication.Dosage{Amount: 500, Unit: "mg"},
		Frequency:    medication.Frequency{Times: 2, Period: medication.PeriodDaily},
		Route:        medication.RouteOral,
		StartDate:    "2024-01-15",
		PrescribedBy: medication.Prescriber{ID: "d1", Name: "Dr. Lee"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, found, err := mgr.GetOne(ctx, "1", created.ID)
	if err != nil || !found || got.Name != "Metformin" {
		t.Fatalf("expected created medication to be fetchable, got %+v %v %v", got, found, err)
	}

	p, _ := repo.FindByID(ctx, "1")
	if len(p.Medications) != 1 || p.Medications[0].ID != created.ID {
		t.Errorf("expected medication stored on patient, got %+v", p.Medications)
	}

	_, err = mgr.Create(ctx, "999", medication.NewMedication{Name: "X"})
	var nf *medication.NotFoundError
	if !errors.As(err, &nf) || nf.ID != "999" {
		t.Errorf("expected not found for patient 999, got %v", err)
	}
}

func TestChartEntryStore_WithService(t *testing.T) {
	repo := seedRepo(t, 1)
	svc := notes.NewService(NewChartEntryStore(repo), validation.NewEngine(zerolog.Nop()), zerolog.Nop())
	ctx := context.Background()

	entry, _, err := svc.Create(ctx, "1", notes.NewEntry{
		Template: notes.QuickNote,
		Data:     map[string]interface{}{"subjective": "Follow-up call completed"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, _ := repo.FindByID(ctx, "1")
	if len(p.ChartEntries) != 1 || p.ChartEntries[0].ID != entry.ID {
		t.Errorf("expected entry stored on patient, got %+v", p.ChartEntries)
	}
	if s := p.Summary(); s.ChartEntries != 1 || s.Name != "Pat Number1" {
		t.Errorf("unexpected summary: %+v", s)
	}
}

func TestService_ReRegisterKeepsMedicationHistory(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, zerolog.Nop())
	mgr := medication.NewManager(NewMedicationStore(repo), zerolog.Nop())
	ctx := context.Background()

	if err := svc.Register(ctx, &Patient{ID: "1", MRN: "MRN-1", FirstName: "Ada", LastName: "Byron"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	created, err := mgr.Create(ctx, "1", medication.NewMedication{
		Name:         "Lisinopril",
		Dosage:       medication.Dosage{Amount: 10, Unit: "mg"},
		Frequency:    medication.Frequency{Times: 1, Period: medication.PeriodDaily},
		Route:        medication.RouteOral,
		StartDate:    "2024-01-15",
		PrescribedBy: medication.Prescriber{ID: "d1", Name: "Dr. Lee"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := mgr.Update(ctx, "1", created.ID, medication.Changes{Dosage: &medication.Dosage{Amount: 20, Unit: "mg"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = svc.Register(ctx, &Patient{ID: "1", MRN: "MRN-1", FirstName: "Ada", LastName: "Byron"})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	all, err := mgr.GetAll(ctx, "1")
	if err != nil || len(all) != 2 {
		t.Errorf("expected both medication records kept, got %d (%v)", len(all), err)
	}
}
