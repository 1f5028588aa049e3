package patient

import (
	"context"
	"fmt"

	"github.com/ehr/chart/internal/domain/medication"
)

const sweepPageSize = 100

// ExpiryCompleter completes a patient's medications whose end date passed.
type ExpiryCompleter interface {
	CompleteExpired(ctx context.Context, patientID string) ([]medication.Medication, error)
}

// SweepExpiredMedications walks every patient and completes active
// medications past their end date. It returns the number completed.
func SweepExpiredMedications(ctx context.Context, repo Repository, completer ExpiryCompleter) (int, error) {
	total := 0
	for offset := 0; ; offset += sweepPageSize {
		page, count, err := repo.List(ctx, sweepPageSize, offset)
		if err != nil {
			return total, fmt.Errorf("list patients: %w", err)
		}
		for _, p := range page {
			if !hasEndDatedActive(p.Medications) {
				continue
			}
			done, err := completer.CompleteExpired(ctx, p.ID)
			if err != nil {
				return total, fmt.Errorf("complete expired medications for patient %s: %w", p.ID, err)
			}
			total += len(done)
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if offset+len(page) >= count || len(page) == 0 {
			return total, nil
		}
	}
}

func hasEndDatedActive(meds []medication.Medication) bool {
	for _, m := range meds {
		if m.Status == medication.StatusActive && m.EndDate != "" {
			return true
		}
	}
	return false
}
