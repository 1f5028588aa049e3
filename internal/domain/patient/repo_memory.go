package patient

import (
	"context"
	"sync"
	"time"

	"github.com/ehr/chart/internal/domain/medication"
	"github.com/ehr/chart/internal/domain/notes"
	"github.com/ehr/chart/pkg/pagination"
)

type memoryRepo struct {
	mu    sync.RWMutex
	byID  map[string]*Patient
	order []string
	now   func() time.Time
}

// NewMemoryRepo returns a process-local store. Every read and write copies,
// so callers never share state with the store.
func NewMemoryRepo() Repository {
	return &memoryRepo{byID: make(map[string]*Patient), now: time.Now}
}

func (r *memoryRepo) FindByID(_ context.Context, id string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

func (r *memoryRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := len(r.order)
	start, end := pagination.Params{Limit: limit, Offset: offset}.Bounds(total)
	out := make([]*Patient, 0, end-start)
	for _, id := range r.order[start:end] {
		out = append(out, r.byID[id].Clone())
	}
	return out, total, nil
}

func (r *memoryRepo) Create(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[p.ID]; ok {
		return ErrDuplicateID
	}
	for _, existing := range r.byID {
		if existing.MRN == p.MRN {
			return ErrDuplicateMRN
		}
	}
	r.order = append(r.order, p.ID)
	r.byID[p.ID] = p.Clone()
	return nil
}

func (r *memoryRepo) SaveMedications(_ context.Context, id string, meds []medication.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.Medications = medication.CloneAll(meds)
	p.UpdatedAt = r.now().UTC()
	return nil
}

func (r *memoryRepo) SaveChartEntries(_ context.Context, id string, entries []notes.ChartEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.ChartEntries = notes.CloneEntries(entries)
	p.UpdatedAt = r.now().UTC()
	return nil
}
