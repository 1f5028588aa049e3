package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/chart/internal/domain/medication"
	"github.com/ehr/chart/internal/domain/notes"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "patient").Logger(),
		now:    time.Now,
	}
}

// Register validates and stores a new patient with empty medication and
// chart-entry lists. An empty ID is assigned a UUID.
func (s *Service) Register(ctx context.Context, p *Patient) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.MRN = strings.TrimSpace(p.MRN)
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	if p.MRN == "" {
		return fmt.Errorf("mrn is required")
	}
	if p.Gender != "" && !validGenders[p.Gender] {
		return fmt.Errorf("invalid gender: %s", p.Gender)
	}
	if p.BirthDate != "" {
		if _, err := time.Parse(medication.DateLayout, p.BirthDate); err != nil {
			return fmt.Errorf("birth_date must be YYYY-MM-DD")
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Medications == nil {
		p.Medications = []medication.Medication{}
	}
	if p.ChartEntries == nil {
		p.ChartEntries = []notes.ChartEntry{}
	}
	ts := s.now().UTC()
	p.CreatedAt = ts
	p.UpdatedAt = ts

	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}
	s.logger.Info().Str("patient_id", p.ID).Str("mrn", p.MRN).Msg("patient registered")
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*Patient, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("patient %s: %w", id, ErrNotFound)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}
