// Package patient owns patient records and the stores that persist them
// together with their medication and chart-entry lists.
package patient

import (
	"errors"
	"strings"
	"time"

	"github.com/ehr/chart/internal/domain/medication"
	"github.com/ehr/chart/internal/domain/notes"
)

var (
	ErrNotFound     = errors.New("patient not found")
	ErrDuplicateMRN = errors.New("mrn already registered")
	ErrDuplicateID  = errors.New("patient id already registered")
)

var validGenders = map[string]bool{
	"male": true, "female": true, "other": true, "unknown": true,
}

// Patient exclusively owns its medication list and chart entries.
type Patient struct {
	ID           string                  `json:"id"`
	MRN          string                  `json:"mrn"`
	FirstName    string                  `json:"first_name"`
	LastName     string                  `json:"last_name"`
	BirthDate    string                  `json:"birth_date,omitempty"`
	Gender       string                  `json:"gender,omitempty"`
	Medications  []medication.Medication `json:"medications"`
	ChartEntries []notes.ChartEntry      `json:"chart_entries"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

// Clone returns a deep copy of p.
func (p *Patient) Clone() *Patient {
	out := *p
	out.Medications = medication.CloneAll(p.Medications)
	out.ChartEntries = notes.CloneEntries(p.ChartEntries)
	return &out
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Summary is the list view of a patient.
type Summary struct {
	ID                string `json:"id"`
	MRN               string `json:"mrn"`
	Name              string `json:"name"`
	BirthDate         string `json:"birth_date,omitempty"`
	Gender            string `json:"gender,omitempty"`
	ActiveMedications int    `json:"active_medications"`
	ChartEntries      int    `json:"chart_entries"`
}

func (p *Patient) Summary() Summary {
	active := 0
	for _, m := range p.Medications {
		if m.Status == medication.StatusActive {
			active++
		}
	}
	return Summary{
		ID:                p.ID,
		MRN:               p.MRN,
		Name:              p.FullName(),
		BirthDate:         p.BirthDate,
		Gender:            p.Gender,
		ActiveMedications: active,
		ChartEntries:      len(p.ChartEntries),
	}
}
