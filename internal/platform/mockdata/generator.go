// Package mockdata generates reproducible demo patients, prescribers and a
// drug formulary for development servers and UI work.
package mockdata

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/chart/internal/domain/medication"
	"github.com/ehr/chart/internal/domain/notes"
	"github.com/ehr/chart/internal/domain/patient"
)

// Config controls the volume of generated data.
type Config struct {
	Patients              int   `json:"patients"`
	Doctors               int   `json:"doctors"`
	MedicationsPerPatient int   `json:"medications_per_patient"`
	Seed                  int64 `json:"seed"`
}

func DefaultConfig() Config {
	return Config{
		Patients:              25,
		Doctors:               6,
		MedicationsPerPatient: 3,
		Seed:                  20240101,
	}
}

// Doctor is a demo prescriber.
type Doctor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
}

func (d Doctor) Prescriber() medication.Prescriber {
	return medication.Prescriber{ID: d.ID, Name: d.Name}
}

var (
	firstNamesMale = []string{
		"James", "Robert", "John", "Michael", "David", "William", "Richard",
		"Joseph", "Thomas", "Daniel", "Matthew", "Anthony", "Kevin", "Brian",
	}
	firstNamesFemale = []string{
		"Mary", "Patricia", "Jennifer", "Linda", "Elizabeth", "Susan",
		"Jessica", "Sarah", "Karen", "Nancy", "Margaret", "Emily", "Laura",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia",
		"Miller", "Davis", "Rodriguez", "Martinez", "Wilson", "Anderson",
		"Taylor", "Thomas", "Moore", "Jackson", "Lee", "Nguyen", "Clark",
	}
	specialties = []string{
		"Internal Medicine", "Family Medicine", "Cardiology",
		"Endocrinology", "Pulmonology", "Hospital Medicine",
	}
)

// Generator produces deterministic demo records from a seed.
type Generator struct {
	rng   *rand.Rand
	today time.Time
}

// NewGenerator returns a generator seeded for reproducibility. Dates are
// generated relative to today.
func NewGenerator(seed int64, today time.Time) *Generator {
	return &Generator{
		rng:   rand.New(rand.NewSource(seed)),
		today: today.UTC().Truncate(24 * time.Hour),
	}
}

func (g *Generator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *Generator) id() string {
	u, err := uuid.NewRandomFromReader(g.rng)
	if err != nil {
		panic(fmt.Sprintf("mockdata: uuid from rng: %v", err))
	}
	return u.String()
}

func (g *Generator) daysAgo(maxDays int) time.Time {
	return g.today.AddDate(0, 0, -(1 + g.rng.Intn(maxDays)))
}

func (g *Generator) person() (first, gender string) {
	if g.rng.Intn(2) == 0 {
		return g.pick(firstNamesMale), "male"
	}
	return g.pick(firstNamesFemale), "female"
}

// Doctors returns n prescribers with ids doc-1..doc-n.
func (g *Generator) Doctors(n int) []Doctor {
	out := make([]Doctor, n)
	for i := range out {
		first, _ := g.person()
		out[i] = Doctor{
			ID:        fmt.Sprintf("doc-%d", i+1),
			Name:      fmt.Sprintf("Dr. %s %s", first, g.pick(lastNames)),
			Specialty: g.pick(specialties),
		}
	}
	return out
}

// Patient builds patient number n (1-based) with a medication list drawn
// from the catalog and one quick note.
func (g *Generator) Patient(n int, doctors []Doctor, catalog *Catalog, meds int) *patient.Patient {
	first, gender := g.person()
	birth := time.Date(1940+g.rng.Intn(65), time.Month(1+g.rng.Intn(12)), 1+g.rng.Intn(28), 0, 0, 0, 0, time.UTC)
	id := fmt.Sprint(n)

	p := &patient.Patient{
		ID:           id,
		MRN:          fmt.Sprintf("MRN-%06d", n),
		FirstName:    first,
		LastName:     g.pick(lastNames),
		BirthDate:    birth.Format(medication.DateLayout),
		Gender:       gender,
		Medications:  []medication.Medication{},
		ChartEntries: []notes.ChartEntry{},
	}

	doc := doctors[g.rng.Intn(len(doctors))]
	all := catalog.All()
	perm := g.rng.Perm(len(all))
	for i := 0; i < meds && i < len(perm); i++ {
		p.Medications = append(p.Medications, g.medication(id, all[perm[i]], doctors[g.rng.Intn(len(doctors))]))
	}

	created := g.daysAgo(30)
	p.ChartEntries = append(p.ChartEntries, notes.ChartEntry{
		ID:        g.id(),
		PatientID: id,
		Template:  notes.QuickNote,
		Title:     fmt.Sprintf("%s - %s", notes.QuickNote.Title(), created.Format(medication.DateLayout)),
		Data:      map[string]interface{}{"subjective": "Routine follow-up, no new complaints."},
		Author:    notes.Author{ID: doc.ID, Name: doc.Name},
		CreatedAt: created,
		UpdatedAt: created,
	})
	return p
}

func (g *Generator) medication(patientID string, d Drug, doc Doctor) medication.Medication {
	start := g.daysAgo(720)
	m := medication.Medication{
		ID:           g.id(),
		PatientID:    patientID,
		Name:         d.GenericName,
		GenericName:  d.GenericName,
		Dosage:       d.Strengths[g.rng.Intn(len(d.Strengths))],
		Frequency:    d.DefaultFrequency,
		Route:        d.Route,
		StartDate:    start.Format(medication.DateLayout),
		Status:       medication.StatusActive,
		PrescribedBy: doc.Prescriber(),
		Indication:   d.Indication,
		CreatedAt:    start,
		UpdatedAt:    start,
	}

	switch roll := g.rng.Intn(10); {
	case roll < 2:
		days := int(g.today.Sub(start).Hours() / 24)
		stopped := start.AddDate(0, 0, g.rng.Intn(days+1))
		m.Status = medication.StatusDiscontinued
		m.EndDate = stopped.Format(medication.DateLayout)
		m.DiscontinuationReason = medication.DiscontinuationReasons[g.rng.Intn(len(medication.DiscontinuationReasons))]
		m.UpdatedAt = stopped
	case roll < 3:
		m.Status = medication.StatusOnHold
	case roll < 5:
		m.Duration = &medication.Duration{Amount: 10 + g.rng.Intn(80), Unit: "days"}
		m.EndDate = start.AddDate(0, 0, m.Duration.Amount).Format(medication.DateLayout)
	}
	return m
}

// Dataset is one generated batch.
type Dataset struct {
	Doctors  []Doctor
	Patients []*patient.Patient
}

// Generate builds a full dataset. The same config and day always yield the
// same records.
func Generate(cfg Config, today time.Time, catalog *Catalog) Dataset {
	if cfg.Doctors < 1 {
		cfg.Doctors = 1
	}
	g := NewGenerator(cfg.Seed, today)
	ds := Dataset{Doctors: g.Doctors(cfg.Doctors)}
	for i := 1; i <= cfg.Patients; i++ {
		ds.Patients = append(ds.Patients, g.Patient(i, ds.Doctors, catalog, cfg.MedicationsPerPatient))
	}
	return ds
}

// Result summarizes a Seed run.
type Result struct {
	Patients    int `json:"patients"`
	Skipped     int `json:"skipped"`
	Medications int `json:"medications"`
	Doctors     int `json:"doctors"`
}

// Seed stores a generated dataset. Patients whose id already exists are left
// untouched, so seeding twice is harmless.
func Seed(ctx context.Context, repo patient.Repository, ds Dataset) (*Result, error) {
	res := &Result{Doctors: len(ds.Doctors)}
	for _, p := range ds.Patients {
		existing, err := repo.FindByID(ctx, p.ID)
		if err != nil {
			return res, fmt.Errorf("lookup patient %s: %w", p.ID, err)
		}
		if existing != nil {
			res.Skipped++
			continue
		}
		stamp := time.Now().UTC()
		p.CreatedAt, p.UpdatedAt = stamp, stamp
		if err := repo.Create(ctx, p); err != nil {
			return res, fmt.Errorf("save patient %s: %w", p.ID, err)
		}
		res.Patients++
		res.Medications += len(p.Medications)
	}
	return res, nil
}
