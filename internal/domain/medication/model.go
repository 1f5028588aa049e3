package medication

import (
	"time"
)

// DateLayout is the calendar date format used for start, end and history ordering.
const DateLayout = "2006-01-02"

type Status string

const (
	StatusActive       Status = "active"
	StatusOnHold       Status = "on-hold"
	StatusDiscontinued Status = "discontinued"
	StatusCompleted    Status = "completed"
)

var validStatuses = map[Status]bool{
	StatusActive: true, StatusOnHold: true, StatusDiscontinued: true, StatusCompleted: true,
}

func (s Status) IsValid() bool { return validStatuses[s] }

// IsCurrent reports whether the medication is still being taken.
func (s Status) IsCurrent() bool { return s == StatusActive || s == StatusOnHold }

type Route string

const (
	RouteOral         Route = "oral"
	RouteIV           Route = "iv"
	RouteIM           Route = "im"
	RouteSubcutaneous Route = "subcutaneous"
	RouteTopical      Route = "topical"
	RouteInhalation   Route = "inhalation"
	RouteSublingual   Route = "sublingual"
	RouteRectal       Route = "rectal"
	RouteTransdermal  Route = "transdermal"
	RouteInhaler      Route = "inhaler"
	RouteNebulizer    Route = "nebulizer"
	RouteNasal        Route = "nasal"
	RouteOther        Route = "other"
)

var validRoutes = map[Route]bool{
	RouteOral: true, RouteIV: true, RouteIM: true, RouteSubcutaneous: true,
	RouteTopical: true, RouteInhalation: true, RouteSublingual: true, RouteRectal: true,
	RouteTransdermal: true, RouteInhaler: true, RouteNebulizer: true, RouteNasal: true,
	RouteOther: true,
}

func (r Route) IsValid() bool { return validRoutes[r] }

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

type Dosage struct {
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

type Frequency struct {
	Times  int    `json:"times"`
	Period Period `json:"period"`
}

type Prescriber struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Duration struct {
	Amount int    `json:"amount"`
	Unit   string `json:"unit"`
}

// WeightBasedDosing records how a dose was derived from patient weight.
type WeightBasedDosing struct {
	DosePerKg      float64 `json:"dose_per_kg"`
	Unit           string  `json:"unit"`
	WeightKg       float64 `json:"weight_kg"`
	CalculatedDose float64 `json:"calculated_dose"`
}

// Medication is one prescription instance on a patient's chart.
type Medication struct {
	ID                    string             `json:"id"`
	PatientID             string             `json:"patient_id"`
	Name                  string             `json:"name"`
	GenericName           string             `json:"generic_name,omitempty"`
	Dosage                Dosage             `json:"dosage"`
	Frequency             Frequency          `json:"frequency"`
	Route                 Route              `json:"route"`
	StartDate             string             `json:"start_date"`
	EndDate               string             `json:"end_date,omitempty"`
	Status                Status             `json:"status"`
	DiscontinuationReason string             `json:"discontinuation_reason,omitempty"`
	PrescribedBy          Prescriber         `json:"prescribed_by"`
	Indication            string             `json:"indication,omitempty"`
	Notes                 string             `json:"notes,omitempty"`
	Duration              *Duration          `json:"duration,omitempty"`
	WeightBased           *WeightBasedDosing `json:"weight_based,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// Clone returns a deep copy of m.
func (m Medication) Clone() Medication {
	out := m
	if m.Duration != nil {
		d := *m.Duration
		out.Duration = &d
	}
	if m.WeightBased != nil {
		w := *m.WeightBased
		out.WeightBased = &w
	}
	return out
}

// CloneAll deep-copies a medication list.
func CloneAll(meds []Medication) []Medication {
	if meds == nil {
		return nil
	}
	out := make([]Medication, len(meds))
	for i, m := range meds {
		out[i] = m.Clone()
	}
	return out
}

// NewMedication is the caller-supplied data for Create. Identity and
// timestamps are assigned by the manager.
type NewMedication struct {
	Name                  string
	GenericName           string
	Dosage                Dosage
	Frequency             Frequency
	Route                 Route
	StartDate             string
	EndDate               string
	Status                Status
	DiscontinuationReason string
	PrescribedBy          Prescriber
	Indication            string
	Notes                 string
	Duration              *Duration
	WeightBased           *WeightBasedDosing
}

// Changes is a partial update. Nil fields are left untouched. Status moves
// through ChangeStatus and Discontinue only.
type Changes struct {
	Name         *string
	GenericName  *string
	Dosage       *Dosage
	Frequency    *Frequency
	Route        *Route
	StartDate    *string
	EndDate      *string
	PrescribedBy *Prescriber
	Indication   *string
	Notes        *string
	Duration     *Duration
	WeightBased  *WeightBasedDosing
}

// IsSignificant reports whether c alters dosage, frequency or route of m.
func (c Changes) IsSignificant(m Medication) bool {
	if c.Dosage != nil && *c.Dosage != m.Dosage {
		return true
	}
	if c.Frequency != nil && *c.Frequency != m.Frequency {
		return true
	}
	if c.Route != nil && *c.Route != m.Route {
		return true
	}
	return false
}

// ApplyTo merges the set fields of c into m.
func (c Changes) ApplyTo(m *Medication) {
	if c.Name != nil {
		m.Name = *c.Name
	}
	if c.GenericName != nil {
		m.GenericName = *c.GenericName
	}
	if c.Dosage != nil {
		m.Dosage = *c.Dosage
	}
	if c.Frequency != nil {
		m.Frequency = *c.Frequency
	}
	if c.Route != nil {
		m.Route = *c.Route
	}
	if c.StartDate != nil {
		m.StartDate = *c.StartDate
	}
	if c.EndDate != nil {
		m.EndDate = *c.EndDate
	}
	if c.PrescribedBy != nil {
		m.PrescribedBy = *c.PrescribedBy
	}
	if c.Indication != nil {
		m.Indication = *c.Indication
	}
	if c.Notes != nil {
		m.Notes = *c.Notes
	}
	if c.Duration != nil {
		d := *c.Duration
		m.Duration = &d
	}
	if c.WeightBased != nil {
		w := *c.WeightBased
		m.WeightBased = &w
	}
}

// UpdateResult is the outcome of Update. When Replaced is true the
// medication was forked: Previous holds the discontinued original and
// Medication the new active record.
type UpdateResult struct {
	Medication *Medication `json:"medication"`
	Replaced   bool        `json:"replaced"`
	Previous   *Medication `json:"previous,omitempty"`
}
