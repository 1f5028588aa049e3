package mockdata

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/ehr/chart/internal/domain/medication"
)

// Drug is a prescribable product in the demo formulary.
type Drug struct {
	Name             string               `json:"name"`
	GenericName      string               `json:"generic_name"`
	DrugClass        string               `json:"drug_class"`
	Strengths        []medication.Dosage  `json:"strengths"`
	Route            medication.Route     `json:"route"`
	DefaultFrequency medication.Frequency `json:"default_frequency"`
	Indication       string               `json:"indication"`
}

func mg(amounts ...float64) []medication.Dosage {
	out := make([]medication.Dosage, len(amounts))
	for i, a := range amounts {
		out[i] = medication.Dosage{Amount: a, Unit: "mg"}
	}
	return out
}

func daily(times int) medication.Frequency {
	return medication.Frequency{Times: times, Period: medication.PeriodDaily}
}

var drugs = []Drug{
	{"Glucophage", "Metformin", "Biguanide", mg(500, 850, 1000), medication.RouteOral, daily(2), "Type 2 diabetes mellitus"},
	{"Zestril", "Lisinopril", "ACE inhibitor", mg(5, 10, 20, 40), medication.RouteOral, daily(1), "Essential hypertension"},
	{"Lipitor", "Atorvastatin", "Statin", mg(10, 20, 40, 80), medication.RouteOral, daily(1), "Hyperlipidemia"},
	{"Prilosec", "Omeprazole", "Proton pump inhibitor", mg(20, 40), medication.RouteOral, daily(1), "Gastro-esophageal reflux disease"},
	{"Amoxil", "Amoxicillin", "Penicillin antibiotic", mg(250, 500, 875), medication.RouteOral, daily(3), "Acute bacterial infection"},
	{"Synthroid", "Levothyroxine", "Thyroid hormone", []medication.Dosage{{Amount: 0.05, Unit: "mg"}, {Amount: 0.1, Unit: "mg"}}, medication.RouteOral, daily(1), "Hypothyroidism"},
	{"Norvasc", "Amlodipine", "Calcium channel blocker", mg(2.5, 5, 10), medication.RouteOral, daily(1), "Essential hypertension"},
	{"Microzide", "Hydrochlorothiazide", "Thiazide diuretic", mg(12.5, 25), medication.RouteOral, daily(1), "Edema"},
	{"Zoloft", "Sertraline", "SSRI", mg(25, 50, 100), medication.RouteOral, daily(1), "Major depressive disorder"},
	{"ProAir", "Albuterol", "Beta-2 agonist", []medication.Dosage{{Amount: 90, Unit: "mcg"}}, medication.RouteInhaler, daily(4), "Asthma"},
	{"Cozaar", "Losartan", "Angiotensin receptor blocker", mg(25, 50, 100), medication.RouteOral, daily(1), "Essential hypertension"},
	{"Neurontin", "Gabapentin", "Anticonvulsant", mg(100, 300, 600), medication.RouteOral, daily(3), "Neuropathic pain"},
	{"Tylenol", "Acetaminophen", "Analgesic", mg(325, 500), medication.RouteOral, daily(4), "Pain"},
	{"Singulair", "Montelukast", "Leukotriene receptor antagonist", mg(10), medication.RouteOral, daily(1), "Allergic rhinitis"},
	{"Lasix", "Furosemide", "Loop diuretic", mg(20, 40, 80), medication.RouteOral, daily(1), "Heart failure"},
	{"Deltasone", "Prednisone", "Corticosteroid", mg(5, 10, 20), medication.RouteOral, daily(1), "Inflammation"},
	{"Lovenox", "Enoxaparin", "Low molecular weight heparin", mg(40, 80), medication.RouteSubcutaneous, daily(1), "DVT prophylaxis"},
	{"Rocephin", "Ceftriaxone", "Cephalosporin antibiotic", []medication.Dosage{{Amount: 1, Unit: "g"}}, medication.RouteIV, daily(1), "Community-acquired pneumonia"},
}

// Catalog is a read-only drug formulary searchable by brand or generic name.
type Catalog struct {
	drugs []Drug
}

// NewCatalog returns the demo formulary.
func NewCatalog() *Catalog {
	out := make([]Drug, len(drugs))
	copy(out, drugs)
	return &Catalog{drugs: out}
}

func (c *Catalog) All() []Drug {
	out := make([]Drug, len(c.drugs))
	copy(out, c.drugs)
	return out
}

// Search matches q case-insensitively as a substring of the brand or generic
// name. An empty query matches everything. When nothing matches, the closest
// names by edit distance are returned as suggestions.
func (c *Catalog) Search(q string) (matches []Drug, suggestions []string) {
	q = strings.ToLower(strings.TrimSpace(q))
	matches = []Drug{}
	for _, d := range c.drugs {
		if q == "" || strings.Contains(strings.ToLower(d.Name), q) || strings.Contains(strings.ToLower(d.GenericName), q) {
			matches = append(matches, d)
		}
	}
	if len(matches) > 0 || q == "" {
		return matches, nil
	}
	return matches, c.suggest(q)
}

const maxSuggestions = 3

type candidate struct {
	name string
	dist int
}

func (c *Catalog) suggest(q string) []string {
	limit := len([]rune(q))/3 + 1
	seen := make(map[string]bool)
	var cands []candidate
	for _, d := range c.drugs {
		for _, name := range []string{d.Name, d.GenericName} {
			dist := levenshtein.ComputeDistance(q, strings.ToLower(name))
			if dist <= limit && !seen[name] {
				seen[name] = true
				cands = append(cands, candidate{name, dist})
			}
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].name < cands[j].name
	})
	out := make([]string, 0, maxSuggestions)
	for i := 0; i < len(cands) && i < maxSuggestions; i++ {
		out = append(out, cands[i].name)
	}
	return out
}
