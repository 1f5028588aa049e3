package mockdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/chart/internal/domain/medication"
	"github.com/ehr/chart/internal/domain/patient"
)

var testDay = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func TestGenerate_Deterministic(t *testing.T) {
	cfg := DefaultConfig()
	a := Generate(cfg, testDay, NewCatalog())
	b := Generate(cfg, testDay, NewCatalog())

	if len(a.Patients) != cfg.Patients || len(a.Doctors) != cfg.Doctors {
		t.Fatalf("expected %d patients and %d doctors, got %d/%d", cfg.Patients, cfg.Doctors, len(a.Patients), len(a.Doctors))
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("expected identical datasets for the same seed")
	}

	cfg.Seed++
	c := Generate(cfg, testDay, NewCatalog())
	if reflect.DeepEqual(a.Patients[0].Medications, c.Patients[0].Medications) {
		t.Error("expected a different seed to change the data")
	}
}

func TestGenerate_RecordsAreValid(t *testing.T) {
	ds := Generate(Config{Patients: 40, Doctors: 3, MedicationsPerPatient: 4, Seed: 7}, testDay, NewCatalog())
	today := testDay.Format(medication.DateLayout)

	mrns := make(map[string]bool)
	for i, p := range ds.Patients {
		if mrns[p.MRN] {
			t.Fatalf("duplicate MRN %s", p.MRN)
		}
		mrns[p.MRN] = true
		if p.ID == "" || p.FirstName == "" || p.LastName == "" {
			t.Errorf("patient %d missing identity: %+v", i, p)
		}
		if len(p.Medications) != 4 {
			t.Errorf("patient %s: expected 4 medications, got %d", p.ID, len(p.Medications))
		}
		ids := make(map[string]bool)
		for _, m := range p.Medications {
			if ids[m.ID] {
				t.Errorf("patient %s: duplicate medication id %s", p.ID, m.ID)
			}
			ids[m.ID] = true
			if !m.Status.IsValid() || !m.Route.IsValid() || m.Dosage.Amount <= 0 {
				t.Errorf("invalid medication %+v", m)
			}
			if m.StartDate >= today {
				t.Errorf("expected start date before %s, got %s", today, m.StartDate)
			}
			if m.Status == medication.StatusDiscontinued && !medication.IsDiscontinuationReason(m.DiscontinuationReason) {
				t.Errorf("unexpected discontinuation reason %q", m.DiscontinuationReason)
			}
		}
		if len(p.ChartEntries) != 1 {
			t.Errorf("expected one chart entry, got %d", len(p.ChartEntries))
		}
	}
}

func TestSeed_Idempotent(t *testing.T) {
	repo := patient.NewMemoryRepo()
	ctx := context.Background()
	ds := Generate(Config{Patients: 5, Doctors: 2, MedicationsPerPatient: 2, Seed: 1}, testDay, NewCatalog())

	res, err := Seed(ctx, repo, ds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Patients != 5 || res.Medications != 10 || res.Skipped != 0 {
		t.Errorf("unexpected result: %+v", res)
	}

	res, err = Seed(ctx, repo, Generate(Config{Patients: 5, Doctors: 2, MedicationsPerPatient: 2, Seed: 1}, testDay, NewCatalog()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Patients != 0 || res.Skipped != 5 {
		t.Errorf("expected every patient skipped on reseed, got %+v", res)
	}

	_, total, _ := repo.List(ctx, 10, 0)
	if total != 5 {
		t.Errorf("expected 5 stored patients, got %d", total)
	}
}

func TestCatalog_Search(t *testing.T) {
	c := NewCatalog()

	tests := []struct {
		query       string
		wantMatches int
		wantSuggest string
	}{
		{"", len(drugs), ""},
		{"lisino", 1, ""},
		{"ZESTRIL", 1, ""},
		{"pril", 2, ""},
		{"metformn", 0, "Metformin"},
		{"xyzzyplugh", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			matches, suggestions := c.Search(tt.query)
			if len(matches) != tt.wantMatches {
				t.Errorf("expected %d matches, got %d", tt.wantMatches, len(matches))
			}
			if tt.wantSuggest == "" {
				if len(suggestions) != 0 {
					t.Errorf("expected no suggestions, got %v", suggestions)
				}
				return
			}
			if len(suggestions) == 0 || suggestions[0] != tt.wantSuggest {
				t.Errorf("expected first suggestion %q, got %v", tt.wantSuggest, suggestions)
			}
		})
	}
}

func TestHandler_SearchDrugs(t *testing.T) {
	e := echo.New()
	h := NewHandler(NewCatalog(), nil)

	req := httptest.NewRequest(http.MethodGet, "/drugs?q=amoxicilin", nil)
	rec := httptest.NewRecorder()
	if err := h.SearchDrugs(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp struct {
		Data        []Drug   `json:"data"`
		Total       int      `json:"total"`
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 0 || len(resp.Data) != 0 {
		t.Errorf("expected no matches, got %d", resp.Total)
	}
	if len(resp.Suggestions) == 0 || resp.Suggestions[0] != "Amoxicillin" {
		t.Errorf("expected Amoxicillin suggestion, got %v", resp.Suggestions)
	}
}

func TestHandler_ListDoctors(t *testing.T) {
	e := echo.New()
	ds := Generate(DefaultConfig(), testDay, NewCatalog())
	h := NewHandler(NewCatalog(), ds.Doctors)

	req := httptest.NewRequest(http.MethodGet, "/doctors?limit=2", nil)
	rec := httptest.NewRecorder()
	if err := h.ListDoctors(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data    []Doctor `json:"data"`
		Total   int      `json:"total"`
		HasMore bool     `json:"has_more"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Data) != 2 || resp.Total != len(ds.Doctors) || !resp.HasMore {
		t.Errorf("unexpected page: %+v", resp)
	}
	if resp.Data[0].ID != "doc-1" {
		t.Errorf("expected doc-1 first, got %s", resp.Data[0].ID)
	}
}
