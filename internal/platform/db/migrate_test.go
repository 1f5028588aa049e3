package db

import (
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

func TestLoadMigrations(t *testing.T) {
	files := fstest.MapFS{
		"001_core.sql":        {Data: []byte("CREATE TABLE users (id SERIAL PRIMARY KEY);")},
		"002_clinical.sql":    {Data: []byte("CREATE TABLE conditions (id SERIAL PRIMARY KEY);")},
		"003_medications.sql": {Data: []byte("CREATE TABLE medications (id SERIAL PRIMARY KEY);")},
	}

	migrations, err := NewMigrator(nil, files).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Name != "001_core.sql" {
		t.Errorf("unexpected first migration: %+v", migrations[0])
	}
	if migrations[0].SQL != "CREATE TABLE users (id SERIAL PRIMARY KEY);" {
		t.Errorf("unexpected SQL content: %s", migrations[0].SQL)
	}
	if migrations[2].Version != 3 {
		t.Errorf("expected version 3, got %d", migrations[2].Version)
	}
}

func TestLoadMigrations_SortOrder(t *testing.T) {
	files := fstest.MapFS{
		"010_tables.sql": {Data: []byte("SELECT 10;")},
		"002_second.sql": {Data: []byte("SELECT 2;")},
		"001_first.sql":  {Data: []byte("SELECT 1;")},
		"005_middle.sql": {Data: []byte("SELECT 5;")},
	}

	migrations, err := NewMigrator(nil, files).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	want := []int{1, 2, 5, 10}
	if len(migrations) != len(want) {
		t.Fatalf("expected %d migrations, got %d", len(want), len(migrations))
	}
	for i, v := range want {
		if migrations[i].Version != v {
			t.Errorf("migrations[%d]: expected version %d, got %d", i, v, migrations[i].Version)
		}
	}
}

func TestLoadMigrations_SkipsNonSQL(t *testing.T) {
	files := fstest.MapFS{
		"001_core.sql":     {Data: []byte("SELECT 1;")},
		"README.md":        {Data: []byte("docs")},
		"notes.sql":        {Data: []byte("SELECT 0;")},
		"abc_invalid.sql":  {Data: []byte("SELECT 0;")},
		"sub/002_more.sql": {Data: []byte("SELECT 2;")},
	}

	migrations, err := NewMigrator(nil, files).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 1 || migrations[0].Version != 1 {
		t.Errorf("expected only 001_core.sql, got %+v", migrations)
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	files := fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"001_b.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := NewMigrator(nil, files).LoadMigrations()
	if err == nil || !strings.Contains(err.Error(), "duplicate migration version 1") {
		t.Errorf("expected duplicate version error, got %v", err)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := NewMigrator(nil, Migrations()).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) < 1 || migrations[0].Version != 1 {
		t.Fatalf("expected embedded migrations starting at 1, got %+v", migrations)
	}
	if !strings.Contains(migrations[0].SQL, "CREATE TABLE IF NOT EXISTS patient") {
		t.Error("expected first migration to create the patient table")
	}
}

func TestPending(t *testing.T) {
	migrations := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	applied := map[int]time.Time{1: time.Now(), 3: time.Now()}

	pending := Pending(migrations, applied)
	if len(pending) != 1 || pending[0].Version != 2 {
		t.Errorf("expected only version 2 pending, got %+v", pending)
	}
	if got := Pending(migrations, nil); len(got) != 3 {
		t.Errorf("expected all pending with nothing applied, got %d", len(got))
	}
}
