package db

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/r3hc/ovr/migrations"
)

func TestLoadMigrations_SortsAndSkips(t *testing.T) {
	files := fstest.MapFS{
		"010_audit.sql":     {Data: []byte("SELECT 10;")},
		"002_identity.sql":  {Data: []byte("SELECT 2;")},
		"001_reference.sql": {Data: []byte("SELECT 1;")},
		"README.md":         {Data: []byte("docs")},
		"seed_data.sql":     {Data: []byte("SELECT 0;")},
		"noprefix.sql":      {Data: []byte("SELECT 0;")},
	}

	migs, err := NewMigrator(nil, files).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migs) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migs))
	}
	want := []int{1, 2, 10}
	for i, v := range want {
		if migs[i].Version != v {
			t.Errorf("position %d: expected version %d, got %d", i, v, migs[i].Version)
		}
	}
	if migs[0].SQL != "SELECT 1;" {
		t.Errorf("unexpected SQL %q", migs[0].SQL)
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	files := fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"001_b.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := NewMigrator(nil, files).LoadMigrations(); err == nil {
		t.Fatal("expected duplicate version error")
	}
}

func TestLoadMigrations_EmbeddedSchema(t *testing.T) {
	migs, err := NewMigrator(nil, migrations.FS).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migs) < 4 {
		t.Fatalf("expected at least 4 embedded migrations, got %d", len(migs))
	}
	for i := 1; i < len(migs); i++ {
		if migs[i].Version <= migs[i-1].Version {
			t.Errorf("migrations out of order at %d", i)
		}
	}
}

func TestPending(t *testing.T) {
	all := []Migration{{Version: 1}, {Version: 2}, {Version: 3}, {Version: 4}}
	done := map[int]time.Time{1: time.Now()}

	got := pending(all, done, 0)
	if len(got) != 3 || got[0].Version != 2 {
		t.Errorf("expected versions 2..4, got %+v", got)
	}

	got = pending(all, done, 3)
	if len(got) != 2 || got[len(got)-1].Version != 3 {
		t.Errorf("expected versions 2..3, got %+v", got)
	}
}

func TestStatuses(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	got := statuses([]Migration{{Version: 1, Name: "001_a.sql"}, {Version: 2, Name: "002_b.sql"}}, map[int]time.Time{1: at})

	if !got[0].Applied || got[0].AppliedAt == nil || !got[0].AppliedAt.Equal(at) {
		t.Errorf("expected first migration applied at %s, got %+v", at, got[0])
	}
	if got[1].Applied {
		t.Error("expected second migration pending")
	}
}
