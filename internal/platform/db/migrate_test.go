package db

import (
	"testing"
	"testing/fstest"
	"time"
)

func TestLoad_ParsesAndSorts(t *testing.T) {
	fsys := fstest.MapFS{
		"010_tables.sql": {Data: []byte("SELECT 10;")},
		"002_second.sql": {Data: []byte("SELECT 2;")},
		"001_core.sql":   {Data: []byte("CREATE TABLE providers (id BIGSERIAL PRIMARY KEY);")},
	}

	migrations, err := NewMigrator(nil, fsys).Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}

	want := []int{1, 2, 10}
	for i, v := range want {
		if migrations[i].Version != v {
			t.Errorf("migration[%d]: expected version %d, got %d", i, v, migrations[i].Version)
		}
	}
	if migrations[0].Name != "001_core.sql" {
		t.Errorf("expected 001_core.sql, got %s", migrations[0].Name)
	}
	if migrations[0].SQL != "CREATE TABLE providers (id BIGSERIAL PRIMARY KEY);" {
		t.Errorf("unexpected SQL content: %s", migrations[0].SQL)
	}
}

func TestLoad_SkipsInvalidNames(t *testing.T) {
	fsys := fstest.MapFS{
		"001_valid.sql":      {Data: []byte("SELECT 1;")},
		"readme.sql":         {Data: []byte("-- no version")},
		"notes.txt":          {Data: []byte("not sql")},
		"abc_invalid.sql":    {Data: []byte("-- non-numeric")},
		"002_also_valid.sql": {Data: []byte("SELECT 2;")},
		"sub/003_nested.sql": {Data: []byte("SELECT 3;")},
	}

	migrations, err := NewMigrator(nil, fsys).Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 valid migrations, got %d", len(migrations))
	}
}

func TestLoad_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"001_a.sql":  {Data: []byte("SELECT 1;")},
		"0001_b.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := NewMigrator(nil, fsys).Load(); err == nil {
		t.Fatal("expected duplicate version error")
	}
}

func TestLoad_Empty(t *testing.T) {
	migrations, err := NewMigrator(nil, fstest.MapFS{}).Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(migrations) != 0 {
		t.Errorf("expected 0 migrations, got %d", len(migrations))
	}
}

func TestPendingAndStatus(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Name: "001_core.sql"},
		{Version: 2, Name: "002_indexes.sql"},
		{Version: 3, Name: "003_more.sql"},
	}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	applied := map[int]time.Time{1: at}

	pending := Pending(migrations, applied)
	if len(pending) != 2 || pending[0].Version != 2 || pending[1].Version != 3 {
		t.Errorf("unexpected pending set %+v", pending)
	}

	statuses := BuildStatus(migrations, applied)
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if !statuses[0].Applied || statuses[0].AppliedAt == nil || !statuses[0].AppliedAt.Equal(at) {
		t.Errorf("expected 001 applied at %v, got %+v", at, statuses[0])
	}
	if statuses[1].Applied || statuses[2].Applied {
		t.Error("expected 002 and 003 pending")
	}
}
