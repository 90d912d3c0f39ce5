package migrations

import (
	"strings"
	"testing"

	"github.com/slotbook/scheduler/internal/platform/db"
)

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := db.NewMigrator(nil, Files).Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected at least one embedded migration")
	}
	if migrations[0].Version != 1 {
		t.Errorf("expected first version 1, got %d", migrations[0].Version)
	}
	if !strings.Contains(migrations[0].SQL, "appointments_no_overlap") {
		t.Error("expected core migration to declare the appointment exclusion constraint")
	}
}
