package migrate

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"
)

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := Embedded()
	if err != nil {
		t.Fatalf("unexpected error loading embedded migrations: %v", err)
	}
	if len(migrations) != 4 {
		t.Fatalf("expected 4 migrations, got %d", len(migrations))
	}
	for i, m := range migrations {
		if m.Version != int64(i+1) {
			t.Fatalf("expected version %d at %d, got %d", i+1, i, m.Version)
		}
		if m.UpSQL == "" || m.DownSQL == "" {
			t.Fatalf("expected non-empty up/down sql for %s", m.Name)
		}
	}
	if !strings.Contains(migrations[1].UpSQL, "UNIQUE (market_id, report_date)") {
		t.Fatal("cot_reports must be unique per market and report date")
	}
}

func TestLoadRejectsBrokenSets(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"missing down": {
			"migrations/001_init.up.sql": {Data: []byte("CREATE TABLE a (id int);")},
		},
		"bad name": {
			"migrations/init.up.sql": {Data: []byte("SELECT 1;")},
		},
		"empty file": {
			"migrations/001_init.up.sql":   {Data: []byte("  ")},
			"migrations/001_init.down.sql": {Data: []byte("DROP TABLE a;")},
		},
		"conflicting names": {
			"migrations/001_init.up.sql":    {Data: []byte("SELECT 1;")},
			"migrations/001_other.down.sql": {Data: []byte("SELECT 1;")},
		},
		"no files": {},
	}
	for name, fsys := range cases {
		if _, err := Load(fsys); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadOrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/010_late.up.sql":    {Data: []byte("SELECT 10;")},
		"migrations/010_late.down.sql":  {Data: []byte("SELECT -10;")},
		"migrations/002_early.up.sql":   {Data: []byte("SELECT 2;")},
		"migrations/002_early.down.sql": {Data: []byte("SELECT -2;")},
	}
	migrations, err := Load(fsys)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if migrations[0].Name != "early" || migrations[1].Name != "late" {
		t.Fatalf("unexpected order %+v", migrations)
	}
}

func TestDownRejectsNonPositiveSteps(t *testing.T) {
	if _, err := Down(context.Background(), nil, nil, 0); err == nil {
		t.Fatal("expected error for zero steps")
	}
}
